// Package learning folds recorded assignment outcomes into agent counters
// and skill levels, exactly once per assignment.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/metrics"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// Skill deltas per outcome.
const (
	SuccessDelta = 5.0
	FailureDelta = -2.0
)

// Delta is the nominal skill change for an outcome.
func Delta(o factory.Outcome) float64 {
	if o == factory.OutcomeSuccess {
		return SuccessDelta
	}
	return FailureDelta
}

// Result summarizes one Apply run. A zero Result means nothing was pending.
type Result struct {
	RunID         string
	Processed     int // learning log entries written
	AgentsUpdated int // distinct agents whose counters changed
	SkillsUpdated int // skill levels written
	Unmapped      int // outcomes whose task type trains no catalogued skill
	MissingAgents int // outcomes whose agent row does not exist
	Skipped       int // assignments another run logged first
}

// Engine is the learning engine.
type Engine struct {
	st      *store.Store
	metrics *metrics.Metrics
}

func New(st *store.Store, m *metrics.Metrics) *Engine {
	return &Engine{st: st, metrics: m}
}

// Apply processes every assignment that has an outcome and no learning log
// entry. Each assignment commits in its own transaction, so a failed run
// leaves the remainder for the next run. The learning log insert is the
// first write of that transaction; a concurrent run that loses the insert
// skips the assignment without touching counters or skills.
func (e *Engine) Apply(ctx context.Context) (Result, error) {
	pending, err := e.st.UnlearnedAssignments(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(pending) == 0 {
		return Result{}, nil
	}

	res := Result{RunID: uuid.NewString()}
	agents := make(map[string]struct{})
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, err := e.applyOne(ctx, res.RunID, p)
		if err != nil {
			return res, fmt.Errorf("apply assignment %d: %w", p.ID, err)
		}
		switch {
		case out.skipped:
			res.Skipped++
			continue
		case out.agentMissing:
			res.MissingAgents++
		}
		res.Processed++
		if out.countersUpdated {
			agents[p.AgentID] = struct{}{}
		}
		if out.skillUpdated {
			res.SkillsUpdated++
		} else {
			res.Unmapped++
		}
	}
	res.AgentsUpdated = len(agents)

	slog.Info("Learning applied",
		"run_id", res.RunID,
		"processed", res.Processed,
		"agents_updated", res.AgentsUpdated,
		"skills_updated", res.SkillsUpdated,
		"skipped", res.Skipped)
	e.metrics.LearningApplied(res.Processed)
	return res, nil
}

type outcome struct {
	skipped         bool
	agentMissing    bool
	countersUpdated bool
	skillUpdated    bool
}

func (e *Engine) applyOne(ctx context.Context, runID string, p store.PendingLearning) (outcome, error) {
	var out outcome
	err := e.st.InTx(ctx, func(tx *store.Tx) error {
		agent, err := tx.GetAgent(ctx, p.AgentID)
		if errors.Is(err, factory.ErrNotFound) {
			agent, err = nil, nil
		}
		if err != nil {
			return err
		}

		entry := store.LearningLogEntry{
			AssignmentID: p.ID,
			AgentID:      p.AgentID,
			TaskID:       p.TaskID,
			TaskType:     p.TaskType,
			ResultStatus: p.ResultStatus,
			UserID:       p.AgentID,
			RunID:        runID,
		}

		var (
			skill    *store.Skill
			newLevel float64
		)
		skillID, mapped := p.TaskType.Skill()
		switch {
		case !mapped:
			entry.Note = fmt.Sprintf("no skill mapping for task_type=%s", p.TaskType)
		default:
			if skill, err = tx.GetSkill(ctx, skillID); err != nil {
				return err
			}
			if skill == nil {
				entry.Note = fmt.Sprintf("skill %s is not catalogued", skillID)
				break
			}
			level, _, err := tx.GetSkillLevel(ctx, entry.UserID, skillID)
			if err != nil {
				return err
			}
			entry.SkillID = skillID
			entry.Delta = Delta(p.ResultStatus)
			newLevel = skill.Clamp(level + entry.Delta)
			entry.Note = fmt.Sprintf("%s %.0f -> %.0f", skillID, level, newLevel)
		}
		if agent == nil {
			entry.Note += fmt.Sprintf("; agent %s not found, counters unchanged", p.AgentID)
		}

		inserted, err := tx.InsertLearningEntry(ctx, entry)
		if err != nil {
			return err
		}
		if !inserted {
			out.skipped = true
			return nil
		}

		if agent != nil {
			first, err := tx.MarkCountersApplied(ctx, p.ID)
			if err != nil {
				return err
			}
			// A recompute may already have counted this outcome.
			if first {
				if err := tx.SetAgentCounters(ctx, agent.ID, agent.Counters().Record(p.ResultStatus)); err != nil {
					return err
				}
				out.countersUpdated = true
			}
		} else {
			out.agentMissing = true
		}

		if entry.SkillID != "" {
			if err := tx.UpsertSkillLevel(ctx, entry.UserID, entry.SkillID, newLevel); err != nil {
				return err
			}
			out.skillUpdated = true
		}
		return nil
	})
	if err != nil {
		return outcome{}, err
	}
	return out, nil
}
