// Package results records assignment outcomes and rebuilds agent counters
// from the assignment ledger.
package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/metrics"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// Service records outcomes and recomputes counters.
type Service struct {
	st      *store.Store
	metrics *metrics.Metrics
}

func New(st *store.Store, m *metrics.Metrics) *Service {
	return &Service{st: st, metrics: m}
}

// Recorded is the state after an outcome was stored.
type Recorded struct {
	Task       store.Task
	Assignment store.Assignment
}

// RecordOutcome stores the outcome of a task's most recent assignment and
// moves the task to done or failed. status accepts success, fail or failed.
// The task must be assigned; a task that was never dispatched reports
// factory.ErrNotFound and a task that already has an outcome reports
// factory.ErrInvalidTransition. Nothing is written on error.
func (s *Service) RecordOutcome(ctx context.Context, taskID int64, status, notes string) (*Recorded, error) {
	outcome, err := factory.ParseOutcome(status)
	if err != nil {
		return nil, err
	}

	var rec Recorded
	err = s.st.InTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		a, err := tx.LatestAssignment(ctx, taskID)
		if err != nil {
			return fmt.Errorf("task %d has not been dispatched: %w", taskID, err)
		}
		if task.Status != factory.StatusAssigned {
			return fmt.Errorf("task %d is %s: %w", taskID, task.Status, factory.ErrInvalidTransition)
		}
		if err := tx.CompleteAssignment(ctx, a.ID, outcome, notes); err != nil {
			return err
		}
		if err := tx.TransitionTask(ctx, taskID, factory.StatusAssigned, outcome.TaskStatus()); err != nil {
			return err
		}

		now := tx.Now()
		a.ResultStatus = outcome
		a.ResultNotes = notes
		a.CompletedAt = &now
		task.Status = outcome.TaskStatus()
		rec = Recorded{Task: *task, Assignment: *a}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Outcome recorded",
		"task_id", taskID,
		"assignment_id", rec.Assignment.ID,
		"agent", rec.Assignment.AgentID,
		"status", outcome)
	s.metrics.OutcomeRecorded(string(outcome))
	return &rec, nil
}

// RecomputeResult summarizes a counter rebuild.
type RecomputeResult struct {
	Agents        int      // agents with at least one counted outcome
	Outcomes      int      // assignments counted
	UnknownAgents []string // agent ids in the ledger with no agent row
}

// RecomputeAgentStats rebuilds every agent's counters from the assignments
// that carry an outcome. Agents without outcomes are reset to zero. The
// rebuild runs in one transaction and does not read the learning log.
func (s *Service) RecomputeAgentStats(ctx context.Context) (RecomputeResult, error) {
	var res RecomputeResult
	err := s.st.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.ResetAllCounters(ctx); err != nil {
			return err
		}
		counts, err := tx.TerminalCounts(ctx)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			c := counts[id]
			err := tx.SetAgentCounters(ctx, id, c)
			if errors.Is(err, factory.ErrNotFound) {
				res.UnknownAgents = append(res.UnknownAgents, id)
				continue
			}
			if err != nil {
				return err
			}
			res.Agents++
			res.Outcomes += c.Total()
		}
		return tx.MarkAllCountersApplied(ctx)
	})
	if err != nil {
		return RecomputeResult{}, err
	}
	if len(res.UnknownAgents) > 0 {
		slog.Warn("Outcomes reference unknown agents", "agents", res.UnknownAgents)
	}
	slog.Info("Agent counters recomputed", "agents", res.Agents, "outcomes", res.Outcomes)
	return res, nil
}

// Report records an outcome and then recomputes agent counters, the
// contract behind set-result and the outcome intake.
func (s *Service) Report(ctx context.Context, taskID int64, status, notes string) (*Recorded, RecomputeResult, error) {
	rec, err := s.RecordOutcome(ctx, taskID, status, notes)
	if err != nil {
		return nil, RecomputeResult{}, err
	}
	rr, err := s.RecomputeAgentStats(ctx)
	if err != nil {
		return rec, RecomputeResult{}, fmt.Errorf("recompute after outcome: %w", err)
	}
	return rec, rr, nil
}
