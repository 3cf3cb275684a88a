// Package daily builds the per-day rollup and synthesizes training tasks
// for agents that failed work that day.
package daily

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/metrics"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

const (
	// TrainerSource tags tasks created by the aggregator.
	TrainerSource = "daily_trainer"
	// MaxTrainingTasks caps the training tasks created for one day, across
	// every run for that day.
	MaxTrainingTasks = 10
)

// Notifier receives the rollup after it is stored.
type Notifier interface {
	NotifyDaily(ctx context.Context, r store.DailyReport, created int) error
}

// Aggregator runs the daily rollup.
type Aggregator struct {
	st       *store.Store
	notifier Notifier
	metrics  *metrics.Metrics
}

type Option func(*Aggregator)

func WithNotifier(n Notifier) Option {
	return func(a *Aggregator) { a.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func New(st *store.Store, opts ...Option) *Aggregator {
	a := &Aggregator{st: st}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is the outcome of one run.
type Result struct {
	Report  store.DailyReport
	Created []store.Task // training tasks created by this run
	Deduped int          // failure groups that already had a training task
	Capped  int          // failure groups left out by MaxTrainingTasks
}

// ParseDay validates a YYYY-MM-DD day. An empty day means today (UTC).
func ParseDay(day string, now time.Time) (string, error) {
	if day == "" {
		return store.DayOf(now), nil
	}
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return "", fmt.Errorf("%w: day %q must be YYYY-MM-DD", factory.ErrInvalidInput, day)
	}
	return t.Format("2006-01-02"), nil
}

// TrainingPrefix is the description prefix shared by every training task
// for day. Per-agent and per-type prefixes extend it.
func TrainingPrefix(day string) string {
	return "Daily training " + day + " "
}

func groupPrefix(day string, g store.FailureGroup) string {
	return fmt.Sprintf("%sfor agent %s on %s tasks", TrainingPrefix(day), g.AgentID, g.TaskType)
}

func trainingDescription(day string, g store.FailureGroup) string {
	desc := fmt.Sprintf("%s (success=%d, failed=%d", groupPrefix(day, g), g.Total-g.Failed, g.Failed)
	if skill, ok := g.TaskType.Skill(); ok {
		desc += ", skill=" + string(skill)
	}
	return desc + ")."
}

// Run builds the rollup for day. Training tasks are created first and the
// histogram is measured afterwards inside the same transaction, so a rerun
// with no new data writes an identical row and creates no tasks.
func (a *Aggregator) Run(ctx context.Context, day string) (Result, error) {
	day, err := ParseDay(day, a.st.Now())
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = a.st.InTx(ctx, func(tx *store.Tx) error {
		groups, err := tx.FailureGroups(ctx, day)
		if err != nil {
			return err
		}
		existing, err := tx.CountTasksWithPrefix(ctx, TrainerSource, TrainingPrefix(day))
		if err != nil {
			return err
		}
		budget := MaxTrainingTasks - existing
		for _, g := range groups {
			n, err := tx.CountTasksWithPrefix(ctx, TrainerSource, groupPrefix(day, g))
			if err != nil {
				return err
			}
			if n > 0 {
				res.Deduped++
				continue
			}
			if len(res.Created) >= budget {
				res.Capped++
				continue
			}
			task, err := tx.InsertTask(ctx, store.Task{
				Source:      TrainerSource,
				Description: trainingDescription(day, g),
				TaskType:    factory.TypeCoaching,
				Priority:    factory.PriorityLow,
			})
			if err != nil {
				return err
			}
			res.Created = append(res.Created, *task)
		}

		counts, err := tx.TaskStatusCounts(ctx, day)
		if err != nil {
			return err
		}
		summary, err := tx.SummarizeAgents(ctx)
		if err != nil {
			return err
		}
		training := existing + len(res.Created)

		res.Report = store.DailyReport{
			Day:            day,
			TotalTasks:     counts.Total,
			TasksDone:      counts.Done,
			TasksFailed:    counts.Failed,
			TasksAssigned:  counts.Assigned,
			TasksQueued:    counts.Queued,
			TotalAgents:    summary.Total,
			AvgSuccessRate: summary.AvgSuccessRate,
			Notes:          fmt.Sprintf("training_tasks=%d", training),
		}
		if summary.Top != nil {
			res.Report.TopAgentID = summary.Top.ID
			res.Report.TopAgentSuccessRate = summary.Top.SuccessRate
		}
		if err := tx.UpsertDailyReport(ctx, res.Report); err != nil {
			return err
		}
		stored, err := tx.GetDailyReport(ctx, day)
		if err != nil {
			return err
		}
		res.Report = *stored
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	slog.Info("Daily report stored",
		"day", day,
		"total_tasks", res.Report.TotalTasks,
		"training_created", len(res.Created),
		"deduped", res.Deduped,
		"capped", res.Capped)
	a.metrics.TrainingTasksCreated(len(res.Created))

	if a.notifier != nil {
		if err := a.notifier.NotifyDaily(ctx, res.Report, len(res.Created)); err != nil {
			slog.Warn("Daily notification failed", "day", day, "error", err)
		}
	}
	return res, nil
}
