package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatimatofatima/hyper-factory/internal/config"
	"github.com/fatimatofatima/hyper-factory/internal/daily"
	"github.com/fatimatofatima/hyper-factory/internal/dispatch"
	"github.com/fatimatofatima/hyper-factory/internal/intake"
	"github.com/fatimatofatima/hyper-factory/internal/learning"
	"github.com/fatimatofatima/hyper-factory/internal/metrics"
	"github.com/fatimatofatima/hyper-factory/internal/notify"
	"github.com/fatimatofatima/hyper-factory/internal/registry"
	"github.com/fatimatofatima/hyper-factory/internal/results"
	"github.com/fatimatofatima/hyper-factory/internal/scheduler"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// Batch job names as recorded in job_runs.
const (
	jobLearning  = "learning"
	jobDaily     = "daily"
	jobRequeue   = "requeue"
	jobRecompute = "recompute"
	jobDispatch  = "dispatch"
)

// app wires the services one command needs over a single store.
type app struct {
	store      *store.Store
	metrics    *metrics.Metrics
	publisher  *intake.KafkaPublisher
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	results    *results.Service
	learning   *learning.Engine
	daily      *daily.Aggregator
}

// openApp opens the configured database and builds the services. m may be
// nil for one-shot commands.
func openApp(c *config.Config, m *metrics.Metrics) (*app, error) {
	if err := config.EnsureDir(filepath.Dir(c.Paths.DBPath)); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(c.Paths.DBPath, store.Options{
		Driver:      c.Store.Driver,
		BusyTimeout: c.Store.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}

	a := &app{store: st, metrics: m}
	dispatchOpts := []dispatch.Option{
		dispatch.WithMetrics(m),
		dispatch.WithStaleAfter(c.Dispatch.StaleAfter),
	}
	if c.Kafka.Enabled() && c.Kafka.AssignmentsTopic != "" {
		a.publisher = intake.NewKafkaPublisher(c.Kafka.Brokers, c.Kafka.AssignmentsTopic)
		dispatchOpts = append(dispatchOpts, dispatch.WithPublisher(a.publisher))
	}
	dailyOpts := []daily.Option{daily.WithMetrics(m)}
	slackCfg := notify.SlackConfig{
		WebhookURL: c.Slack.WebhookURL,
		BotToken:   c.Slack.BotToken,
		Channel:    c.Slack.Channel,
	}
	if slackCfg.Enabled() {
		n, err := notify.NewSlack(slackCfg)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		dailyOpts = append(dailyOpts, daily.WithNotifier(n))
	}

	a.registry = registry.New(st)
	a.dispatcher = dispatch.New(st, dispatchOpts...)
	a.results = results.New(st, m)
	a.learning = learning.New(st, m)
	a.daily = daily.New(st, dailyOpts...)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// runJob runs fn as a recorded batch job.
func (a *app) runJob(ctx context.Context, name string, fn scheduler.JobFunc) (*store.JobRun, error) {
	return scheduler.RunJob(ctx, a.store, a.metrics, name, fn)
}

// withApp opens the app for the duration of fn.
func withApp(fn func(a *app) error) error {
	a, err := openApp(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func learningSummary(r learning.Result) string {
	return fmt.Sprintf("processed=%d agents_updated=%d skills_updated=%d unmapped=%d missing_agents=%d skipped=%d",
		r.Processed, r.AgentsUpdated, r.SkillsUpdated, r.Unmapped, r.MissingAgents, r.Skipped)
}

func dailySummary(r daily.Result) string {
	return fmt.Sprintf("day=%s total_tasks=%d training_created=%d deduped=%d capped=%d",
		r.Report.Day, r.Report.TotalTasks, len(r.Created), r.Deduped, r.Capped)
}

func recomputeSummary(r results.RecomputeResult) string {
	return fmt.Sprintf("agents=%d outcomes=%d unknown_agents=%d", r.Agents, r.Outcomes, len(r.UnknownAgents))
}

func requeueSummary(r dispatch.RequeueResult) string {
	return fmt.Sprintf("requeued=%d", len(r.TaskIDs))
}
