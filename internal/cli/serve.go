package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fatimatofatima/hyper-factory/internal/dispatch"
	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/intake"
	"github.com/fatimatofatima/hyper-factory/internal/metrics"
	"github.com/fatimatofatima/hyper-factory/internal/scheduler"
)

// maxDispatchPerRun bounds one scheduled dispatch drain.
const maxDispatchPerRun = 100

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, Kafka outcome intake and metrics endpoint",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNewMetrics(reg)

	a, err := openApp(cfg, m)
	if err != nil {
		return err
	}
	defer a.Close()

	if depth, err := a.store.QueueDepth(ctx); err == nil {
		m.SetQueueDepth(depth)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, logo)
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Scheduler.Enabled {
		sched, err := newScheduler(a)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s scheduler: %d jobs, tick %s\n", okMark("✓"), len(sched.Jobs()), cfg.Scheduler.TickInterval)
		now := time.Now().UTC()
		for _, j := range sched.Jobs() {
			fmt.Fprintf(out, "    %-10s %-14s next %s\n", j.Name, j.Cron, j.Cron.Next(now).Format(time.RFC3339))
		}
		g.Go(func() error {
			// Catch up on outcomes recorded while nothing was serving.
			if cfg.Scheduler.LearningCron != "" {
				if _, err := sched.RunNow(ctx, jobLearning); err != nil {
					slog.Warn("Startup learning run failed", "error", err)
				}
			}
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if cfg.Kafka.Enabled() && cfg.Kafka.OutcomesTopic != "" {
		consumer := intake.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, []string{cfg.Kafka.OutcomesTopic})
		router := intake.NewRouter(consumer, a.results, m)
		fmt.Fprintf(out, "%s outcome intake: %s on %s\n", okMark("✓"), cfg.Kafka.OutcomesTopic, cfg.Kafka.Brokers)
		g.Go(func() error { return router.Run(ctx) })
	}

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		fmt.Fprintf(out, "%s metrics: http://%s%s\n", okMark("✓"), cfg.Metrics.Addr, cfg.Metrics.Path)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("Factory serving", "db", cfg.Paths.DBPath)
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	err = g.Wait()
	slog.Info("Factory stopped")
	return err
}

// newScheduler registers every configured batch job on a new scheduler.
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sc := cfg.Scheduler
	sched := scheduler.New(scheduler.Config{
		Enabled:        sc.Enabled,
		TickInterval:   sc.TickInterval,
		MaxConcBatch:   sc.MaxConcBatch,
		MaxConcDefault: sc.MaxConcDefault,
		LockPath:       sc.LockPath,
	}, a.store, a.metrics)

	jobs := []struct {
		name     string
		expr     string
		category scheduler.JobCategory
		run      scheduler.JobFunc
	}{
		{jobLearning, sc.LearningCron, scheduler.CategoryBatch, func(ctx context.Context) (string, error) {
			res, err := a.learning.Apply(ctx)
			return learningSummary(res), err
		}},
		{jobDaily, sc.DailyCron, scheduler.CategoryBatch, func(ctx context.Context) (string, error) {
			res, err := a.daily.Run(ctx, "")
			return dailySummary(res), err
		}},
		{jobRecompute, sc.RecomputeCron, scheduler.CategoryBatch, func(ctx context.Context) (string, error) {
			res, err := a.results.RecomputeAgentStats(ctx)
			return recomputeSummary(res), err
		}},
		{jobRequeue, sc.RequeueCron, scheduler.CategoryDefault, func(ctx context.Context) (string, error) {
			res, err := a.dispatcher.RequeueStale(ctx, cfg.Dispatch.StaleAfter)
			return requeueSummary(res), err
		}},
		{jobDispatch, sc.DispatchCron, scheduler.CategoryDispatch, func(ctx context.Context) (string, error) {
			return drainQueue(ctx, a.dispatcher, maxDispatchPerRun)
		}},
	}
	for _, j := range jobs {
		if err := sched.RegisterCron(j.name, j.expr, j.category, j.run); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// drainQueue assigns queued tasks until the queue is empty, no agent is
// available, or limit assignments were made.
func drainQueue(ctx context.Context, d *dispatch.Dispatcher, limit int) (string, error) {
	assigned := 0
	for assigned < limit {
		dec, err := d.AssignNext(ctx)
		if errors.Is(err, factory.ErrNoCapacity) {
			return fmt.Sprintf("assigned=%d stopped=no_capacity", assigned), nil
		}
		if err != nil {
			return fmt.Sprintf("assigned=%d", assigned), err
		}
		if dec == nil {
			break
		}
		assigned++
	}
	return fmt.Sprintf("assigned=%d", assigned), nil
}

