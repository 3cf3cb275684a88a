package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fatimatofatima/hyper-factory/internal/metrics"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// JobCategory classifies jobs for semaphore-based concurrency limits.
type JobCategory string

const (
	// CategoryBatch covers jobs that scan the ledger (learning, daily, recompute).
	CategoryBatch    JobCategory = "batch"
	CategoryDispatch JobCategory = "dispatch"
	CategoryDefault  JobCategory = "default"
)

// JobFunc performs one run of a job and returns a one-line summary.
type JobFunc func(ctx context.Context) (string, error)

// Job defines a schedulable unit of work.
type Job struct {
	Name     string      // Unique job identifier, recorded in job_runs.
	Cron     *CronExpr   // Parsed cron expression.
	Category JobCategory // For semaphore selection.
	Run      JobFunc
}

// Config holds scheduler settings. An empty cron expression disables that job.
type Config struct {
	Enabled        bool          `json:"enabled" envconfig:"ENABLED"`
	TickInterval   time.Duration `json:"tickInterval" envconfig:"TICK_INTERVAL"`
	MaxConcBatch   int           `json:"maxConcBatch" envconfig:"MAX_CONC_BATCH"`
	MaxConcDefault int           `json:"maxConcDefault" envconfig:"MAX_CONC_DEFAULT"`
	LockPath       string        `json:"lockPath" envconfig:"LOCK_PATH"`
	LearningCron   string        `json:"learningCron" envconfig:"LEARNING_CRON"`
	DailyCron      string        `json:"dailyCron" envconfig:"DAILY_CRON"`
	RequeueCron    string        `json:"requeueCron" envconfig:"REQUEUE_CRON"`
	RecomputeCron  string        `json:"recomputeCron" envconfig:"RECOMPUTE_CRON"`
	DispatchCron   string        `json:"dispatchCron" envconfig:"DISPATCH_CRON"`
}

// DefaultConfig returns sensible scheduler defaults. Auto-dispatch and
// scheduled recompute are off unless configured.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Enabled:        true,
		TickInterval:   60 * time.Second,
		MaxConcBatch:   1,
		MaxConcDefault: 3,
		LockPath:       filepath.Join(home, ".hfactory", "scheduler.lock"),
		LearningCron:   "*/15 * * * *",
		DailyCron:      "55 23 * * *",
		RequeueCron:    "0 * * * *",
	}
}

// Scheduler manages job registration, tick dispatch, and concurrency control.
type Scheduler struct {
	cfg        Config
	store      *store.Store
	metrics    *metrics.Metrics
	jobs       map[string]*Job
	mu         sync.RWMutex
	semaphores map[JobCategory]*Semaphore
	lock       *FileLock
	running    sync.WaitGroup
}

// New creates a Scheduler. Runs are recorded in st's job_runs table.
func New(cfg Config, st *store.Store, m *metrics.Metrics) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 60 * time.Second
	}
	if cfg.MaxConcBatch <= 0 {
		cfg.MaxConcBatch = 1
	}
	if cfg.MaxConcDefault <= 0 {
		cfg.MaxConcDefault = 3
	}
	if cfg.LockPath == "" {
		cfg.LockPath = DefaultConfig().LockPath
	}

	return &Scheduler{
		cfg:     cfg,
		store:   st,
		metrics: m,
		jobs:    make(map[string]*Job),
		semaphores: map[JobCategory]*Semaphore{
			CategoryBatch:    NewSemaphore(cfg.MaxConcBatch),
			CategoryDispatch: NewSemaphore(1),
			CategoryDefault:  NewSemaphore(cfg.MaxConcDefault),
		},
		lock: NewFileLock(cfg.LockPath),
	}
}

// Register adds a job to the scheduler.
func (s *Scheduler) Register(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = job
	slog.Info("Scheduler job registered", "name", job.Name, "category", job.Category)
}

// RegisterCron parses expr and registers fn under name. An empty expr is a
// no-op so disabled jobs can be wired unconditionally.
func (s *Scheduler) RegisterCron(name, expr string, category JobCategory, fn JobFunc) error {
	if expr == "" {
		slog.Debug("Scheduler job disabled", "name", name)
		return nil
	}
	cron, err := ParseCron(expr)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.Register(&Job{Name: name, Cron: cron, Category: category, Run: fn})
	return nil
}

// Unregister removes a job by name.
func (s *Scheduler) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, name)
}

// Jobs returns the current registered jobs sorted by name.
func (s *Scheduler) Jobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Run starts the scheduler tick loop. Blocks until context is cancelled,
// then waits for in-flight jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Scheduler started", "tick", s.cfg.TickInterval, "jobs", len(s.Jobs()))
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.running.Wait()
			slog.Info("Scheduler stopped")
			return ctx.Err()
		case t := <-ticker.C:
			s.tick(ctx, t)
		}
	}
}

// tick is called every TickInterval. Acquires the global file lock, then
// starts any matching jobs.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	acquired, err := s.lock.TryLock()
	if err != nil {
		slog.Warn("Scheduler lock error", "error", err)
		return
	}
	if !acquired {
		slog.Debug("Scheduler tick skipped: lock held by another process")
		return
	}
	defer s.lock.Unlock()

	// Matching is done in UTC so cron expressions line up with report days.
	now = now.UTC()
	for _, job := range s.Jobs() {
		if !job.Cron.Matches(now) {
			continue
		}
		s.dispatch(ctx, job)
	}
}

// dispatch runs a job asynchronously if a semaphore slot is available.
func (s *Scheduler) dispatch(ctx context.Context, job *Job) {
	sem := s.semaphores[job.Category]
	if sem == nil {
		sem = s.semaphores[CategoryDefault]
	}

	if !sem.TryAcquire() {
		slog.Warn("Scheduler job skipped: concurrency limit", "job", job.Name, "category", job.Category)
		return
	}

	slog.Info("Scheduler dispatching job", "job", job.Name)

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer sem.Release()
		if _, err := RunJob(ctx, s.store, s.metrics, job.Name, job.Run); err != nil {
			slog.Error("Scheduler job failed", "job", job.Name, "error", err)
		}
	}()
}

// RunNow runs the named job synchronously, waiting for a slot in its
// category.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*store.JobRun, error) {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("scheduler: no job named %q", name)
	}
	sem := s.semaphores[job.Category]
	if sem == nil {
		sem = s.semaphores[CategoryDefault]
	}
	if err := sem.Acquire(ctx); err != nil {
		return nil, err
	}
	defer sem.Release()
	return RunJob(ctx, s.store, s.metrics, job.Name, job.Run)
}

// RunJob executes fn once, recording the run in job_runs and metrics. The
// returned run carries the final status and summary. The job's own error is
// returned as is; failing to record the run is logged.
func RunJob(ctx context.Context, st *store.Store, m *metrics.Metrics, name string, fn JobFunc) (*store.JobRun, error) {
	run, err := st.StartJobRun(ctx, name)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	summary, jobErr := fn(ctx)
	run.Status = store.JobStatusOK
	run.Summary = summary
	if jobErr != nil {
		run.Status = store.JobStatusFailed
		run.Summary = jobErr.Error()
	}

	// Record completion even when ctx was cancelled mid-run.
	finishCtx := context.WithoutCancel(ctx)
	if err := st.FinishJobRun(finishCtx, run.RunID, run.Status, run.Summary); err != nil {
		slog.Warn("Job run not recorded", "job", name, "run_id", run.RunID, "error", err)
	}
	finished := st.Now()
	run.FinishedAt = &finished
	m.JobFinished(name, run.Status, time.Since(started))
	slog.Info("Job finished", "job", name, "run_id", run.RunID, "status", run.Status, "summary", run.Summary)
	return run, jobErr
}
