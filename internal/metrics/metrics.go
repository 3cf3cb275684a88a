// Package metrics exposes Prometheus collectors for dispatch, outcome,
// learning and batch-job activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hfactory"

// Metrics holds the factory's collectors. A nil *Metrics is valid and
// records nothing, so components can run without instrumentation.
type Metrics struct {
	dispatch       *prometheus.CounterVec
	outcomes       *prometheus.CounterVec
	learning       prometheus.Counter
	training       prometheus.Counter
	requeued       prometheus.Counter
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	queueDepth     prometheus.Gauge
	intakeMessages *prometheus.CounterVec
}

// MustNewMetrics builds the collectors and registers them with reg. It
// panics on registration conflicts, like the promauto helpers. A nil reg
// uses the default registerer.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Dispatch attempts by target family and result.",
		}, []string{"family", "result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Recorded assignment outcomes by status.",
		}, []string{"status"}),
		learning: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learning_applied_total",
			Help:      "Assignments folded into agent state by the learning engine.",
		}),
		training: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_tasks_created_total",
			Help:      "Training tasks synthesized by the daily aggregator.",
		}),
		requeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requeued_total",
			Help:      "Stale assigned tasks returned to the queue.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Batch job runs by job and final status.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Batch job run duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Tasks currently queued.",
		}),
		intakeMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "messages_total",
			Help:      "Outcome messages consumed by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.dispatch, m.outcomes, m.learning, m.training, m.requeued,
		m.jobRuns, m.jobDuration, m.queueDepth, m.intakeMessages)
	return m
}

// Dispatched counts one dispatch attempt. family is empty for system-wide
// fallbacks.
func (m *Metrics) Dispatched(family, result string) {
	if m == nil {
		return
	}
	if family == "" {
		family = "any"
	}
	m.dispatch.WithLabelValues(family, result).Inc()
}

func (m *Metrics) OutcomeRecorded(status string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) LearningApplied(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.learning.Add(float64(n))
}

func (m *Metrics) TrainingTasksCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.training.Add(float64(n))
}

func (m *Metrics) Requeued(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.requeued.Add(float64(n))
}

// JobFinished records a batch job run and its duration.
func (m *Metrics) JobFinished(job, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) IntakeMessage(result string) {
	if m == nil {
		return
	}
	m.intakeMessages.WithLabelValues(result).Inc()
}
