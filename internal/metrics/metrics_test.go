package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.Dispatched("debugging", "assigned")
	m.Dispatched("", "assigned")
	m.Dispatched("", "assigned")
	m.OutcomeRecorded("failed")
	m.LearningApplied(3)
	m.LearningApplied(0)
	m.TrainingTasksCreated(2)
	m.Requeued(1)
	m.JobFinished("daily", "ok", 250*time.Millisecond)
	m.SetQueueDepth(7)
	m.IntakeMessage("applied")

	if got := testutil.ToFloat64(m.dispatch.WithLabelValues("debugging", "assigned")); got != 1 {
		t.Fatalf("dispatch debugging = %v", got)
	}
	if got := testutil.ToFloat64(m.dispatch.WithLabelValues("any", "assigned")); got != 2 {
		t.Fatalf("dispatch any = %v", got)
	}
	if got := testutil.ToFloat64(m.learning); got != 3 {
		t.Fatalf("learning = %v", got)
	}
	if got := testutil.ToFloat64(m.queueDepth); got != 7 {
		t.Fatalf("queue depth = %v", got)
	}
	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("daily", "ok")); got != 1 {
		t.Fatalf("job runs = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Dispatched("x", "y")
	m.OutcomeRecorded("success")
	m.LearningApplied(1)
	m.TrainingTasksCreated(1)
	m.Requeued(1)
	m.JobFinished("x", "ok", time.Second)
	m.SetQueueDepth(1)
	m.IntakeMessage("applied")
}
