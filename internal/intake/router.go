package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/metrics"
	"github.com/fatimatofatima/hyper-factory/internal/results"
)

// OutcomeMessage is the JSON body executors produce on the outcomes topic.
type OutcomeMessage struct {
	TaskID int64  `json:"task_id"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Reporter applies an outcome: record it, then recompute agent counters.
type Reporter interface {
	Report(ctx context.Context, taskID int64, status, notes string) (*results.Recorded, results.RecomputeResult, error)
}

// Router feeds outcome messages from a Consumer into a Reporter.
type Router struct {
	consumer Consumer
	reporter Reporter
	metrics  *metrics.Metrics
}

func NewRouter(consumer Consumer, reporter Reporter, m *metrics.Metrics) *Router {
	return &Router{consumer: consumer, reporter: reporter, metrics: m}
}

// Run consumes until ctx is cancelled or the consumer closes. A bad message
// is logged and skipped; it never stops the loop.
func (r *Router) Run(ctx context.Context) error {
	if err := r.consumer.Start(ctx); err != nil {
		return fmt.Errorf("outcome intake: start consumer: %w", err)
	}
	defer r.consumer.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-r.consumer.Messages():
			if !ok {
				return nil
			}
			result := r.handle(ctx, msg)
			r.metrics.IntakeMessage(result)
		}
	}
}

// DecodeOutcome parses and validates an outcome message.
func DecodeOutcome(value []byte) (OutcomeMessage, error) {
	var m OutcomeMessage
	if err := json.Unmarshal(value, &m); err != nil {
		return OutcomeMessage{}, fmt.Errorf("%w: decode outcome: %v", factory.ErrInvalidInput, err)
	}
	if m.TaskID <= 0 {
		return OutcomeMessage{}, fmt.Errorf("%w: outcome without task_id", factory.ErrInvalidInput)
	}
	if _, err := factory.ParseOutcome(m.Status); err != nil {
		return OutcomeMessage{}, err
	}
	return m, nil
}

func (r *Router) handle(ctx context.Context, msg Message) string {
	m, err := DecodeOutcome(msg.Value)
	if err != nil {
		slog.Warn("Outcome intake: malformed message", "topic", msg.Topic, "error", err)
		return "malformed"
	}
	rec, rr, err := r.reporter.Report(ctx, m.TaskID, m.Status, m.Notes)
	switch {
	case errors.Is(err, factory.ErrNotFound), errors.Is(err, factory.ErrInvalidInput):
		slog.Warn("Outcome intake: rejected", "task_id", m.TaskID, "error", err)
		return "rejected"
	case rec == nil && err != nil:
		slog.Error("Outcome intake: apply failed", "task_id", m.TaskID, "error", err)
		return "error"
	case err != nil:
		// The outcome committed; only the follow-up recompute failed.
		slog.Error("Outcome intake: recompute failed", "task_id", m.TaskID, "error", err)
		return "applied"
	}
	slog.Info("Outcome intake: applied", "task_id", m.TaskID, "status", rec.Assignment.ResultStatus, "agents", rr.Agents)
	return "applied"
}
