package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// DefaultSource tags tasks created without an explicit source.
const DefaultSource = "cli"

// NewTask is an enqueue request. Priority is a free-form label.
type NewTask struct {
	Description string
	Priority    string
	Source      string
}

// Enqueued is the persisted task plus whether its priority label was
// replaced by the default.
type Enqueued struct {
	Task            store.Task
	RequestedLabel  string
	PriorityCoerced bool
}

// Enqueue classifies the description and stores a queued task. An unknown
// priority label is coerced to normal and reported, never rejected.
func (d *Dispatcher) Enqueue(ctx context.Context, req NewTask) (*Enqueued, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return nil, fmt.Errorf("%w: task description is empty", factory.ErrInvalidInput)
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = DefaultSource
	}
	prio, known := factory.ParsePriority(req.Priority)
	if !known {
		slog.Warn("Unknown task priority coerced", "priority", req.Priority, "as", prio)
	}

	t, err := d.st.InsertTask(ctx, store.Task{
		Source:      source,
		Description: desc,
		TaskType:    factory.Classify(desc),
		Priority:    prio,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Task enqueued", "task_id", t.ID, "task_type", t.TaskType, "priority", t.Priority, "source", t.Source)
	d.refreshQueueDepth(ctx)
	return &Enqueued{Task: *t, RequestedLabel: req.Priority, PriorityCoerced: !known}, nil
}
