// Package dispatch enqueues classified tasks, hands the next queued task to
// the best available agent and returns stale assignments to the queue.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/metrics"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// DefaultStaleAfter is how long an assignment may stay open before
// RequeueStale returns its task to the queue.
const DefaultStaleAfter = 24 * time.Hour

// anyFamily labels a fallback to the best agent system-wide.
const anyFamily = "any"

// Event announces a committed assignment to executors.
type Event struct {
	EventID      string    `json:"event_id"`
	AssignmentID int64     `json:"assignment_id"`
	TaskID       int64     `json:"task_id"`
	AgentID      string    `json:"agent_id"`
	TaskType     string    `json:"task_type"`
	Family       string    `json:"family"`
	Priority     string    `json:"priority"`
	Description  string    `json:"description"`
	Runner       string    `json:"runner"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// Publisher delivers assignment events.
type Publisher interface {
	PublishAssignment(ctx context.Context, ev Event) error
}

// Dispatcher implements the dispatch policy over the store.
type Dispatcher struct {
	st         *store.Store
	pub        Publisher
	metrics    *metrics.Metrics
	staleAfter time.Duration
}

type Option func(*Dispatcher)

// WithPublisher announces every committed assignment through p.
func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) { d.pub = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithStaleAfter sets the default RequeueStale threshold.
func WithStaleAfter(age time.Duration) Option {
	return func(d *Dispatcher) {
		if age > 0 {
			d.staleAfter = age
		}
	}
}

func New(st *store.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{st: st, staleAfter: DefaultStaleAfter}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decision is a committed dispatch.
type Decision struct {
	Task       store.Task
	Agent      store.Agent
	Assignment store.Assignment
	// Family is the family the agent was chosen from, or "any" when the
	// task had no family match and the system-wide best agent was used.
	Family   string
	Fallback bool
}

// Runner is the suggested executor command for the task.
func (d Decision) Runner() string {
	return d.Task.TaskType.Runner() + " " + shellQuote(d.Task.Description)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Reason renders the audit string stored with an assignment.
func Reason(t store.Task, family, agentID string) string {
	return fmt.Sprintf("task_type=%s, family=%s, priority=%s, picked_agent=%s",
		t.TaskType, family, t.Priority, agentID)
}

// AssignNext dispatches the highest-priority, oldest queued task. It returns
// (nil, nil) when nothing is queued and factory.ErrNoCapacity, with the task
// left queued, when no active agent exists. Selection, the assignment write
// and the status flip commit together.
func (d *Dispatcher) AssignNext(ctx context.Context) (*Decision, error) {
	var dec *Decision
	err := d.st.InTx(ctx, func(tx *store.Tx) error {
		task, err := tx.NextQueuedTask(ctx)
		if err != nil || task == nil {
			return err
		}

		family, ok := task.TaskType.Family()
		var agent *store.Agent
		if ok {
			if agent, err = tx.BestAgent(ctx, family); err != nil {
				return err
			}
		}
		label := string(family)
		fallback := agent == nil
		if fallback {
			if agent, err = tx.BestAgent(ctx, ""); err != nil {
				return err
			}
			label = anyFamily
		}
		if agent == nil {
			return fmt.Errorf("dispatch task %d: %w", task.ID, factory.ErrNoCapacity)
		}

		a, err := tx.InsertAssignment(ctx, store.Assignment{
			TaskID:         task.ID,
			AgentID:        agent.ID,
			DecisionReason: Reason(*task, label, agent.ID),
		})
		if err != nil {
			return err
		}
		if err := tx.TransitionTask(ctx, task.ID, factory.StatusQueued, factory.StatusAssigned); err != nil {
			return err
		}
		task.Status = factory.StatusAssigned
		dec = &Decision{Task: *task, Agent: *agent, Assignment: *a, Family: label, Fallback: fallback}
		return nil
	})
	if errors.Is(err, factory.ErrNoCapacity) {
		d.metrics.Dispatched("", "no_capacity")
		slog.Warn("No active agents to dispatch to")
		return nil, err
	}
	if err != nil {
		d.metrics.Dispatched("", "error")
		return nil, err
	}
	if dec == nil {
		d.metrics.Dispatched("", "empty")
		return nil, nil
	}

	slog.Info("Task assigned",
		"task_id", dec.Task.ID,
		"task_type", dec.Task.TaskType,
		"agent", dec.Agent.ID,
		"family", dec.Family,
		"fallback", dec.Fallback)
	d.metrics.Dispatched(dec.Family, "assigned")
	d.refreshQueueDepth(ctx)
	d.publish(ctx, dec)
	return dec, nil
}

func (d *Dispatcher) publish(ctx context.Context, dec *Decision) {
	if d.pub == nil {
		return
	}
	ev := Event{
		EventID:      uuid.NewString(),
		AssignmentID: dec.Assignment.ID,
		TaskID:       dec.Task.ID,
		AgentID:      dec.Agent.ID,
		TaskType:     string(dec.Task.TaskType),
		Family:       dec.Family,
		Priority:     dec.Task.Priority.String(),
		Description:  dec.Task.Description,
		Runner:       dec.Task.TaskType.Runner(),
		AssignedAt:   dec.Assignment.AssignedAt,
	}
	if err := d.pub.PublishAssignment(ctx, ev); err != nil {
		slog.Warn("Assignment event publish failed", "task_id", dec.Task.ID, "error", err)
	}
}

func (d *Dispatcher) refreshQueueDepth(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	n, err := d.st.QueueDepth(ctx)
	if err != nil {
		slog.Warn("Queue depth query failed", "error", err)
		return
	}
	d.metrics.SetQueueDepth(n)
}
