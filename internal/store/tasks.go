package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
)

const taskColumns = `id, created_at, COALESCE(updated_at, ''), COALESCE(source, ''), COALESCE(description, ''),
	COALESCE(task_type, 'general'), COALESCE(priority, 'normal'), status`

// Dispatch order: priority tier, then age, then id. Unknown legacy labels
// rank as normal, matching how enqueue coerces them.
const queueOrder = `ORDER BY CASE LOWER(priority) WHEN 'high' THEN 0 WHEN 'low' THEN 2 ELSE 1 END ASC,
	created_at ASC, id ASC`

func scanTask(row rowScanner) (Task, error) {
	var (
		t                    Task
		createdAt, updatedAt string
		taskType, priority   string
		status               string
	)
	if err := row.Scan(&t.ID, &createdAt, &updatedAt, &t.Source, &t.Description, &taskType, &priority, &status); err != nil {
		return Task{}, err
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	t.TaskType = factory.ParseTaskType(taskType)
	t.Priority, _ = factory.ParsePriority(priority)
	t.Status = factory.Status(status)
	return t, nil
}

// InsertTask persists t as a new queued task and returns the stored row.
// CreatedAt defaults to the store clock.
func (q *Queries) InsertTask(ctx context.Context, t Task) (*Task, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = q.Now()
	}
	t.UpdatedAt = t.CreatedAt
	t.Status = factory.StatusQueued
	if t.TaskType == "" {
		t.TaskType = factory.TypeGeneral
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO tasks (created_at, source, description, task_type, priority, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(t.CreatedAt), t.Source, t.Description, string(t.TaskType), t.Priority.String(),
		string(t.Status), formatTime(t.UpdatedAt))
	if err != nil {
		return nil, wrap("insert task", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return nil, wrap("insert task", err)
	}
	t.CreatedAt = t.CreatedAt.UTC().Truncate(time.Second)
	t.UpdatedAt = t.CreatedAt
	return &t, nil
}

// GetTask returns the task with the given id or factory.ErrNotFound.
func (q *Queries) GetTask(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTask(q.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, factory.ErrNotFound)
	}
	if err != nil {
		return nil, wrap("get task", err)
	}
	return &t, nil
}

// NextQueuedTask returns the queued task that dispatches next, or nil.
func (q *Queries) NextQueuedTask(ctx context.Context) (*Task, error) {
	t, err := scanTask(q.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = 'queued' `+queueOrder+` LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("next queued task", err)
	}
	return &t, nil
}

// ListQueue returns queued tasks in dispatch order. limit <= 0 means no limit.
func (q *Queries) ListQueue(ctx context.Context, limit int) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = 'queued' ` + queueOrder
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := q.q.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap("list queue", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrap("scan task", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list queue", err)
	}
	return out, nil
}

// QueueDepth counts queued tasks.
func (q *Queries) QueueDepth(ctx context.Context) (int, error) {
	var n int
	if err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status = 'queued'`).Scan(&n); err != nil {
		return 0, wrap("queue depth", err)
	}
	return n, nil
}

// TransitionTask moves a task from one status to another. The update is
// conditional on the current status, so a concurrent writer that got there
// first makes this call fail with factory.ErrInvalidTransition.
func (q *Queries) TransitionTask(ctx context.Context, id int64, from, to factory.Status) error {
	if !factory.CanTransition(from, to) {
		return fmt.Errorf("task %d %s -> %s: %w", id, from, to, factory.ErrInvalidTransition)
	}
	res, err := q.q.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(q.Now()), id, string(from))
	if err != nil {
		return wrap("transition task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("transition task", err)
	}
	if n == 1 {
		return nil
	}

	cur, err := q.GetTask(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("task %d is %s, not %s: %w", id, cur.Status, from, factory.ErrInvalidTransition)
}

// StatusCounts is a task-status histogram.
type StatusCounts struct {
	Total    int
	Queued   int
	Assigned int
	Done     int
	Failed   int
}

// TaskStatusCounts returns the status histogram of tasks created on day
// (YYYY-MM-DD, UTC).
func (q *Queries) TaskStatusCounts(ctx context.Context, day string) (StatusCounts, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE substr(created_at, 1, 10) = ? GROUP BY status`, day)
	if err != nil {
		return StatusCounts{}, wrap("task status counts", err)
	}
	defer rows.Close()

	var c StatusCounts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, wrap("scan status count", err)
		}
		c.Total += n
		switch factory.Status(status) {
		case factory.StatusQueued:
			c.Queued = n
		case factory.StatusAssigned:
			c.Assigned = n
		case factory.StatusDone:
			c.Done = n
		case factory.StatusFailed:
			c.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return StatusCounts{}, wrap("task status counts", err)
	}
	return c, nil
}

// CountTasksWithPrefix counts tasks from source whose description starts
// with prefix. An empty prefix counts every task from source.
func (q *Queries) CountTasksWithPrefix(ctx context.Context, source, prefix string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE source = ? AND substr(description, 1, length(?)) = ?`,
		source, prefix, prefix).Scan(&n)
	if err != nil {
		return 0, wrap("count tasks", err)
	}
	return n, nil
}
