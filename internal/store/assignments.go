package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
)

const assignmentColumns = `a.id, a.task_id, a.agent_id, COALESCE(a.decision_reason, ''), a.assigned_at,
	a.completed_at, COALESCE(a.result_status, ''), COALESCE(a.result_notes, ''), a.abandoned_at,
	COALESCE(a.counters_applied, 0)`

func scanAssignment(row rowScanner, extra ...any) (Assignment, error) {
	var (
		a                      Assignment
		assignedAt             string
		completedAt, abandoned sql.NullString
		result                 string
		countersApplied        int
	)
	dest := []any{&a.ID, &a.TaskID, &a.AgentID, &a.DecisionReason, &assignedAt,
		&completedAt, &result, &a.ResultNotes, &abandoned, &countersApplied}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Assignment{}, err
	}
	a.AssignedAt = parseTime(assignedAt)
	a.CompletedAt = parseNullTime(completedAt)
	a.AbandonedAt = parseNullTime(abandoned)
	a.ResultStatus = factory.Outcome(result)
	a.CountersApplied = countersApplied != 0
	return a, nil
}

// InsertAssignment records a dispatch decision and returns the stored row.
func (q *Queries) InsertAssignment(ctx context.Context, a Assignment) (*Assignment, error) {
	if a.AssignedAt.IsZero() {
		a.AssignedAt = q.Now()
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO task_assignments (task_id, agent_id, decision_reason, assigned_at)
		VALUES (?, ?, ?, ?)`,
		a.TaskID, a.AgentID, a.DecisionReason, formatTime(a.AssignedAt))
	if err != nil {
		return nil, wrap("insert assignment", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return nil, wrap("insert assignment", err)
	}
	a.AssignedAt = a.AssignedAt.UTC().Truncate(time.Second)
	return &a, nil
}

// LatestAssignment returns the most recent assignment of a task. It returns
// factory.ErrNotFound when the task was never dispatched.
func (q *Queries) LatestAssignment(ctx context.Context, taskID int64) (*Assignment, error) {
	a, err := scanAssignment(q.q.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+` FROM task_assignments a
		WHERE a.task_id = ? ORDER BY a.id DESC LIMIT 1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assignment for task %d: %w", taskID, factory.ErrNotFound)
	}
	if err != nil {
		return nil, wrap("latest assignment", err)
	}
	return &a, nil
}

// CompleteAssignment stores the outcome of an open assignment. An assignment
// that already has an outcome, or was abandoned, is not overwritten.
func (q *Queries) CompleteAssignment(ctx context.Context, id int64, outcome factory.Outcome, notes string) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE task_assignments SET result_status = ?, result_notes = ?, completed_at = ?
		WHERE id = ? AND result_status IS NULL AND abandoned_at IS NULL`,
		string(outcome), notes, formatTime(q.Now()), id)
	if err != nil {
		return wrap("complete assignment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("complete assignment", err)
	}
	if n == 0 {
		return fmt.Errorf("assignment %d is already closed: %w", id, factory.ErrInvalidTransition)
	}
	return nil
}

// AbandonAssignment marks an open assignment as abandoned.
func (q *Queries) AbandonAssignment(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE task_assignments SET abandoned_at = ?
		WHERE id = ? AND result_status IS NULL AND abandoned_at IS NULL`,
		formatTime(q.Now()), id)
	if err != nil {
		return wrap("abandon assignment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assignment %d is already closed: %w", id, factory.ErrInvalidTransition)
	}
	return nil
}

// StaleAssignments returns the open, most recent assignments of assigned
// tasks that were made before cutoff, oldest first.
func (q *Queries) StaleAssignments(ctx context.Context, cutoff time.Time) ([]Assignment, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+assignmentColumns+` FROM task_assignments a
		JOIN tasks t ON t.id = a.task_id
		WHERE t.status = 'assigned'
			AND a.result_status IS NULL AND a.abandoned_at IS NULL
			AND a.id = (SELECT MAX(id) FROM task_assignments WHERE task_id = a.task_id)
			AND a.assigned_at < ?
		ORDER BY a.assigned_at ASC, a.id ASC`, formatTime(cutoff))
	if err != nil {
		return nil, wrap("stale assignments", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, wrap("scan assignment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("stale assignments", err)
	}
	return out, nil
}

// PendingLearning is an assignment with an outcome that has no learning log
// entry yet.
type PendingLearning struct {
	Assignment
	TaskType factory.TaskType
}

// UnlearnedAssignments lists assignments with a recorded outcome and no
// learning log entry, oldest first.
func (q *Queries) UnlearnedAssignments(ctx context.Context) ([]PendingLearning, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+assignmentColumns+`, COALESCE(t.task_type, 'general') FROM task_assignments a
		LEFT JOIN tasks t ON t.id = a.task_id
		LEFT JOIN learning_log l ON l.assignment_id = a.id
		WHERE a.result_status IS NOT NULL AND a.result_status != '' AND a.abandoned_at IS NULL
			AND l.id IS NULL
		ORDER BY a.id ASC`)
	if err != nil {
		return nil, wrap("unlearned assignments", err)
	}
	defer rows.Close()

	var out []PendingLearning
	for rows.Next() {
		var taskType string
		a, err := scanAssignment(rows, &taskType)
		if err != nil {
			return nil, wrap("scan assignment", err)
		}
		out = append(out, PendingLearning{Assignment: a, TaskType: factory.ParseTaskType(taskType)})
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("unlearned assignments", err)
	}
	return out, nil
}

// MarkCountersApplied flags an assignment as counted in its agent's
// counters. It reports false when the flag was already set.
func (q *Queries) MarkCountersApplied(ctx context.Context, id int64) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE task_assignments SET counters_applied = 1 WHERE id = ? AND COALESCE(counters_applied, 0) = 0`, id)
	if err != nil {
		return false, wrap("mark counters applied", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("mark counters applied", err)
	}
	return n == 1, nil
}

// MarkAllCountersApplied flags every assignment with an outcome as counted.
func (q *Queries) MarkAllCountersApplied(ctx context.Context) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE task_assignments SET counters_applied = 1
		WHERE result_status IN ('success', 'failed') AND abandoned_at IS NULL`)
	return wrap("mark all counters applied", err)
}

// TerminalCounts tallies outcomes per agent across every assignment with a
// recorded result.
func (q *Queries) TerminalCounts(ctx context.Context) (map[string]factory.Counters, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT agent_id,
			SUM(CASE WHEN result_status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result_status = 'failed' THEN 1 ELSE 0 END)
		FROM task_assignments
		WHERE result_status IN ('success', 'failed') AND abandoned_at IS NULL
		GROUP BY agent_id`)
	if err != nil {
		return nil, wrap("terminal counts", err)
	}
	defer rows.Close()

	out := make(map[string]factory.Counters)
	for rows.Next() {
		var (
			agentID string
			c       factory.Counters
		)
		if err := rows.Scan(&agentID, &c.SuccessRuns, &c.FailedRuns); err != nil {
			return nil, wrap("scan terminal counts", err)
		}
		out[agentID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("terminal counts", err)
	}
	return out, nil
}
