package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
)

// UpsertDailyReport writes the row for r.Day, replacing every measured
// column of an existing row. The created_at of an existing row is kept.
func (q *Queries) UpsertDailyReport(ctx context.Context, r DailyReport) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = q.Now()
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO daily_reports (day, created_at, total_tasks, tasks_done, tasks_failed, tasks_assigned,
			tasks_queued, total_agents, avg_success_rate, top_agent_id, top_agent_success_rate, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			total_tasks = excluded.total_tasks,
			tasks_done = excluded.tasks_done,
			tasks_failed = excluded.tasks_failed,
			tasks_assigned = excluded.tasks_assigned,
			tasks_queued = excluded.tasks_queued,
			total_agents = excluded.total_agents,
			avg_success_rate = excluded.avg_success_rate,
			top_agent_id = excluded.top_agent_id,
			top_agent_success_rate = excluded.top_agent_success_rate,
			notes = excluded.notes`,
		r.Day, formatTime(r.CreatedAt), r.TotalTasks, r.TasksDone, r.TasksFailed, r.TasksAssigned,
		r.TasksQueued, r.TotalAgents, r.AvgSuccessRate, r.TopAgentID, r.TopAgentSuccessRate, r.Notes)
	return wrap("upsert daily report", err)
}

// GetDailyReport returns the row for day or factory.ErrNotFound.
func (q *Queries) GetDailyReport(ctx context.Context, day string) (*DailyReport, error) {
	var (
		r   DailyReport
		at  string
		top sql.NullString
	)
	err := q.q.QueryRowContext(ctx, `
		SELECT day, created_at, COALESCE(total_tasks, 0), COALESCE(tasks_done, 0), COALESCE(tasks_failed, 0),
			COALESCE(tasks_assigned, 0), COALESCE(tasks_queued, 0), COALESCE(total_agents, 0),
			COALESCE(avg_success_rate, 0), top_agent_id, COALESCE(top_agent_success_rate, 0), COALESCE(notes, '')
		FROM daily_reports WHERE day = ?`, day).Scan(&r.Day, &at, &r.TotalTasks, &r.TasksDone, &r.TasksFailed,
		&r.TasksAssigned, &r.TasksQueued, &r.TotalAgents, &r.AvgSuccessRate, &top, &r.TopAgentSuccessRate, &r.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("daily report %s: %w", day, factory.ErrNotFound)
	}
	if err != nil {
		return nil, wrap("get daily report", err)
	}
	r.CreatedAt = parseTime(at)
	r.TopAgentID = top.String
	return &r, nil
}
