package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// StartJobRun records the start of a batch job and returns its run.
func (q *Queries) StartJobRun(ctx context.Context, jobName string) (*JobRun, error) {
	run := JobRun{
		RunID:     uuid.NewString(),
		JobName:   jobName,
		Status:    JobStatusRunning,
		StartedAt: q.Now().Truncate(time.Second),
	}
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO job_runs (run_id, job_name, status, started_at) VALUES (?, ?, ?, ?)`,
		run.RunID, run.JobName, run.Status, formatTime(run.StartedAt))
	if err != nil {
		return nil, wrap("start job run", err)
	}
	if run.ID, err = res.LastInsertId(); err != nil {
		return nil, wrap("start job run", err)
	}
	return &run, nil
}

// FinishJobRun closes a run with its final status and summary.
func (q *Queries) FinishJobRun(ctx context.Context, runID, status, summary string) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE job_runs SET status = ?, summary = ?, finished_at = ? WHERE run_id = ?`,
		status, summary, formatTime(q.Now()), runID)
	return wrap("finish job run", err)
}

// ListJobRuns returns recent runs, newest first, optionally for one job.
func (q *Queries) ListJobRuns(ctx context.Context, jobName string, limit int) ([]JobRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, run_id, job_name, status, COALESCE(summary, ''), started_at, finished_at FROM job_runs`
	args := []any{}
	if jobName != "" {
		query += ` WHERE job_name = ?`
		args = append(args, jobName)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list job runs", err)
	}
	defer rows.Close()

	var out []JobRun
	for rows.Next() {
		var (
			r        JobRun
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.JobName, &r.Status, &r.Summary, &started, &finished); err != nil {
			return nil, wrap("scan job run", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseNullTime(finished)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list job runs", err)
	}
	return out, nil
}
