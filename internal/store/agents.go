package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
)

const agentColumns = `id, COALESCE(family, ''), COALESCE(role, ''), COALESCE(display_name, ''),
	COALESCE(level, ''), COALESCE(salary_index, 1.0), COALESCE(success_runs, 0),
	COALESCE(failed_runs, 0), COALESCE(skills, '[]'), COALESCE(active, 1),
	COALESCE(created_at, ''), COALESCE(updated_at, '')`

// Runs and success rate derived from the counters. The stored total_runs and
// success_rate columns are a cache and are never read back.
const (
	runsExpr = `(COALESCE(success_runs, 0) + COALESCE(failed_runs, 0))`
	rateExpr = `(CASE WHEN ` + runsExpr + ` = 0 THEN 0.0 ELSE 1.0 * COALESCE(success_runs, 0) / ` + runsExpr + ` END)`
)

// Best-first dispatch order: success rate, then experience, then id so ties
// resolve the same way on every call.
const agentOrder = `ORDER BY ` + rateExpr + ` DESC, ` + runsExpr + ` DESC, id ASC`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (Agent, error) {
	var (
		a                    Agent
		skills               string
		active               int
		createdAt, updatedAt string
	)
	if err := row.Scan(&a.ID, &a.Family, &a.Role, &a.DisplayName, &a.Level, &a.SalaryIndex,
		&a.SuccessRuns, &a.FailedRuns, &skills, &active, &createdAt, &updatedAt); err != nil {
		return Agent{}, err
	}
	c := a.Counters()
	a.TotalRuns = c.Total()
	a.SuccessRate = c.SuccessRate()
	a.Skills = decodeSkills(skills)
	a.Active = active != 0
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func decodeSkills(raw string) []string {
	var skills []string
	if err := json.Unmarshal([]byte(raw), &skills); err != nil {
		return nil
	}
	return skills
}

func encodeSkills(skills []string) string {
	if len(skills) == 0 {
		return "[]"
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// UpsertAgent inserts a new agent or refreshes the descriptive fields of an
// existing one. Counters of an existing agent are never touched here; a new
// agent starts with a's counters normalised. Reports whether a row was created.
func (q *Queries) UpsertAgent(ctx context.Context, a Agent) (bool, error) {
	var exists int
	err := q.q.QueryRowContext(ctx, `SELECT 1 FROM agents WHERE id = ?`, a.ID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, q.InsertAgent(ctx, a)
	case err != nil:
		return false, wrap("lookup agent", err)
	}

	now := formatTime(q.Now())
	_, err = q.q.ExecContext(ctx, `
		UPDATE agents SET family = ?, role = ?, display_name = ?, level = ?, salary_index = ?,
			skills = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		a.Family, a.Role, a.DisplayName, a.Level, a.SalaryIndex, encodeSkills(a.Skills),
		boolToInt(a.Active), now, a.ID)
	if err != nil {
		return false, wrap("update agent", err)
	}
	return false, nil
}

// InsertAgent creates an agent row. total_runs and success_rate are derived
// from the given success and failure counts.
func (q *Queries) InsertAgent(ctx context.Context, a Agent) error {
	c := factory.Counters{SuccessRuns: a.SuccessRuns, FailedRuns: a.FailedRuns}
	now := formatTime(q.Now())
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO agents (id, family, role, display_name, level, salary_index,
			success_rate, total_runs, success_runs, failed_runs, skills, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Family, a.Role, a.DisplayName, a.Level, a.SalaryIndex,
		c.SuccessRate(), c.Total(), c.SuccessRuns, c.FailedRuns, encodeSkills(a.Skills),
		boolToInt(a.Active), now, now)
	if err != nil {
		return wrap("insert agent", err)
	}
	return nil
}

// GetAgent returns the agent with the given id or factory.ErrNotFound.
func (q *Queries) GetAgent(ctx context.Context, id string) (*Agent, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %q: %w", id, factory.ErrNotFound)
	}
	if err != nil {
		return nil, wrap("get agent", err)
	}
	return &a, nil
}

// ListAgents returns every agent, best performers first.
func (q *Queries) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents `+agentOrder)
	if err != nil {
		return nil, wrap("list agents", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, wrap("scan agent", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list agents", err)
	}
	return out, nil
}

// BestAgent returns the best active agent in family, or system-wide when
// family is empty. It returns nil when no candidate exists.
func (q *Queries) BestAgent(ctx context.Context, family factory.Family) (*Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE COALESCE(active, 1) = 1`
	var args []any
	if family != "" {
		query += ` AND family = ?`
		args = append(args, string(family))
	}
	query += ` ` + agentOrder + ` LIMIT 1`

	a, err := scanAgent(q.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("best agent", err)
	}
	return &a, nil
}

// SetAgentActive toggles whether an agent may receive work.
func (q *Queries) SetAgentActive(ctx context.Context, id string, active bool) error {
	res, err := q.q.ExecContext(ctx, `UPDATE agents SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), formatTime(q.Now()), id)
	if err != nil {
		return wrap("set agent active", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %q: %w", id, factory.ErrNotFound)
	}
	return nil
}

// SetAgentCounters overwrites an agent's counters. total_runs and
// success_rate are always derived from c.
func (q *Queries) SetAgentCounters(ctx context.Context, id string, c factory.Counters) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE agents SET success_runs = ?, failed_runs = ?, total_runs = ?, success_rate = ?, updated_at = ?
		WHERE id = ?`,
		c.SuccessRuns, c.FailedRuns, c.Total(), c.SuccessRate(), formatTime(q.Now()), id)
	if err != nil {
		return wrap("set agent counters", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %q: %w", id, factory.ErrNotFound)
	}
	return nil
}

// ResetAllCounters zeroes every agent's counters.
func (q *Queries) ResetAllCounters(ctx context.Context) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE agents SET success_runs = 0, failed_runs = 0, total_runs = 0, success_rate = 0, updated_at = ?`,
		formatTime(q.Now()))
	return wrap("reset agent counters", err)
}

// AgentSummary aggregates the registry for reporting.
type AgentSummary struct {
	Total          int
	AvgSuccessRate float64
	Top            *Agent
}

// SummarizeAgents returns the agent count, the mean success rate over all
// agents and the top agent. Top is nil when the registry is empty.
func (q *Queries) SummarizeAgents(ctx context.Context) (AgentSummary, error) {
	var (
		s   AgentSummary
		avg sql.NullFloat64
	)
	if err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(`+rateExpr+`) FROM agents`).Scan(&s.Total, &avg); err != nil {
		return AgentSummary{}, wrap("summarize agents", err)
	}
	s.AvgSuccessRate = avg.Float64

	a, err := scanAgent(q.q.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents `+agentOrder+` LIMIT 1`))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return AgentSummary{}, wrap("top agent", err)
	default:
		s.Top = &a
	}
	return s, nil
}
