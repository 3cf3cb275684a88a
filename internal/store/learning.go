package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
)

// InsertLearningEntry writes a learning log entry unless one already exists
// for the assignment. It reports whether this call inserted the row; the
// unique assignment_id makes a concurrent second writer see false.
func (q *Queries) InsertLearningEntry(ctx context.Context, e LearningLogEntry) (bool, error) {
	if e.AppliedAt.IsZero() {
		e.AppliedAt = q.Now()
	}
	var skill any
	if e.SkillID != "" {
		skill = string(e.SkillID)
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO learning_log (assignment_id, agent_id, task_id, task_type, result_status,
			applied_at, delta, skill_id, user_id, note, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(assignment_id) DO NOTHING`,
		e.AssignmentID, e.AgentID, e.TaskID, string(e.TaskType), string(e.ResultStatus),
		formatTime(e.AppliedAt), e.Delta, skill, e.UserID, e.Note, e.RunID)
	if err != nil {
		return false, wrap("insert learning entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("insert learning entry", err)
	}
	return n == 1, nil
}

// ListLearningEntries returns learning log entries, newest first. limit <= 0
// means no limit.
func (q *Queries) ListLearningEntries(ctx context.Context, limit int) ([]LearningLogEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, assignment_id, COALESCE(agent_id, ''), COALESCE(task_id, 0), COALESCE(task_type, ''),
			COALESCE(result_status, ''), applied_at, COALESCE(delta, 0), COALESCE(skill_id, ''),
			COALESCE(user_id, ''), COALESCE(note, ''), COALESCE(run_id, '')
		FROM learning_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("list learning entries", err)
	}
	defer rows.Close()

	var out []LearningLogEntry
	for rows.Next() {
		var (
			e                           LearningLogEntry
			taskType, result, skill, at string
		)
		if err := rows.Scan(&e.ID, &e.AssignmentID, &e.AgentID, &e.TaskID, &taskType, &result, &at,
			&e.Delta, &skill, &e.UserID, &e.Note, &e.RunID); err != nil {
			return nil, wrap("scan learning entry", err)
		}
		e.TaskType = factory.TaskType(taskType)
		e.ResultStatus = factory.Outcome(result)
		e.SkillID = factory.SkillID(skill)
		e.AppliedAt = parseTime(at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list learning entries", err)
	}
	return out, nil
}

// CountLearningEntries counts learning log rows.
func (q *Queries) CountLearningEntries(ctx context.Context) (int, error) {
	var n int
	if err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM learning_log`).Scan(&n); err != nil {
		return 0, wrap("count learning entries", err)
	}
	return n, nil
}

// FailureGroup is the learning outcome tally for one agent and task type.
type FailureGroup struct {
	AgentID  string
	TaskType factory.TaskType
	Total    int
	Failed   int
}

// FailureGroups returns the (agent, task type) pairs with at least one
// failure among learning log entries applied on day, ordered by agent id
// then task type.
func (q *Queries) FailureGroups(ctx context.Context, day string) ([]FailureGroup, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT COALESCE(agent_id, ''), COALESCE(task_type, 'general'), COUNT(*),
			SUM(CASE WHEN result_status IN ('failed', 'fail') THEN 1 ELSE 0 END) AS failed
		FROM learning_log
		WHERE substr(applied_at, 1, 10) = ?
		GROUP BY agent_id, task_type
		HAVING failed > 0
		ORDER BY agent_id ASC, task_type ASC`, day)
	if err != nil {
		return nil, wrap("failure groups", err)
	}
	defer rows.Close()

	var out []FailureGroup
	for rows.Next() {
		var (
			g        FailureGroup
			taskType string
		)
		if err := rows.Scan(&g.AgentID, &taskType, &g.Total, &g.Failed); err != nil {
			return nil, wrap("scan failure group", err)
		}
		g.TaskType = factory.TaskType(taskType)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("failure groups", err)
	}
	return out, nil
}

// GetSkill returns the skill definition or nil when the skill is not
// catalogued.
func (q *Queries) GetSkill(ctx context.Context, id factory.SkillID) (*Skill, error) {
	var s Skill
	err := q.q.QueryRowContext(ctx,
		`SELECT id, COALESCE(name, ''), COALESCE(level_min, 0), COALESCE(level_max, 100) FROM skills WHERE id = ?`,
		string(id)).Scan(&s.ID, &s.Name, &s.LevelMin, &s.LevelMax)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get skill", err)
	}
	return &s, nil
}

// ListSkills returns the skill catalog ordered by id.
func (q *Queries) ListSkills(ctx context.Context) ([]Skill, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT id, COALESCE(name, ''), COALESCE(level_min, 0), COALESCE(level_max, 100) FROM skills ORDER BY id`)
	if err != nil {
		return nil, wrap("list skills", err)
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		var s Skill
		if err := rows.Scan(&s.ID, &s.Name, &s.LevelMin, &s.LevelMax); err != nil {
			return nil, wrap("scan skill", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list skills", err)
	}
	return out, nil
}

// DeleteSkill removes a skill from the catalog. Levels already recorded for
// it are kept.
func (q *Queries) DeleteSkill(ctx context.Context, id factory.SkillID) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM skills WHERE id = ?`, string(id))
	return wrap("delete skill", err)
}

// GetSkillLevel returns the level of (user, skill). The second result is
// false when no level has been recorded.
func (q *Queries) GetSkillLevel(ctx context.Context, userID string, skillID factory.SkillID) (float64, bool, error) {
	var level float64
	err := q.q.QueryRowContext(ctx,
		`SELECT level FROM user_skills WHERE user_id = ? AND skill_id = ?`, userID, string(skillID)).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrap("get skill level", err)
	}
	return level, true, nil
}

// UpsertSkillLevel sets the level of (user, skill).
func (q *Queries) UpsertSkillLevel(ctx context.Context, userID string, skillID factory.SkillID, level float64) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO user_skills (user_id, skill_id, level, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, skill_id) DO UPDATE SET level = excluded.level, updated_at = excluded.updated_at`,
		userID, string(skillID), level, formatTime(q.Now()))
	return wrap("upsert skill level", err)
}

// ListSkillLevels returns recorded skill levels, for one user when userID is
// non-empty, ordered by user then skill.
func (q *Queries) ListSkillLevels(ctx context.Context, userID string) ([]SkillLevel, error) {
	query := `SELECT user_id, skill_id, level, COALESCE(updated_at, '') FROM user_skills`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY user_id, skill_id`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list skill levels", err)
	}
	defer rows.Close()

	var out []SkillLevel
	for rows.Next() {
		var (
			l         SkillLevel
			skill, at string
		)
		if err := rows.Scan(&l.UserID, &skill, &l.Level, &at); err != nil {
			return nil, wrap("scan skill level", err)
		}
		l.SkillID = factory.SkillID(skill)
		l.UpdatedAt = parseTime(at)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list skill levels", err)
	}
	return out, nil
}
