package store

import (
	"time"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
)

// Agent is a dispatchable worker identity.
type Agent struct {
	ID          string    `json:"id"`
	Family      string    `json:"family"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	Level       string    `json:"level"`
	SalaryIndex float64   `json:"salary_index"`
	SuccessRuns int       `json:"success_runs"`
	FailedRuns  int       `json:"failed_runs"`
	TotalRuns   int       `json:"total_runs"`
	SuccessRate float64   `json:"success_rate"`
	Skills      []string  `json:"skills"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Counters returns the agent's run counters.
func (a Agent) Counters() factory.Counters {
	return factory.Counters{SuccessRuns: a.SuccessRuns, FailedRuns: a.FailedRuns}
}

// Task is a unit of work.
type Task struct {
	ID          int64            `json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Source      string           `json:"source"`
	Description string           `json:"description"`
	TaskType    factory.TaskType `json:"task_type"`
	Priority    factory.Priority `json:"priority"`
	Status      factory.Status   `json:"status"`
}

// Assignment links a task to the agent chosen for it and, later, the outcome.
type Assignment struct {
	ID              int64           `json:"id"`
	TaskID          int64           `json:"task_id"`
	AgentID         string          `json:"agent_id"`
	DecisionReason  string          `json:"decision_reason"`
	AssignedAt      time.Time       `json:"assigned_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	ResultStatus    factory.Outcome `json:"result_status,omitempty"` // empty until recorded
	ResultNotes     string          `json:"result_notes,omitempty"`
	AbandonedAt     *time.Time      `json:"abandoned_at,omitempty"`
	CountersApplied bool            `json:"counters_applied"`
}

// LearningLogEntry marks one assignment as folded into agent state.
type LearningLogEntry struct {
	ID           int64            `json:"id"`
	AssignmentID int64            `json:"assignment_id"`
	AgentID      string           `json:"agent_id"`
	TaskID       int64            `json:"task_id"`
	TaskType     factory.TaskType `json:"task_type"`
	ResultStatus factory.Outcome  `json:"result_status"`
	AppliedAt    time.Time        `json:"applied_at"`
	Delta        float64          `json:"delta"`
	SkillID      factory.SkillID  `json:"skill_id,omitempty"` // empty when the task type has no skill
	UserID       string           `json:"user_id"`
	Note         string           `json:"note"`
	RunID        string           `json:"run_id"`
}

// Skill bounds the level range of one skill.
type Skill struct {
	ID       factory.SkillID `json:"id"`
	Name     string          `json:"name"`
	LevelMin float64         `json:"level_min"`
	LevelMax float64         `json:"level_max"`
}

// Clamp bounds level into [LevelMin, LevelMax].
func (s Skill) Clamp(level float64) float64 {
	if level < s.LevelMin {
		return s.LevelMin
	}
	if level > s.LevelMax {
		return s.LevelMax
	}
	return level
}

// SkillLevel is one (user, skill) proficiency score.
type SkillLevel struct {
	UserID    string          `json:"user_id"`
	SkillID   factory.SkillID `json:"skill_id"`
	Level     float64         `json:"level"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DailyReport is the rollup row for one calendar day.
type DailyReport struct {
	Day                 string    `json:"day"`
	CreatedAt           time.Time `json:"created_at"`
	TotalTasks          int       `json:"total_tasks"`
	TasksDone           int       `json:"tasks_done"`
	TasksFailed         int       `json:"tasks_failed"`
	TasksAssigned       int       `json:"tasks_assigned"`
	TasksQueued         int       `json:"tasks_queued"`
	TotalAgents         int       `json:"total_agents"`
	AvgSuccessRate      float64   `json:"avg_success_rate"`
	TopAgentID          string    `json:"top_agent_id"`
	TopAgentSuccessRate float64   `json:"top_agent_success_rate"`
	Notes               string    `json:"notes"`
}

// JobRun records one execution of a batch job.
type JobRun struct {
	ID         int64      `json:"id"`
	RunID      string     `json:"run_id"`
	JobName    string     `json:"job_name"`
	Status     string     `json:"status"`
	Summary    string     `json:"summary"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

const (
	JobStatusRunning = "running"
	JobStatusOK      = "ok"
	JobStatusFailed  = "failed"
)

const Schema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	family TEXT NOT NULL DEFAULT '',
	role TEXT DEFAULT '',
	display_name TEXT DEFAULT '',
	level TEXT DEFAULT '',
	salary_index REAL NOT NULL DEFAULT 1.0,
	success_rate REAL NOT NULL DEFAULT 0.0,
	total_runs INTEGER NOT NULL DEFAULT 0,
	success_runs INTEGER NOT NULL DEFAULT 0,
	failed_runs INTEGER NOT NULL DEFAULT 0,
	skills TEXT NOT NULL DEFAULT '[]',
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT,
	updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_agents_family ON agents(family);

CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'cli',
	description TEXT NOT NULL,
	task_type TEXT NOT NULL DEFAULT 'general',
	priority TEXT NOT NULL DEFAULT 'normal',
	status TEXT NOT NULL DEFAULT 'queued',
	updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_source ON tasks(source);

CREATE TABLE IF NOT EXISTS task_assignments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES tasks(id),
	agent_id TEXT NOT NULL REFERENCES agents(id),
	decision_reason TEXT DEFAULT '',
	assigned_at TEXT NOT NULL,
	completed_at TEXT,
	result_status TEXT,
	result_notes TEXT,
	abandoned_at TEXT,
	counters_applied INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_assignments_agent ON task_assignments(agent_id);

CREATE TABLE IF NOT EXISTS learning_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	assignment_id INTEGER UNIQUE NOT NULL,
	agent_id TEXT,
	task_id INTEGER,
	task_type TEXT,
	result_status TEXT,
	applied_at TEXT NOT NULL,
	delta REAL NOT NULL DEFAULT 0,
	skill_id TEXT,
	user_id TEXT,
	note TEXT DEFAULT '',
	run_id TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_learning_applied ON learning_log(applied_at);

CREATE TABLE IF NOT EXISTS skills (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	level_min REAL NOT NULL DEFAULT 0,
	level_max REAL NOT NULL DEFAULT 100
);

CREATE TABLE IF NOT EXISTS user_skills (
	user_id TEXT NOT NULL,
	skill_id TEXT NOT NULL,
	level REAL NOT NULL DEFAULT 0,
	updated_at TEXT,
	PRIMARY KEY (user_id, skill_id)
);

CREATE TABLE IF NOT EXISTS daily_reports (
	day TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	total_tasks INTEGER,
	tasks_done INTEGER,
	tasks_failed INTEGER,
	tasks_assigned INTEGER,
	tasks_queued INTEGER,
	total_agents INTEGER,
	avg_success_rate REAL,
	top_agent_id TEXT,
	top_agent_success_rate REAL,
	notes TEXT
);

CREATE TABLE IF NOT EXISTS job_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT UNIQUE NOT NULL,
	job_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	summary TEXT DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_job_runs_name ON job_runs(job_name, started_at);
`

const skillSeed = `
INSERT OR IGNORE INTO skills (id, name, level_min, level_max) VALUES
	('debug_skills', 'Debugging', 0, 100),
	('system_architecture', 'System architecture', 0, 100),
	('teaching_skills', 'Teaching', 0, 100),
	('knowledge_research', 'Knowledge research', 0, 100);
`
