// Package store persists agents, tasks, assignments, the learning log, skill
// levels, daily reports and job runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverModernc is the pure-Go SQLite driver (default).
	DriverModernc = "sqlite"
	// DriverMattn is the cgo SQLite driver.
	DriverMattn = "sqlite3"
)

// Options tune how the database is opened.
type Options struct {
	Driver      string
	BusyTimeout time.Duration
}

// Error wraps a persistence failure. Callers detect it with errors.As.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every read and write operation. Both Store and Tx embed it,
// so an operation runs either standalone or inside a transaction.
type Queries struct {
	q   querier
	now func() time.Time
}

// Store is the SQLite-backed source of truth.
type Store struct {
	Queries
	db *sql.DB
}

// Tx is a write transaction. Transactions begin IMMEDIATE so a
// select-then-update sequence cannot interleave with another writer.
type Tx struct {
	Queries
}

func dsn(driver, path string, busy time.Duration) string {
	ms := busy.Milliseconds()
	if driver == DriverMattn {
		return fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate", path, ms)
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_txlock=immediate", path, ms)
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, opts Options) (*Store, error) {
	driver := strings.TrimSpace(opts.Driver)
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open(driver, dsn(driver, path, opts.BusyTimeout))
	if err != nil {
		return nil, wrap("open", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, wrap("apply schema", err)
	}
	// Best-effort migrations for databases created by the older factory
	// scripts (no-op if the column exists).
	_, _ = db.Exec(`ALTER TABLE agents ADD COLUMN active INTEGER NOT NULL DEFAULT 1`)
	_, _ = db.Exec(`ALTER TABLE agents ADD COLUMN created_at TEXT`)
	_, _ = db.Exec(`ALTER TABLE agents ADD COLUMN updated_at TEXT`)
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN updated_at TEXT`)
	_, _ = db.Exec(`ALTER TABLE task_assignments ADD COLUMN result_notes TEXT`)
	_, _ = db.Exec(`ALTER TABLE task_assignments ADD COLUMN abandoned_at TEXT`)
	_, _ = db.Exec(`ALTER TABLE task_assignments ADD COLUMN counters_applied INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE learning_log ADD COLUMN run_id TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE skills ADD COLUMN name TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE skills ADD COLUMN level_min REAL NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE skills ADD COLUMN level_max REAL NOT NULL DEFAULT 100`)
	_, _ = db.Exec(`ALTER TABLE user_skills ADD COLUMN updated_at TEXT`)
	// Older scripts stored "fail" for failed outcomes.
	_, _ = db.Exec(`UPDATE task_assignments SET result_status = 'failed' WHERE result_status = 'fail'`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_assignments_task ON task_assignments(task_id, id)`)

	if _, err := db.Exec(skillSeed); err != nil {
		db.Close()
		return nil, wrap("seed skills", err)
	}

	return &Store{Queries: Queries{q: db, now: time.Now}, db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the time source (tests).
func (s *Store) SetClock(now func() time.Time) {
	s.Queries.now = now
}

// Now returns the store clock's current time in UTC.
func (q *Queries) Now() time.Time { return q.now().UTC() }

// InTx runs fn in a single transaction, committing when it returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin tx", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Tx{Queries: Queries{q: sqlTx, now: s.Queries.now}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return wrap("commit tx", err)
	}
	return nil
}

const timeLayout = time.RFC3339

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts RFC3339 and the naive ISO timestamps written by the
// older scripts (interpreted as UTC).
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t.UTC()
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// DayOf returns the UTC calendar day of t as YYYY-MM-DD.
func DayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
