package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "factory.db"), Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// fixedClock returns a clock that advances one second per call so rows
// written in sequence get distinct, ordered timestamps.
func fixedClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		now := cur
		cur = cur.Add(time.Second)
		return now
	}
}

func TestOpenSeedsSkills(t *testing.T) {
	st := newTestStore(t)
	skills, err := st.ListSkills(context.Background())
	if err != nil {
		t.Fatalf("list skills: %v", err)
	}
	if len(skills) != 4 {
		t.Fatalf("expected 4 seeded skills, got %d", len(skills))
	}
	for _, s := range skills {
		if s.LevelMin != 0 || s.LevelMax != 100 {
			t.Fatalf("skill %s bounds = [%v,%v]", s.ID, s.LevelMin, s.LevelMax)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.db"), Options{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenMigratesLegacyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open(DriverModernc, path)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE agents (id TEXT PRIMARY KEY, family TEXT, role TEXT, display_name TEXT, level TEXT,
			salary_index REAL, success_rate REAL, total_runs INTEGER, success_runs INTEGER, failed_runs INTEGER, skills TEXT);
		CREATE TABLE tasks (id INTEGER PRIMARY KEY AUTOINCREMENT, created_at TEXT, source TEXT, description TEXT,
			task_type TEXT, priority TEXT, status TEXT);
		CREATE TABLE task_assignments (id INTEGER PRIMARY KEY AUTOINCREMENT, task_id INTEGER, agent_id TEXT,
			decision_reason TEXT, assigned_at TEXT, completed_at TEXT, result_status TEXT, result_notes TEXT);
		INSERT INTO agents (id, family, success_rate, total_runs, success_runs, failed_runs, skills)
			VALUES ('debug_expert', 'debugging', 0, 1, 0, 1, '["debug"]');
		INSERT INTO tasks (created_at, source, description, task_type, priority, status)
			VALUES ('2025-01-01T08:00:00', 'cli', 'fix crash', 'debug', 'high', 'failed');
		INSERT INTO task_assignments (task_id, agent_id, decision_reason, assigned_at, completed_at, result_status)
			VALUES (1, 'debug_expert', 'legacy', '2025-01-01T08:01:00', '2025-01-01T09:00:00', 'fail');`)
	if err != nil {
		t.Fatalf("create legacy schema: %v", err)
	}
	_ = db.Close()

	st, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open migrated store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	a, err := st.LatestAssignment(ctx, 1)
	if err != nil {
		t.Fatalf("latest assignment: %v", err)
	}
	if a.ResultStatus != factory.OutcomeFailed {
		t.Fatalf("expected legacy fail to be rewritten as failed, got %q", a.ResultStatus)
	}
	if a.AssignedAt.IsZero() || a.AssignedAt.Location() != time.UTC {
		t.Fatalf("expected naive timestamp parsed as UTC, got %v", a.AssignedAt)
	}
	agent, err := st.GetAgent(ctx, "debug_expert")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if !agent.Active {
		t.Fatal("expected migrated agent to default to active")
	}
	if len(agent.Skills) != 1 || agent.Skills[0] != "debug" {
		t.Fatalf("unexpected skills %v", agent.Skills)
	}
}

func TestQueueOrder(t *testing.T) {
	st := newTestStore(t)
	st.SetClock(fixedClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for _, p := range []factory.Priority{factory.PriorityNormal, factory.PriorityHigh, factory.PriorityLow, factory.PriorityHigh} {
		if _, err := st.InsertTask(ctx, Task{Source: "test", Description: p.String(), Priority: p}); err != nil {
			t.Fatalf("insert task: %v", err)
		}
	}

	queue, err := st.ListQueue(ctx, 0)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	want := []int64{2, 4, 1, 3}
	if len(queue) != len(want) {
		t.Fatalf("expected %d queued tasks, got %d", len(want), len(queue))
	}
	for i, id := range want {
		if queue[i].ID != id {
			t.Fatalf("queue[%d] = task %d, want %d", i, queue[i].ID, id)
		}
	}

	next, err := st.NextQueuedTask(ctx)
	if err != nil {
		t.Fatalf("next queued: %v", err)
	}
	if next == nil || next.ID != 2 {
		t.Fatalf("expected task 2 next, got %+v", next)
	}
	depth, err := st.QueueDepth(ctx)
	if err != nil || depth != 4 {
		t.Fatalf("queue depth = %d, %v", depth, err)
	}
}

func TestNextQueuedTaskEmpty(t *testing.T) {
	st := newTestStore(t)
	next, err := st.NextQueuedTask(context.Background())
	if err != nil {
		t.Fatalf("next queued: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no task, got %+v", next)
	}
}

func TestInsertTaskDefaultsPriorityToNormal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.InsertTask(ctx, Task{Source: "test", Description: "no priority given"})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	var raw string
	if err := st.DB().QueryRowContext(ctx, `SELECT priority FROM tasks WHERE id = ?`, created.ID).Scan(&raw); err != nil {
		t.Fatalf("read priority: %v", err)
	}
	if raw != "normal" {
		t.Fatalf("stored priority = %q, want normal", raw)
	}
	got, err := st.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Priority != factory.PriorityNormal {
		t.Fatalf("priority = %v, want normal", got.Priority)
	}

	if _, err := st.InsertTask(ctx, Task{Source: "test", Description: "urgent", Priority: factory.PriorityHigh}); err != nil {
		t.Fatalf("insert high task: %v", err)
	}
	next, err := st.NextQueuedTask(ctx)
	if err != nil {
		t.Fatalf("next queued: %v", err)
	}
	if next == nil || next.Description != "urgent" {
		t.Fatalf("expected high task to jump the unset one, got %+v", next)
	}
}

func TestTransitionTaskIsConditional(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	task, err := st.InsertTask(ctx, Task{Source: "test", Description: "x"})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}

	if err := st.TransitionTask(ctx, task.ID, factory.StatusQueued, factory.StatusAssigned); err != nil {
		t.Fatalf("queued -> assigned: %v", err)
	}
	err = st.TransitionTask(ctx, task.ID, factory.StatusQueued, factory.StatusAssigned)
	if !errors.Is(err, factory.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second claim, got %v", err)
	}
	if err := st.TransitionTask(ctx, task.ID, factory.StatusAssigned, factory.StatusDone); err != nil {
		t.Fatalf("assigned -> done: %v", err)
	}
	err = st.TransitionTask(ctx, task.ID, factory.StatusDone, factory.StatusQueued)
	if !errors.Is(err, factory.ErrInvalidTransition) {
		t.Fatalf("expected terminal state to reject transition, got %v", err)
	}
	if !errors.Is(err, factory.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidTransition to wrap ErrInvalidInput")
	}

	err = st.TransitionTask(ctx, 999, factory.StatusQueued, factory.StatusAssigned)
	if !errors.Is(err, factory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing task, got %v", err)
	}
}

func TestBestAgentOrdering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	agents := []Agent{
		{ID: "b_debugger", Family: "debugging", Active: true},
		{ID: "a_debugger", Family: "debugging", Active: true},
		{ID: "veteran", Family: "debugging", SuccessRuns: 1, FailedRuns: 1, Active: true},
		{ID: "star", Family: "pipeline", SuccessRuns: 5, Active: true},
		{ID: "sleeper", Family: "debugging", SuccessRuns: 9, Active: false},
	}
	for _, a := range agents {
		if err := st.InsertAgent(ctx, a); err != nil {
			t.Fatalf("insert %s: %v", a.ID, err)
		}
	}

	best, err := st.BestAgent(ctx, factory.FamilyDebugging)
	if err != nil {
		t.Fatalf("best agent: %v", err)
	}
	if best == nil || best.ID != "veteran" {
		t.Fatalf("expected veteran, got %+v", best)
	}
	if best.TotalRuns != 2 || best.SuccessRate != 0.5 {
		t.Fatalf("expected derived counters, got total=%d rate=%v", best.TotalRuns, best.SuccessRate)
	}

	global, err := st.BestAgent(ctx, "")
	if err != nil {
		t.Fatalf("best agent system-wide: %v", err)
	}
	if global == nil || global.ID != "star" {
		t.Fatalf("expected star system-wide, got %+v", global)
	}

	none, err := st.BestAgent(ctx, factory.FamilyKnowledge)
	if err != nil {
		t.Fatalf("best agent knowledge: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no knowledge agent, got %s", none.ID)
	}

	if err := st.SetAgentCounters(ctx, "veteran", factory.Counters{}); err != nil {
		t.Fatalf("reset veteran: %v", err)
	}
	for i := 0; i < 3; i++ {
		best, err = st.BestAgent(ctx, factory.FamilyDebugging)
		if err != nil {
			t.Fatalf("best agent: %v", err)
		}
		if best.ID != "a_debugger" {
			t.Fatalf("expected id tie-break to pick a_debugger, got %s", best.ID)
		}
	}
}

func TestAgentRankingIgnoresStaleCachedColumns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for _, a := range []Agent{
		{ID: "drifted", Family: "debugging", FailedRuns: 1, Active: true},
		{ID: "honest", Family: "debugging", SuccessRuns: 1, Active: true},
	} {
		if err := st.InsertAgent(ctx, a); err != nil {
			t.Fatalf("insert %s: %v", a.ID, err)
		}
	}
	// Cached columns written by an older tool disagree with the counters.
	if _, err := st.DB().ExecContext(ctx, `UPDATE agents SET success_rate = 0.9, total_runs = 5 WHERE id = 'drifted'`); err != nil {
		t.Fatalf("corrupt drifted: %v", err)
	}
	if _, err := st.DB().ExecContext(ctx, `UPDATE agents SET success_rate = 0.5, total_runs = 1 WHERE id = 'honest'`); err != nil {
		t.Fatalf("corrupt honest: %v", err)
	}

	best, err := st.BestAgent(ctx, factory.FamilyDebugging)
	if err != nil {
		t.Fatalf("best agent: %v", err)
	}
	if best == nil || best.ID != "honest" {
		t.Fatalf("expected honest, got %+v", best)
	}
	if best.TotalRuns != 1 || best.SuccessRate != 1 {
		t.Fatalf("honest derived total=%d rate=%v, want 1 and 1", best.TotalRuns, best.SuccessRate)
	}

	drifted, err := st.GetAgent(ctx, "drifted")
	if err != nil {
		t.Fatalf("get drifted: %v", err)
	}
	if drifted.TotalRuns != 1 || drifted.SuccessRate != 0 {
		t.Fatalf("drifted derived total=%d rate=%v, want 1 and 0", drifted.TotalRuns, drifted.SuccessRate)
	}

	sum, err := st.SummarizeAgents(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Total != 2 || sum.AvgSuccessRate != 0.5 {
		t.Fatalf("summary total=%d avg=%v, want 2 and 0.5", sum.Total, sum.AvgSuccessRate)
	}
	if sum.Top == nil || sum.Top.ID != "honest" {
		t.Fatalf("expected honest on top, got %+v", sum.Top)
	}
}

func TestUpsertAgentKeepsCounters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.UpsertAgent(ctx, Agent{ID: "coach", Family: "training", Role: "coach", SuccessRuns: 3, FailedRuns: 1, Active: true})
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	created, err = st.UpsertAgent(ctx, Agent{ID: "coach", Family: "training", Role: "mentor", SuccessRuns: 0, Active: true})
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}

	a, err := st.GetAgent(ctx, "coach")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if a.Role != "mentor" {
		t.Fatalf("expected role refreshed, got %q", a.Role)
	}
	if a.SuccessRuns != 3 || a.FailedRuns != 1 || a.TotalRuns != 4 || a.SuccessRate != 0.75 {
		t.Fatalf("counters changed by upsert: %+v", a)
	}

	if _, err := st.GetAgent(ctx, "ghost"); !errors.Is(err, factory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.SetAgentActive(ctx, "ghost", false); !errors.Is(err, factory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.InsertAgent(ctx, Agent{ID: "worker", Family: "pipeline", Active: true}); err != nil {
		t.Fatalf("insert agent: %v", err)
	}
	task, err := st.InsertTask(ctx, Task{Source: "test", Description: "run pipeline", TaskType: factory.TypePipeline})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}

	if _, err := st.LatestAssignment(ctx, task.ID); !errors.Is(err, factory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before dispatch, got %v", err)
	}

	first, err := st.InsertAssignment(ctx, Assignment{TaskID: task.ID, AgentID: "worker", DecisionReason: "first"})
	if err != nil {
		t.Fatalf("insert assignment: %v", err)
	}
	if err := st.AbandonAssignment(ctx, first.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	second, err := st.InsertAssignment(ctx, Assignment{TaskID: task.ID, AgentID: "worker", DecisionReason: "second"})
	if err != nil {
		t.Fatalf("insert assignment: %v", err)
	}

	latest, err := st.LatestAssignment(ctx, task.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("expected latest assignment %d, got %d", second.ID, latest.ID)
	}

	if err := st.CompleteAssignment(ctx, first.ID, factory.OutcomeSuccess, ""); !errors.Is(err, factory.ErrInvalidTransition) {
		t.Fatalf("expected abandoned assignment to reject outcome, got %v", err)
	}
	if err := st.CompleteAssignment(ctx, second.ID, factory.OutcomeSuccess, "ok"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := st.CompleteAssignment(ctx, second.ID, factory.OutcomeFailed, "again"); !errors.Is(err, factory.ErrInvalidTransition) {
		t.Fatalf("expected second outcome to be rejected, got %v", err)
	}

	counts, err := st.TerminalCounts(ctx)
	if err != nil {
		t.Fatalf("terminal counts: %v", err)
	}
	if got := counts["worker"]; got.SuccessRuns != 1 || got.FailedRuns != 0 {
		t.Fatalf("unexpected terminal counts %+v", got)
	}

	pending, err := st.UnlearnedAssignments(ctx)
	if err != nil {
		t.Fatalf("unlearned: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID || pending[0].TaskType != factory.TypePipeline {
		t.Fatalf("unexpected pending learning %+v", pending)
	}

	changed, err := st.MarkCountersApplied(ctx, second.ID)
	if err != nil || !changed {
		t.Fatalf("mark counters applied: changed=%v err=%v", changed, err)
	}
	changed, err = st.MarkCountersApplied(ctx, second.ID)
	if err != nil || changed {
		t.Fatalf("expected second mark to be a no-op: changed=%v err=%v", changed, err)
	}
}

func TestInsertLearningEntryIsUnique(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	e := LearningLogEntry{AssignmentID: 7, AgentID: "a", TaskID: 1, TaskType: factory.TypeDebug,
		ResultStatus: factory.OutcomeFailed, Delta: -2, SkillID: factory.SkillDebug, UserID: "a"}

	inserted, err := st.InsertLearningEntry(ctx, e)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	inserted, err = st.InsertLearningEntry(ctx, e)
	if err != nil || inserted {
		t.Fatalf("second insert: inserted=%v err=%v", inserted, err)
	}
	n, err := st.CountLearningEntries(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}

	entries, err := st.ListLearningEntries(ctx, 0)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].SkillID != factory.SkillDebug || entries[0].Delta != -2 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestFailureGroups(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []LearningLogEntry{
		{AssignmentID: 1, AgentID: "b", TaskType: factory.TypeDebug, ResultStatus: factory.OutcomeFailed, AppliedAt: day},
		{AssignmentID: 2, AgentID: "b", TaskType: factory.TypeDebug, ResultStatus: factory.OutcomeSuccess, AppliedAt: day},
		{AssignmentID: 3, AgentID: "a", TaskType: factory.TypeKnowledge, ResultStatus: factory.OutcomeFailed, AppliedAt: day},
		{AssignmentID: 4, AgentID: "a", TaskType: factory.TypeDebug, ResultStatus: factory.OutcomeSuccess, AppliedAt: day},
		{AssignmentID: 5, AgentID: "c", TaskType: factory.TypeDebug, ResultStatus: factory.OutcomeFailed, AppliedAt: day.AddDate(0, 0, 1)},
	}
	for _, e := range entries {
		if _, err := st.InsertLearningEntry(ctx, e); err != nil {
			t.Fatalf("insert entry: %v", err)
		}
	}

	groups, err := st.FailureGroups(ctx, "2025-01-01")
	if err != nil {
		t.Fatalf("failure groups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 failure groups, got %+v", groups)
	}
	if groups[0].AgentID != "a" || groups[0].TaskType != factory.TypeKnowledge || groups[0].Failed != 1 {
		t.Fatalf("unexpected first group %+v", groups[0])
	}
	if groups[1].AgentID != "b" || groups[1].Total != 2 || groups[1].Failed != 1 {
		t.Fatalf("unexpected second group %+v", groups[1])
	}
}

func TestSkillLevels(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.GetSkillLevel(ctx, "a", factory.SkillDebug); err != nil || ok {
		t.Fatalf("expected no level yet: ok=%v err=%v", ok, err)
	}
	if err := st.UpsertSkillLevel(ctx, "a", factory.SkillDebug, 5); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.UpsertSkillLevel(ctx, "a", factory.SkillDebug, 3); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	level, ok, err := st.GetSkillLevel(ctx, "a", factory.SkillDebug)
	if err != nil || !ok || level != 3 {
		t.Fatalf("level = %v ok=%v err=%v", level, ok, err)
	}

	skill, err := st.GetSkill(ctx, factory.SkillDebug)
	if err != nil || skill == nil {
		t.Fatalf("get skill: %v %v", skill, err)
	}
	if got := skill.Clamp(-4); got != 0 {
		t.Fatalf("clamp low = %v", got)
	}
	if got := skill.Clamp(140); got != 100 {
		t.Fatalf("clamp high = %v", got)
	}

	if err := st.DeleteSkill(ctx, factory.SkillDebug); err != nil {
		t.Fatalf("delete skill: %v", err)
	}
	if skill, err := st.GetSkill(ctx, factory.SkillDebug); err != nil || skill != nil {
		t.Fatalf("expected deleted skill to be absent: %v %v", skill, err)
	}
}

func TestDailyReportUpsertKeepsCreatedAt(t *testing.T) {
	st := newTestStore(t)
	st.SetClock(fixedClock(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	if err := st.UpsertDailyReport(ctx, DailyReport{Day: "2025-01-01", TotalTasks: 3, Notes: "first"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	first, err := st.GetDailyReport(ctx, "2025-01-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := st.UpsertDailyReport(ctx, DailyReport{Day: "2025-01-01", TotalTasks: 5, Notes: "second"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := st.GetDailyReport(ctx, "2025-01-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if second.TotalTasks != 5 || second.Notes != "second" {
		t.Fatalf("expected overwritten row, got %+v", second)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if _, err := st.GetDailyReport(ctx, "1999-01-01"); !errors.Is(err, factory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.StartJobRun(ctx, "learning")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.RunID == "" || run.Status != JobStatusRunning {
		t.Fatalf("unexpected run %+v", run)
	}
	if err := st.FinishJobRun(ctx, run.RunID, JobStatusOK, "processed=0"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := st.StartJobRun(ctx, "daily"); err != nil {
		t.Fatalf("start: %v", err)
	}

	runs, err := st.ListJobRuns(ctx, "learning", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != JobStatusOK || runs[0].FinishedAt == nil || runs[0].Summary != "processed=0" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	all, err := st.ListJobRuns(ctx, "", 10)
	if err != nil || len(all) != 2 {
		t.Fatalf("list all = %d, %v", len(all), err)
	}
}

func TestInTxRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.InsertTask(ctx, Task{Source: "test", Description: "rolled back"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	depth, err := st.QueueDepth(ctx)
	if err != nil || depth != 0 {
		t.Fatalf("expected rollback, depth=%d err=%v", depth, err)
	}
}

func TestStoreErrorWrapping(t *testing.T) {
	st := newTestStore(t)
	_ = st.Close()
	_, err := st.ListAgents(context.Background())
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *store.Error, got %v", err)
	}
	if se.Op != "list agents" {
		t.Fatalf("unexpected op %q", se.Op)
	}
}
