package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "factory.db"), store.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st), st
}

const catalogJSON = `[
	{"agent": "debug_expert", "family": "debugging", "role": "doctor", "display_name": "Debug Expert",
	 "level": "senior", "salary_index": 1.4, "success_runs": 3, "failed_runs": 1, "skills": ["debug", "python"]},
	{"agent": "knowledge_spider", "family": "knowledge", "display_name": "Spider"},
	{"family": "orphan"},
	{"agent": "retired", "family": "pipeline", "active": false}
]`

func TestImportCatalog(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()

	entries, err := ParseCatalog(strings.NewReader(catalogJSON))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	res, err := reg.Import(ctx, entries)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Created != 3 || res.Updated != 0 || res.Skipped != 1 {
		t.Fatalf("unexpected import result %+v", res)
	}

	a, err := st.GetAgent(ctx, "debug_expert")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if a.TotalRuns != 4 || a.SuccessRate != 0.75 || a.SalaryIndex != 1.4 {
		t.Fatalf("unexpected counters %+v", a)
	}
	spider, err := st.GetAgent(ctx, "knowledge_spider")
	if err != nil {
		t.Fatalf("get spider: %v", err)
	}
	if spider.SalaryIndex != 1.0 || !spider.Active {
		t.Fatalf("expected defaults, got %+v", spider)
	}
	retired, err := st.GetAgent(ctx, "retired")
	if err != nil {
		t.Fatalf("get retired: %v", err)
	}
	if retired.Active {
		t.Fatal("expected retired agent to be inactive")
	}

	// A second import refreshes descriptive fields and keeps counters.
	if err := st.SetAgentCounters(ctx, "debug_expert", factory.Counters{SuccessRuns: 10}); err != nil {
		t.Fatalf("set counters: %v", err)
	}
	res, err = reg.Import(ctx, entries)
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if res.Created != 0 || res.Updated != 3 {
		t.Fatalf("unexpected reimport result %+v", res)
	}
	a, _ = st.GetAgent(ctx, "debug_expert")
	if a.SuccessRuns != 10 || a.TotalRuns != 10 {
		t.Fatalf("reimport overwrote counters: %+v", a)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	if err := os.WriteFile(path, []byte(catalogJSON), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	entries, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing catalog")
	}
	if _, err := ParseCatalog(strings.NewReader(`{"agent": "x"}`)); err == nil {
		t.Fatal("expected error for non-array catalog")
	}
}

func TestCloneCopiesBase(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()
	if err := st.InsertAgent(ctx, store.Agent{ID: "technical_coach", Family: "training", Role: "coach",
		DisplayName: "Coach", Level: "mid", SalaryIndex: 1.2, SuccessRuns: 4, Skills: []string{"teaching"}, Active: true}); err != nil {
		t.Fatalf("insert base: %v", err)
	}

	res, err := reg.Clone(ctx, "technical_coach", 3)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if len(res.Created) != 2 || res.Created[0] != "technical_coach_2" || res.Created[1] != "technical_coach_3" {
		t.Fatalf("unexpected clones %+v", res)
	}
	c, err := st.GetAgent(ctx, "technical_coach_3")
	if err != nil {
		t.Fatalf("get clone: %v", err)
	}
	if c.DisplayName != "Coach (3)" || c.Family != "training" || c.SalaryIndex != 1.2 || c.TotalRuns != 0 {
		t.Fatalf("unexpected clone %+v", c)
	}
	if len(c.Skills) != 1 || c.Skills[0] != "teaching" {
		t.Fatalf("expected skills copied, got %v", c.Skills)
	}

	res, err = reg.Clone(ctx, "technical_coach", 3)
	if err != nil {
		t.Fatalf("clone again: %v", err)
	}
	if len(res.Created) != 0 || len(res.Existed) != 2 {
		t.Fatalf("expected existing clones to be skipped, got %+v", res)
	}

	if _, err := reg.Clone(ctx, "nobody", 2); !errors.Is(err, factory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := reg.Clone(ctx, "technical_coach", 0); !errors.Is(err, factory.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCloneAllReportsMissingBase(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()
	if err := st.InsertAgent(ctx, store.Agent{ID: "debug_expert", Family: "debugging", Active: true}); err != nil {
		t.Fatalf("insert base: %v", err)
	}

	results, err := reg.CloneAll(ctx, DefaultClonePlan)
	if err != nil {
		t.Fatalf("clone all: %v", err)
	}
	if len(results) != len(DefaultClonePlan) {
		t.Fatalf("expected %d results, got %d", len(DefaultClonePlan), len(results))
	}
	for _, r := range results {
		switch r.Base {
		case "debug_expert":
			if r.Missing || len(r.Created) != 1 || r.Created[0] != "debug_expert_2" {
				t.Fatalf("unexpected debug_expert result %+v", r)
			}
		default:
			if !r.Missing {
				t.Fatalf("expected %s to be missing", r.Base)
			}
		}
	}
	c, err := st.GetAgent(ctx, "debug_expert_2")
	if err != nil {
		t.Fatalf("get clone: %v", err)
	}
	if c.DisplayName != "debug_expert (2)" {
		t.Fatalf("expected id-based display name, got %q", c.DisplayName)
	}
}

func TestSetActive(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()
	if err := st.InsertAgent(ctx, store.Agent{ID: "a", Family: "pipeline", Active: true}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := reg.SetActive(ctx, "a", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	best, err := st.BestAgent(ctx, "")
	if err != nil {
		t.Fatalf("best agent: %v", err)
	}
	if best != nil {
		t.Fatalf("expected inactive agent to be excluded, got %s", best.ID)
	}
	if err := reg.SetActive(ctx, "missing", true); !errors.Is(err, factory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
