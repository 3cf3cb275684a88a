// Package registry seeds and maintains the agent catalog: bulk import,
// cloning and activation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// Registry manages agent rows.
type Registry struct {
	st *store.Store
}

func New(st *store.Store) *Registry {
	return &Registry{st: st}
}

// ImportResult summarizes an init-agents run.
type ImportResult struct {
	Created int
	Updated int
	Skipped int // entries without an agent id
}

// Import upserts every catalog entry in one transaction. Existing agents
// keep their counters; only descriptive fields are refreshed.
func (r *Registry) Import(ctx context.Context, entries []CatalogEntry) (ImportResult, error) {
	var res ImportResult
	err := r.st.InTx(ctx, func(tx *store.Tx) error {
		for _, e := range entries {
			a := e.ToAgent()
			if a.ID == "" {
				res.Skipped++
				continue
			}
			created, err := tx.UpsertAgent(ctx, a)
			if err != nil {
				return fmt.Errorf("import agent %q: %w", a.ID, err)
			}
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	slog.Info("Agent catalog imported", "created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

// ClonePlan asks for count copies of a base agent, the base included.
type ClonePlan struct {
	Base  string
	Count int
}

// DefaultClonePlan gives each key capability more than one dispatch target.
var DefaultClonePlan = []ClonePlan{
	{Base: "knowledge_spider", Count: 3},
	{Base: "technical_coach", Count: 3},
	{Base: "analyzer_basic", Count: 3},
	{Base: "debug_expert", Count: 2},
}

// CloneResult reports the outcome of one ClonePlan.
type CloneResult struct {
	Base    string
	Created []string
	Existed []string
	Missing bool // base agent not found
}

// CloneID is the id of the n-th copy of base (n >= 2).
func CloneID(base string, n int) string {
	return fmt.Sprintf("%s_%d", base, n)
}

// Clone creates copies <base>_2..<base>_<count> of the base agent. Copies
// share the base's family, role, level, salary index and skills, and start
// with zero counters. Ids that already exist are left alone.
func (r *Registry) Clone(ctx context.Context, base string, count int) (CloneResult, error) {
	res := CloneResult{Base: base}
	if count < 1 {
		return res, fmt.Errorf("%w: clone count must be at least 1", factory.ErrInvalidInput)
	}
	err := r.st.InTx(ctx, func(tx *store.Tx) error {
		src, err := tx.GetAgent(ctx, base)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(src.DisplayName)
		if name == "" {
			name = base
		}
		for n := 2; n <= count; n++ {
			id := CloneID(base, n)
			if _, err := tx.GetAgent(ctx, id); err == nil {
				res.Existed = append(res.Existed, id)
				continue
			} else if !isNotFound(err) {
				return err
			}
			clone := store.Agent{
				ID:          id,
				Family:      src.Family,
				Role:        src.Role,
				DisplayName: fmt.Sprintf("%s (%d)", name, n),
				Level:       src.Level,
				SalaryIndex: src.SalaryIndex,
				Skills:      src.Skills,
				Active:      true,
			}
			if err := tx.InsertAgent(ctx, clone); err != nil {
				return fmt.Errorf("clone %q: %w", id, err)
			}
			res.Created = append(res.Created, id)
		}
		return nil
	})
	if err != nil {
		return CloneResult{Base: base}, err
	}
	slog.Info("Agent cloned", "base", base, "created", len(res.Created), "existed", len(res.Existed))
	return res, nil
}

// CloneAll applies each plan in order. A missing base agent is reported in
// its result and does not stop the remaining plans.
func (r *Registry) CloneAll(ctx context.Context, plans []ClonePlan) ([]CloneResult, error) {
	out := make([]CloneResult, 0, len(plans))
	for _, p := range plans {
		res, err := r.Clone(ctx, p.Base, p.Count)
		if isNotFound(err) {
			slog.Warn("Clone base agent not found", "base", p.Base)
			out = append(out, CloneResult{Base: p.Base, Missing: true})
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// SetActive toggles whether the agent may receive new work.
func (r *Registry) SetActive(ctx context.Context, id string, active bool) error {
	if err := r.st.SetAgentActive(ctx, id, active); err != nil {
		return err
	}
	slog.Info("Agent activation changed", "agent", id, "active", active)
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, factory.ErrNotFound)
}
