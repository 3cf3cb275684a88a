package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// CatalogEntry is one agent in the JSON catalog consumed by init-agents.
type CatalogEntry struct {
	Agent       string   `json:"agent"`
	Family      string   `json:"family"`
	Role        string   `json:"role"`
	DisplayName string   `json:"display_name"`
	Level       string   `json:"level"`
	SalaryIndex *float64 `json:"salary_index"`
	SuccessRuns int      `json:"success_runs"`
	FailedRuns  int      `json:"failed_runs"`
	Skills      []string `json:"skills"`
	Active      *bool    `json:"active"`
}

// ToAgent converts the entry into a store row. salary_index defaults to 1.0
// and active to true.
func (e CatalogEntry) ToAgent() store.Agent {
	a := store.Agent{
		ID:          strings.TrimSpace(e.Agent),
		Family:      strings.TrimSpace(e.Family),
		Role:        e.Role,
		DisplayName: e.DisplayName,
		Level:       e.Level,
		SalaryIndex: 1.0,
		SuccessRuns: max(e.SuccessRuns, 0),
		FailedRuns:  max(e.FailedRuns, 0),
		Skills:      e.Skills,
		Active:      true,
	}
	if e.SalaryIndex != nil {
		a.SalaryIndex = *e.SalaryIndex
	}
	if e.Active != nil {
		a.Active = *e.Active
	}
	return a
}

// ParseCatalog decodes a JSON array of catalog entries.
func ParseCatalog(r io.Reader) ([]CatalogEntry, error) {
	var entries []CatalogEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode agent catalog: %w", err)
	}
	return entries, nil
}

// LoadCatalog reads the catalog file at path.
func LoadCatalog(path string) ([]CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open agent catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}
