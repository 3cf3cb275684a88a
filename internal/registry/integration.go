package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// IntegrationSource tags tasks created by SeedIntegrationTasks.
const IntegrationSource = "integration_planner"

// IntegrationTasks are the standing architecture tasks for wiring the
// factory into neighbouring systems.
var IntegrationTasks = []string{
	"Integration plan: Hyper Factory with SmartFriend Suite (DB and API read/write).",
	"Integration plan: Hyper Factory with FFactory (code production and operations line).",
	"Design a channel between Hyper Factory and SmartFriend/FFactory for quality and knowledge monitoring.",
}

// SeedIntegrationTasks queues each of IntegrationTasks as a high-priority
// architecture task unless one with the same description already exists.
// It returns the number of tasks created.
func (r *Registry) SeedIntegrationTasks(ctx context.Context) (int, error) {
	created := 0
	err := r.st.InTx(ctx, func(tx *store.Tx) error {
		for _, desc := range IntegrationTasks {
			n, err := tx.CountTasksWithPrefix(ctx, IntegrationSource, desc)
			if err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if _, err := tx.InsertTask(ctx, store.Task{
				Source:      IntegrationSource,
				Description: desc,
				TaskType:    factory.TypeArchitecture,
				Priority:    factory.PriorityHigh,
			}); err != nil {
				return fmt.Errorf("seed integration task: %w", err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.Info("Integration tasks seeded", "created", created)
	return created, nil
}
