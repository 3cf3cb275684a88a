package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/fatimatofatima/hyper-factory/internal/factory"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// RequeueResult lists the tasks returned to the queue.
type RequeueResult struct {
	Cutoff  time.Time
	TaskIDs []int64
}

// RequeueStale returns assigned tasks whose open assignment is older than
// olderThan to the queue and marks those assignments abandoned. A
// non-positive olderThan uses the dispatcher's stale threshold.
func (d *Dispatcher) RequeueStale(ctx context.Context, olderThan time.Duration) (RequeueResult, error) {
	if olderThan <= 0 {
		olderThan = d.staleAfter
	}
	res := RequeueResult{Cutoff: d.st.Now().Add(-olderThan)}
	err := d.st.InTx(ctx, func(tx *store.Tx) error {
		stale, err := tx.StaleAssignments(ctx, res.Cutoff)
		if err != nil {
			return err
		}
		for _, a := range stale {
			if err := tx.AbandonAssignment(ctx, a.ID); err != nil {
				return err
			}
			if err := tx.TransitionTask(ctx, a.TaskID, factory.StatusAssigned, factory.StatusQueued); err != nil {
				return err
			}
			res.TaskIDs = append(res.TaskIDs, a.TaskID)
		}
		return nil
	})
	if err != nil {
		return RequeueResult{}, err
	}
	if len(res.TaskIDs) > 0 {
		slog.Info("Stale assignments requeued", "count", len(res.TaskIDs), "cutoff", res.Cutoff)
		d.metrics.Requeued(len(res.TaskIDs))
		d.refreshQueueDepth(ctx)
	}
	return res, nil
}
