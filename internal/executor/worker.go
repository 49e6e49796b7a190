package executor

import (
	"context"
	"sync/atomic"

	"github.com/specialistvlad/assetgraph/internal/ctxlog"
)

// worker is the processing loop for a single concurrent worker.
func (e *Executor) worker(
	ctx context.Context,
	workerID int,
	ready chan string,
	pending map[string]*atomic.Int32,
	remaining *atomic.Int32,
	visit Visit,
) error {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	logger.Debug("Worker started.")

	for {
		var id string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next, ok := <-ready:
			if !ok {
				logger.Debug("Worker finished.")
				return nil
			}
			id = next
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Debug("Worker picked up node.", "nodeID", id)
		if err := visit(ctx, id); err != nil {
			return err
		}

		dependents, err := e.plan.Dependents(id)
		if err != nil {
			return err
		}
		for _, d := range dependents {
			if pending[d].Add(-1) == 0 {
				logger.Debug("Unlocking dependent node.", "dependentID", d)
				ready <- d
			}
		}
		if remaining.Add(-1) == 0 {
			close(ready)
		}
	}
}
