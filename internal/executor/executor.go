// Package executor walks an execution plan, invoking a visit function for
// every node once all of its dependencies have been visited.
//
// With one worker the walk is a plain loop over the topological order. With
// more, ready nodes are fanned out to a pool of workers; a node becomes ready
// when its last dependency finishes.
package executor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/dag"
	"golang.org/x/sync/errgroup"
)

// Visit processes a single node. A non-nil error stops the whole walk.
type Visit func(ctx context.Context, id string) error

// Executor orchestrates the visits of one plan.
type Executor struct {
	plan    *dag.Graph
	order   []string
	workers int
}

// New prepares an executor for plan. The plan must be acyclic.
func New(plan *dag.Graph, workers int) (*Executor, error) {
	order, err := plan.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	return &Executor{plan: plan, order: order, workers: workers}, nil
}

// Order returns the deterministic topological order of the plan.
func (e *Executor) Order() []string {
	return e.order
}

// Workers returns the effective degree of parallelism.
func (e *Executor) Workers() int {
	return e.workers
}

// Run visits every node. It returns the first visit error, or the context
// error when ctx is cancelled; no visit starts after either.
func (e *Executor) Run(ctx context.Context, visit Visit) error {
	if e.workers == 1 || len(e.order) < 2 {
		return e.runSequential(ctx, visit)
	}
	return e.runParallel(ctx, visit)
}

func (e *Executor) runSequential(ctx context.Context, visit Visit) error {
	for _, id := range e.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := visit(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runParallel(ctx context.Context, visit Visit) error {
	logger := ctxlog.FromContext(ctx)

	pending := make(map[string]*atomic.Int32, len(e.order))
	ready := make(chan string, len(e.order))
	for _, id := range e.order {
		deps, err := e.plan.Dependencies(id)
		if err != nil {
			return fmt.Errorf("failed to prepare node '%s': %w", id, err)
		}
		counter := new(atomic.Int32)
		counter.Store(int32(len(deps)))
		pending[id] = counter
		if len(deps) == 0 {
			ready <- id
		}
	}

	var remaining atomic.Int32
	remaining.Store(int32(len(e.order)))

	g, gctx := errgroup.WithContext(ctx)
	workers := min(e.workers, len(e.order))
	logger.Debug("Starting workers.", "count", workers, "nodes", len(e.order))
	for w := range workers {
		g.Go(func() error {
			return e.worker(gctx, w, ready, pending, &remaining, visit)
		})
	}
	return g.Wait()
}
