package executor

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond builds a -> {b, c} -> d plus a detached node e.
func diamond(t *testing.T) *dag.Graph {
	t.Helper()
	g := dag.New()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("b", "d"))
	require.NoError(t, g.AddEdge("c", "d"))
	return g
}

func TestRunVisitsAfterDependencies(t *testing.T) {
	for _, workers := range []int{0, 1, 2, 8} {
		t.Run("", func(t *testing.T) {
			// --- Arrange ---
			plan := diamond(t)
			ex, err := New(plan, workers)
			require.NoError(t, err)

			var mu sync.Mutex
			var visited []string

			// --- Act ---
			err = ex.Run(context.Background(), func(ctx context.Context, id string) error {
				mu.Lock()
				defer mu.Unlock()
				visited = append(visited, id)
				return nil
			})

			// --- Assert ---
			require.NoError(t, err)
			require.Len(t, visited, 5)
			pos := func(id string) int { return slices.Index(visited, id) }
			assert.Less(t, pos("a"), pos("b"))
			assert.Less(t, pos("a"), pos("c"))
			assert.Less(t, pos("b"), pos("d"))
			assert.Less(t, pos("c"), pos("d"))
			if workers <= 1 {
				assert.Equal(t, ex.Order(), visited)
			}
		})
	}
}

func TestRunStopsOnError(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run("", func(t *testing.T) {
			ex, err := New(diamond(t), workers)
			require.NoError(t, err)

			boom := errors.New("boom")
			var afterB atomic.Bool
			err = ex.Run(context.Background(), func(ctx context.Context, id string) error {
				switch id {
				case "b":
					return boom
				case "d":
					afterB.Store(true)
				}
				return nil
			})
			assert.ErrorIs(t, err, boom)
			assert.False(t, afterB.Load(), "a dependent of a failed visit must not run")
		})
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run("", func(t *testing.T) {
			ex, err := New(diamond(t), workers)
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var visits atomic.Int32
			err = ex.Run(ctx, func(ctx context.Context, id string) error {
				visits.Add(1)
				if id == "a" {
					cancel()
				}
				return nil
			})
			assert.ErrorIs(t, err, context.Canceled)
			assert.Less(t, int(visits.Load()), 5)
		})
	}
}

func TestNewRejectsCycles(t *testing.T) {
	g := dag.New()
	g.AddNode("a")
	g.AddNode("b")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "a"))

	_, err := New(g, 2)
	assert.ErrorIs(t, err, dag.ErrCycle)
}
