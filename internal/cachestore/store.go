// Package cachestore keeps the incremental state of a pipeline: for every
// node and pass mode, the cache key of its last successful visit and the
// outputs it produced.
//
// # Purpose
//
// With forceVisitAll disabled, the controller skips nodes whose cache key
// still matches and replays their stored outputs instead. Change
// notifications invalidate entries by asset path.
//
// # Implementations
//
//   - Memory: ephemeral, one per controller, the default.
//   - Badger: persisted in a BadgerDB directory so that unchanged nodes are
//     skipped across process restarts.
package cachestore

import (
	"context"
	"slices"
	"time"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/fsutil"
)

// Entry is the cached result of one node visit.
type Entry struct {
	NodeID string                 `json:"node_id"`
	Mode   string                 `json:"mode"`
	Key    string                 `json:"key"`
	Output map[string]asset.Group `json:"output"`
	// Inputs lists the source paths of every record the node consumed.
	Inputs []string `json:"inputs,omitempty"`
	// Watched lists project paths a source node read from.
	Watched   []string  `json:"watched,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// References reports whether a change at path may affect this entry.
func (e *Entry) References(path string) bool {
	if slices.Contains(e.Inputs, path) {
		return true
	}
	for _, g := range e.Output {
		if g.Contains(path) {
			return true
		}
	}
	for _, root := range e.Watched {
		if fsutil.Within(root, path) || fsutil.Within(path, root) {
			return true
		}
	}
	return false
}

// Store persists cache entries. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the entry for a node and mode; ok is false when absent.
	Get(ctx context.Context, nodeID, mode string) (e *Entry, ok bool, err error)
	// Put inserts or replaces an entry.
	Put(ctx context.Context, e *Entry) error
	// Delete removes every entry of a node, whatever the mode.
	Delete(ctx context.Context, nodeID string) error
	// Range calls fn for every entry until fn returns false.
	Range(ctx context.Context, fn func(*Entry) bool) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Close releases underlying resources.
	Close() error
}

func entryKey(nodeID, mode string) string {
	return nodeID + "/" + mode
}
