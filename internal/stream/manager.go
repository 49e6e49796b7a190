// Package stream records, per edge, the asset group that last flowed along
// it, so inspectors can show what travels on a wire without re-running the
// graph.
package stream

import (
	"sync"

	"github.com/specialistvlad/assetgraph/internal/asset"
)

// Manager maps edge IDs to the last group recorded on them. Readers may
// call it concurrently with a pass; every edge has a single producer, so
// writers never compete for a key.
type Manager struct {
	mu     sync.RWMutex
	groups map[string]asset.Group
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{groups: make(map[string]asset.Group)}
}

// Record stores group for edgeID, replacing any previous value.
func (m *Manager) Record(edgeID string, group asset.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[edgeID] = group.Clone()
}

// FindAssetGroup returns the last group recorded for edgeID, or an empty
// group when nothing was recorded.
func (m *Manager) FindAssetGroup(edgeID string) asset.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groups[edgeID].Clone()
}

// Has reports whether anything was recorded for edgeID.
func (m *Manager) Has(edgeID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.groups[edgeID]
	return ok
}

// Prune drops entries for edges not in live and returns how many were removed.
func (m *Manager) Prune(live map[string]bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id := range m.groups {
		if !live[id] {
			delete(m.groups, id)
			removed++
		}
	}
	return removed
}

// Replace swaps the whole content for groups in one step.
func (m *Manager) Replace(groups map[string]asset.Group) {
	next := make(map[string]asset.Group, len(groups))
	for id, g := range groups {
		next[id] = g.Clone()
	}
	m.mu.Lock()
	m.groups = next
	m.mu.Unlock()
}

// Clear forgets every entry.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.groups)
}

// Len returns the number of recorded edges.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.groups)
}

// Snapshot returns a copy of every recorded group keyed by edge ID.
func (m *Manager) Snapshot() map[string]asset.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]asset.Group, len(m.groups))
	for id, g := range m.groups {
		out[id] = g.Clone()
	}
	return out
}
