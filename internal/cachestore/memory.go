package cachestore

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-memory Store using sync.Map for fine-grained concurrent
// access: parallel workers write entries of distinct nodes while the
// controller reads others.
type Memory struct {
	entries sync.Map // Key: "<node id>/<mode>", Value: *Entry
}

// NewMemory creates a new, empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, nodeID, mode string) (*Entry, bool, error) {
	v, ok := m.entries.Load(entryKey(nodeID, mode))
	if !ok {
		return nil, false, nil
	}
	return v.(*Entry), true, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, e *Entry) error {
	m.entries.Store(entryKey(e.NodeID, e.Mode), e)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, nodeID string) error {
	prefix := nodeID + "/"
	m.entries.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			m.entries.Delete(k)
		}
		return true
	})
	return nil
}

// Range implements Store.
func (m *Memory) Range(ctx context.Context, fn func(*Entry) bool) error {
	m.entries.Range(func(_, v any) bool {
		return fn(v.(*Entry))
	})
	return nil
}

// Clear implements Store.
func (m *Memory) Clear(ctx context.Context) error {
	m.entries.Clear()
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}
