package dag

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrCycle is matched by every *CycleError.
var ErrCycle = errors.New("cycle detected")

// CycleError reports a dependency cycle. Path starts and ends with the same
// node.
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving node '%s': %s", e.Path[0], strings.Join(e.Path, " -> "))
}

// Is makes errors.Is(err, ErrCycle) match.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// Graph is a collection of nodes and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
	// order lists node IDs in insertion order; it breaks ties everywhere a
	// deterministic order is needed.
	order []string
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using string IDs),
// not by direct struct manipulation.
type node struct {
	id    string
	index int
	// deps holds the set of nodes that this node depends on (predecessors).
	deps map[string]*node
	// dependents holds the set of nodes that depend on this node (successors).
	dependents map[string]*node
}
