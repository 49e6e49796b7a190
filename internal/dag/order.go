package dag

import (
	"container/heap"
	"slices"
)

// TopologicalOrder returns every node so that each one follows all of its
// dependencies. Among nodes that are ready at the same time the one added
// first wins, so the order is stable for a given insertion sequence.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	remaining := make(map[string]int, len(g.nodes))
	ready := &indexHeap{}
	for _, id := range g.order {
		n := g.nodes[id]
		remaining[id] = len(n.deps)
		if len(n.deps) == 0 {
			heap.Push(ready, n)
		}
	}

	order := make([]string, 0, len(g.order))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*node)
		order = append(order, n.id)
		for _, dep := range n.dependents {
			remaining[dep.id]--
			if remaining[dep.id] == 0 {
				heap.Push(ready, dep)
			}
		}
	}
	return order, nil
}

// Ancestors returns every node the given node transitively depends on, in
// insertion order.
func (g *Graph) Ancestors(id string) []string {
	return g.closure(id, func(n *node) map[string]*node { return n.deps })
}

// Descendants returns every node that transitively depends on the given
// node, in insertion order.
func (g *Graph) Descendants(id string) []string {
	return g.closure(id, func(n *node) map[string]*node { return n.dependents })
}

func (g *Graph) closure(id string, next func(*node) map[string]*node) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	start, ok := g.nodes[id]
	if !ok {
		return nil
	}

	seen := map[string]bool{id: true}
	queue := []*node{start}
	var found []*node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range next(n) {
			if seen[m.id] {
				continue
			}
			seen[m.id] = true
			found = append(found, m)
			queue = append(queue, m)
		}
	}

	slices.SortFunc(found, func(a, b *node) int { return a.index - b.index })
	ids := make([]string, len(found))
	for i, n := range found {
		ids[i] = n.id
	}
	return ids
}

// indexHeap is a min-heap of nodes keyed by insertion index.
type indexHeap []*node

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i].index < h[j].index }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *indexHeap) Push(x any) { *h = append(*h, x.(*node)) }

func (h *indexHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
