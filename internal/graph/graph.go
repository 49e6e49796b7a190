// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Graph, the root container of a pipeline document.
//
// Why keep insertion order?
//
// Nodes and edges are stored in slices, not maps. Insertion order is the tie
// breaker for the topological walk and edge registration order is the
// concatenation order for fan-in, so both must survive save and load.
package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Checker decides whether a node may feed another. The processor registry
// implements it.
type Checker interface {
	CanConnect(from, to *Node) error
}

// PortSource reports the ports a node should expose for its current
// configuration. The processor registry implements it.
type PortSource interface {
	PortsFor(n *Node) ([]PortSpec, error)
}

// Graph owns the nodes and edges of one document.
type Graph struct {
	nodes   []*Node
	edges   []*Edge
	checker Checker
}

// Option configures a Graph.
type Option func(*Graph)

// WithChecker installs the connection rules consulted by Connect.
func WithChecker(c Checker) Option {
	return func(g *Graph) {
		g.checker = c
	}
}

// New creates and returns an empty Graph.
func New(opts ...Option) *Graph {
	g := &Graph{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Checker returns the installed connection rules, if any.
func (g *Graph) Checker() Checker {
	return g.checker
}

// AddNode appends a node. A node without an ID gets a fresh one.
func (g *Graph) AddNode(n *Node) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if _, ok := g.Node(n.ID); ok {
		return fmt.Errorf("node %s: %w", n.ID, ErrDuplicate)
	}
	g.nodes = append(g.nodes, n)
	return nil
}

// RemoveNode deletes a node together with every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	idx := slices.IndexFunc(g.nodes, func(n *Node) bool { return n.ID == id })
	if idx < 0 {
		return fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	g.nodes = slices.Delete(g.nodes, idx, idx+1)
	g.edges = slices.DeleteFunc(g.edges, func(e *Edge) bool {
		return e.From.Node == id || e.To.Node == id
	})
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	for _, n := range g.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// NodeByName returns the first node with the given display name.
func (g *Graph) NodeByName(name string) (*Node, bool) {
	for _, n := range g.nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

// Edges returns the edges in registration order.
func (g *Graph) Edges() []*Edge {
	return slices.Clone(g.edges)
}

// Edge returns the edge with the given ID.
func (g *Graph) Edge(id string) (*Edge, bool) {
	for _, e := range g.edges {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// EdgesInto returns the edges ending at a node, in registration order.
func (g *Graph) EdgesInto(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.To.Node == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// EdgesFrom returns the edges leaving a node, in registration order.
func (g *Graph) EdgesFrom(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.From.Node == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns a deep copy of the node and edge sets.
func (g *Graph) Snapshot() *Graph {
	cp := &Graph{
		nodes:   make([]*Node, len(g.nodes)),
		edges:   make([]*Edge, len(g.edges)),
		checker: g.checker,
	}
	for i, n := range g.nodes {
		cp.nodes[i] = n.Clone()
	}
	for i, e := range g.edges {
		cp.edges[i] = e.clone()
	}
	return cp
}

// Validate checks that every edge endpoint resolves to an existing node and
// port of the right direction.
func (g *Graph) Validate() error {
	var errs []error
	for _, e := range g.edges {
		if err := g.checkEndpoint(e.From, Output); err != nil {
			errs = append(errs, fmt.Errorf("edge %s source: %w", e.ID, err))
		}
		if err := g.checkEndpoint(e.To, Input); err != nil {
			errs = append(errs, fmt.Errorf("edge %s destination: %w", e.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (g *Graph) checkEndpoint(ep Endpoint, dir Direction) error {
	n, ok := g.Node(ep.Node)
	if !ok {
		return fmt.Errorf("node %s: %w", ep.Node, ErrDangling)
	}
	p, ok := n.Port(ep.Port)
	if !ok {
		return fmt.Errorf("port %s on node %q: %w", ep.Port, n.Name, ErrDangling)
	}
	if p.Direction != dir {
		return fmt.Errorf("port %q on node %q is an %s: %w", p.Label, n.Name, p.Direction, ErrDirectionMismatch)
	}
	return nil
}
