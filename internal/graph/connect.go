// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file implements the editing operations on edges.
//
// Why check everything before touching the edge list?
//
// A rejected connection must leave the document exactly as it was. All
// lookups and rule checks run first; the only mutations (dropping the edge
// that currently leaves the same output port, then appending the new one)
// happen after every check has passed.
package graph

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Connect wires an output port to an input port. A second edge from the
// same output port replaces the first one.
func (g *Graph) Connect(from, to Endpoint) (*Edge, error) {
	return g.ConnectWithID("", from, to)
}

// ConnectWithID is Connect with a caller-chosen edge ID, used when a saved
// document is restored. An empty id gets a fresh one.
func (g *Graph) ConnectWithID(id string, from, to Endpoint) (*Edge, error) {
	fromNode, fromPort, err := g.lookup(from)
	if err != nil {
		return nil, fmt.Errorf("connect source: %w", err)
	}
	toNode, toPort, err := g.lookup(to)
	if err != nil {
		return nil, fmt.Errorf("connect destination: %w", err)
	}
	if fromPort.Direction != Output || toPort.Direction != Input {
		return nil, fmt.Errorf("connect %q.%s (%s) to %q.%s (%s): %w",
			fromNode.Name, fromPort.Label, fromPort.Direction, toNode.Name, toPort.Label, toPort.Direction, ErrDirectionMismatch)
	}
	if toPort.Category != "" && fromPort.Category != toPort.Category {
		return nil, fmt.Errorf("connect %q.%s to %q.%s: port category %q does not accept %q: %w",
			fromNode.Name, fromPort.Label, toNode.Name, toPort.Label, toPort.Category, fromPort.Category, ErrIncompatible)
	}
	if g.checker != nil {
		if err := g.checker.CanConnect(fromNode, toNode); err != nil {
			return nil, fmt.Errorf("connect %q to %q: %w", fromNode.Name, toNode.Name, err)
		}
	}
	if id == "" {
		id = uuid.NewString()
	} else if _, ok := g.Edge(id); ok {
		return nil, fmt.Errorf("edge %s: %w", id, ErrDuplicate)
	}

	g.edges = slices.DeleteFunc(g.edges, func(e *Edge) bool {
		return e.From == from
	})
	edge := &Edge{ID: id, From: from, To: to, Label: fromPort.Label}
	g.edges = append(g.edges, edge)
	return edge, nil
}

// ConnectLabels connects two nodes by port label. An empty label selects the
// node's only port in that direction.
func (g *Graph) ConnectLabels(fromNode, fromLabel, toNode, toLabel string) (*Edge, error) {
	from, err := g.endpointByLabel(fromNode, Output, fromLabel)
	if err != nil {
		return nil, fmt.Errorf("connect source: %w", err)
	}
	to, err := g.endpointByLabel(toNode, Input, toLabel)
	if err != nil {
		return nil, fmt.Errorf("connect destination: %w", err)
	}
	return g.Connect(from, to)
}

// Disconnect removes an edge.
func (g *Graph) Disconnect(edgeID string) error {
	idx := slices.IndexFunc(g.edges, func(e *Edge) bool { return e.ID == edgeID })
	if idx < 0 {
		return fmt.Errorf("edge %s: %w", edgeID, ErrNotFound)
	}
	g.edges = slices.Delete(g.edges, idx, idx+1)
	return nil
}

func (g *Graph) lookup(ep Endpoint) (*Node, *Port, error) {
	n, ok := g.Node(ep.Node)
	if !ok {
		return nil, nil, fmt.Errorf("node %s: %w", ep.Node, ErrNotFound)
	}
	p, ok := n.Port(ep.Port)
	if !ok {
		return nil, nil, fmt.Errorf("port %s on node %q: %w", ep.Port, n.Name, ErrNotFound)
	}
	return n, p, nil
}

func (g *Graph) endpointByLabel(nodeID string, dir Direction, label string) (Endpoint, error) {
	n, ok := g.Node(nodeID)
	if !ok {
		return Endpoint{}, fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
	}
	if label == "" {
		ports := n.portsOf(dir)
		if len(ports) != 1 {
			return Endpoint{}, fmt.Errorf("node %q has %d %s ports, a label is required: %w", n.Name, len(ports), dir, ErrNotFound)
		}
		return Endpoint{Node: n.ID, Port: ports[0].ID}, nil
	}
	p, ok := n.PortByLabel(dir, label)
	if !ok {
		return Endpoint{}, fmt.Errorf("%s port %q on node %q: %w", dir, label, n.Name, ErrNotFound)
	}
	return Endpoint{Node: n.ID, Port: p.ID}, nil
}
