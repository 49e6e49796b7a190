// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Node, a configured instance of a processor kind.
//
// Why keep Config as `any`?
//
// Each processor kind decodes its own configuration struct. The document
// model only carries the value around; the registry knows its concrete type
// and is the only place that interprets it.
package graph

import (
	"github.com/google/uuid"
)

// Position is the node's placement in the editor canvas. It has no meaning
// for execution.
type Position struct {
	X float64
	Y float64
}

// Node is a named unit of work holding a processor kind and its configuration.
type Node struct {
	ID       string
	Name     string
	Kind     string
	Position Position
	Config   any
	Ports    []*Port
}

// nodeNamespace scopes the name-derived UUIDs of StableNodeID.
var nodeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/specialistvlad/assetgraph/node"))

// StableNodeID derives a node ID from its kind and name. Documents that do
// not store IDs use it so a node keeps its identity, and its cache entries,
// from one load to the next.
func StableNodeID(kind, name string) string {
	return uuid.NewSHA1(nodeNamespace, []byte(kind+"/"+name)).String()
}

// NewNode creates a node with a fresh ID and one port per spec.
func NewNode(name, kind string, cfg any, specs ...PortSpec) *Node {
	n := &Node{
		ID:     uuid.NewString(),
		Name:   name,
		Kind:   kind,
		Config: cfg,
	}
	for _, spec := range specs {
		n.Ports = append(n.Ports, newPort(spec))
	}
	return n
}

// Port returns the port with the given ID.
func (n *Node) Port(id string) (*Port, bool) {
	for _, p := range n.Ports {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// PortByLabel returns the first port with the given direction and label.
func (n *Node) PortByLabel(dir Direction, label string) (*Port, bool) {
	for _, p := range n.Ports {
		if p.Direction == dir && p.Label == label {
			return p, true
		}
	}
	return nil, false
}

// Inputs returns the node's input ports in declaration order.
func (n *Node) Inputs() []*Port {
	return n.portsOf(Input)
}

// Outputs returns the node's output ports in declaration order.
func (n *Node) Outputs() []*Port {
	return n.portsOf(Output)
}

func (n *Node) portsOf(dir Direction) []*Port {
	var out []*Port
	for _, p := range n.Ports {
		if p.Direction == dir {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy of the node's ports. Config is shared; it is
// treated as immutable once attached to a node.
func (n *Node) Clone() *Node {
	cp := *n
	cp.Ports = make([]*Port, len(n.Ports))
	for i, p := range n.Ports {
		cp.Ports[i] = p.clone()
	}
	return &cp
}
