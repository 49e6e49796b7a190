// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Edge, the directed wire between an output port and an
// input port.
package graph

// Endpoint addresses a port on a node.
type Endpoint struct {
	Node string
	Port string
}

// Edge is a directed link from an output port to an input port. Label
// mirrors the source port's label and follows it when the port is renamed.
type Edge struct {
	ID    string
	From  Endpoint
	To    Endpoint
	Label string
}

func (e *Edge) clone() *Edge {
	cp := *e
	return &cp
}
