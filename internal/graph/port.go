// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Port, the attachment point through which asset groups
// enter and leave a node.
//
// Why separate ID, Key and Label?
//
// The ID identifies a port inside its node and is what edges point at. The
// Label is what users see and what groups are routed by; two ports may share
// it. The Key is the processor's own stable name for a port (a filter rule
// id, for example). When the processor's configuration changes, ports are
// matched back to their previous incarnation by Key first, so renaming a
// filter rule renames the port instead of orphaning its edges.
package graph

import (
	"fmt"

	"github.com/google/uuid"
)

// Direction tells whether a port consumes or produces groups.
type Direction int

const (
	Input Direction = iota
	Output
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Port is a labeled attachment point owned by exactly one node.
type Port struct {
	ID        string
	Key       string
	Label     string
	Direction Direction
	// Category optionally restricts what may be connected, e.g. "bundle".
	Category string
}

// PortSpec is a processor's declaration of a port, before it has an ID.
type PortSpec struct {
	Key       string
	Label     string
	Direction Direction
	Category  string
}

// In declares an input port whose key equals its label.
func In(label string) PortSpec {
	return PortSpec{Key: label, Label: label, Direction: Input}
}

// Out declares an output port whose key equals its label.
func Out(label string) PortSpec {
	return PortSpec{Key: label, Label: label, Direction: Output}
}

func newPort(spec PortSpec) *Port {
	key := spec.Key
	if key == "" {
		key = spec.Label
	}
	return &Port{
		ID:        uuid.NewString(),
		Key:       key,
		Label:     spec.Label,
		Direction: spec.Direction,
		Category:  spec.Category,
	}
}

func (p *Port) clone() *Port {
	cp := *p
	return &cp
}
