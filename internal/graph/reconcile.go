// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file keeps node port sets in step with their processor configuration.
//
// Why reconcile instead of rebuilding?
//
// Some processors derive their ports from configuration: a filter exposes one
// output per rule. When the configuration changes, ports that still exist
// must keep their IDs so the edges attached to them survive. Ports that
// disappeared take their edges with them, and edges whose source port was
// renamed take the new label.
package graph

import (
	"errors"
	"fmt"
	"slices"
)

// ReconcilePorts syncs every node's ports with src and returns the edges
// that were pruned because one of their ports no longer exists. Nodes for
// which src fails keep their current ports; those failures are joined into
// the returned error.
func (g *Graph) ReconcilePorts(src PortSource) ([]*Edge, error) {
	var errs []error
	for _, n := range g.nodes {
		specs, err := src.PortsFor(n)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", n.Name, err))
			continue
		}
		n.Ports = reconcileNodePorts(n.Ports, specs)
	}

	var pruned []*Edge
	g.edges = slices.DeleteFunc(g.edges, func(e *Edge) bool {
		fromNode, ok := g.Node(e.From.Node)
		if !ok {
			pruned = append(pruned, e)
			return true
		}
		fromPort, ok := fromNode.Port(e.From.Port)
		if !ok || fromPort.Direction != Output {
			pruned = append(pruned, e)
			return true
		}
		toNode, ok := g.Node(e.To.Node)
		if !ok {
			pruned = append(pruned, e)
			return true
		}
		if toPort, ok := toNode.Port(e.To.Port); !ok || toPort.Direction != Input {
			pruned = append(pruned, e)
			return true
		}
		e.Label = fromPort.Label
		return false
	})

	return pruned, errors.Join(errs...)
}

// reconcileNodePorts builds the new port list for specs, reusing the ID of
// an existing port with the same direction and key, or failing that the same
// direction and label.
func reconcileNodePorts(current []*Port, specs []PortSpec) []*Port {
	used := make(map[string]bool, len(current))
	match := func(spec PortSpec, byKey bool) *Port {
		for _, p := range current {
			if used[p.ID] || p.Direction != spec.Direction {
				continue
			}
			if (byKey && p.Key == spec.Key) || (!byKey && p.Label == spec.Label) {
				return p
			}
		}
		return nil
	}

	specs = slices.Clone(specs)
	next := make([]*Port, len(specs))
	for i, spec := range specs {
		if spec.Key == "" {
			spec.Key = spec.Label
			specs[i] = spec
		}
		if p := match(spec, true); p != nil {
			used[p.ID] = true
			next[i] = &Port{ID: p.ID, Key: spec.Key, Label: spec.Label, Direction: spec.Direction, Category: spec.Category}
		}
	}
	for i, spec := range specs {
		if next[i] != nil {
			continue
		}
		if p := match(spec, false); p != nil {
			used[p.ID] = true
			next[i] = &Port{ID: p.ID, Key: spec.Key, Label: spec.Label, Direction: spec.Direction, Category: spec.Category}
			continue
		}
		next[i] = newPort(spec)
	}
	return next
}
