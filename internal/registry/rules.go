package registry

import (
	"fmt"
	"slices"

	"github.com/specialistvlad/assetgraph/internal/graph"
)

// PortsFor implements graph.PortSource.
func (r *Registry) PortsFor(n *graph.Node) ([]graph.PortSpec, error) {
	def, err := r.definition(n.Kind)
	if err != nil {
		return nil, err
	}
	cfg := n.Config
	if cfg == nil {
		cfg = def.NewConfig()
	}
	return def.Ports(cfg), nil
}

// CanConnect implements graph.Checker.
func (r *Registry) CanConnect(from, to *graph.Node) error {
	if _, err := r.definition(from.Kind); err != nil {
		return err
	}
	toDef, err := r.definition(to.Kind)
	if err != nil {
		return err
	}
	if len(toDef.Accepts) > 0 && !slices.Contains(toDef.Accepts, from.Kind) {
		return fmt.Errorf("%s only accepts input from %v, not %s: %w", to.Kind, toDef.Accepts, from.Kind, graph.ErrIncompatible)
	}
	if slices.Contains(toDef.Rejects, from.Kind) {
		return fmt.Errorf("%s cannot take input from %s: %w", to.Kind, from.Kind, graph.ErrIncompatible)
	}
	return nil
}

// NewNode builds a node of kind with the ports its configuration declares.
func (r *Registry) NewNode(name, kind string, cfg any) (*graph.Node, error) {
	def, err := r.definition(kind)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = def.NewConfig()
	}
	return graph.NewNode(name, kind, cfg, def.Ports(cfg)...), nil
}
