// Package modifier provides the "modifier" node kind, which edits record
// metadata. An optional asset type restricts which records are touched;
// the others flow through unchanged.
package modifier

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// Kind is the registered kind name.
const Kind = "modifier"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for a modifier node.
type Config struct {
	// Type restricts the modifier to one asset type.
	Type string `hcl:"type,optional" yaml:"type" validate:"omitempty,oneof=texture model audio material prefab scene script text bundle other"`
	// Strict turns a record of another type into an error instead of
	// letting it through.
	Strict    bool             `hcl:"strict,optional" yaml:"strict"`
	Set       map[string]string `hcl:"set,optional" yaml:"set"`
	Remove    []string          `hcl:"remove,optional" yaml:"remove"`
	Variant   string            `hcl:"variant,optional" yaml:"variant"`
	Platforms []PlatformSet     `hcl:"platform,block" yaml:"platforms" validate:"dive"`
}

// PlatformSet adds metadata for one build target.
type PlatformSet struct {
	Name string            `hcl:"name,label" yaml:"name" validate:"required"`
	Set  map[string]string `hcl:"set" yaml:"set"`
}

type modifier struct {
	cfg       *Config
	platforms processor.PerPlatform[map[string]string]
}

// New builds a modifier.
func New(cfg *Config) (processor.Processor, error) {
	m := &modifier{cfg: cfg, platforms: processor.PerPlatform[map[string]string]{}}
	for _, p := range cfg.Platforms {
		m.platforms[p.Name] = p.Set
	}
	return m, nil
}

func (m *modifier) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	set := maps.Clone(m.cfg.Set)
	if set == nil {
		set = map[string]string{}
	}
	if extra, ok := m.platforms.For(pc.Target); ok {
		maps.Copy(set, extra)
	}
	var kv []string
	for _, k := range slices.Sorted(maps.Keys(set)) {
		kv = append(kv, k, set[k])
	}

	out := asset.Group{}
	for _, rec := range in.All() {
		if m.cfg.Type != "" && rec.Type != asset.Type(m.cfg.Type) {
			if m.cfg.Strict {
				return nil, fmt.Errorf("%w: %s is a %s, expected %s", processor.ErrMissingInput, rec.Path, rec.Type, m.cfg.Type)
			}
			out = append(out, rec)
			continue
		}
		rec = rec.WithMeta(kv...)
		for _, k := range m.cfg.Remove {
			delete(rec.Meta, k)
		}
		if m.cfg.Variant != "" {
			rec = rec.WithVariant(m.cfg.Variant)
		}
		out = append(out, rec)
	}
	return processor.Outputs{"out": out}, nil
}

func (m *modifier) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	return m.Setup(ctx, pc, in)
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Sets or removes record metadata.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports: func(any) []graph.PortSpec {
			return []graph.PortSpec{graph.In("in"), graph.Out("out")}
		},
	})
}
