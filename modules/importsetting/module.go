// Package importsetting provides the "importsetting" node kind. It attaches
// import settings to records as "import.<name>" metadata, with optional
// overrides per build target.
package importsetting

import (
	"context"
	"maps"
	"slices"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// Kind is the registered kind name.
const Kind = "importsetting"

// MetaPrefix prefixes every metadata key written by this kind.
const MetaPrefix = "import."

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for an import setting node.
type Config struct {
	Settings  map[string]string  `hcl:"settings,optional" yaml:"settings"`
	Types     []string           `hcl:"types,optional" yaml:"types" validate:"dive,oneof=texture model audio material prefab scene script text bundle other"`
	Platforms []PlatformSettings `hcl:"platform,block" yaml:"platforms" validate:"dive"`
}

// PlatformSettings overrides settings for one build target.
type PlatformSettings struct {
	Name     string            `hcl:"name,label" yaml:"name" validate:"required"`
	Settings map[string]string `hcl:"settings" yaml:"settings"`
}

type importSetting struct {
	defaults  map[string]string
	platforms processor.PerPlatform[map[string]string]
	types     []asset.Type
}

// New builds an import setting processor.
func New(cfg *Config) (processor.Processor, error) {
	p := &importSetting{
		defaults:  cfg.Settings,
		platforms: processor.PerPlatform[map[string]string]{},
	}
	for _, ps := range cfg.Platforms {
		p.platforms[ps.Name] = ps.Settings
	}
	for _, t := range cfg.Types {
		p.types = append(p.types, asset.Type(t))
	}
	return p, nil
}

// settings merges the defaults with the overrides for target.
func (p *importSetting) settings(target string) map[string]string {
	merged := maps.Clone(p.defaults)
	if merged == nil {
		merged = map[string]string{}
	}
	if override, ok := p.platforms.For(target); ok {
		maps.Copy(merged, override)
	}
	return merged
}

func (p *importSetting) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	settings := p.settings(pc.Target)
	keys := slices.Sorted(maps.Keys(settings))
	kv := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, MetaPrefix+k, settings[k])
	}

	out := asset.Group{}
	for _, rec := range in.All() {
		if len(p.types) == 0 || slices.Contains(p.types, rec.Type) {
			rec = rec.WithMeta(kv...)
		}
		out = append(out, rec)
	}
	return processor.Outputs{"out": out}, nil
}

func (p *importSetting) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	return p.Setup(ctx, pc, in)
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Attaches import settings to records.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports: func(any) []graph.PortSpec {
			return []graph.PortSpec{graph.In("in"), graph.Out("out")}
		},
	})
}
