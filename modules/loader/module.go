// Package loader provides the "loader" node kind: the source of every
// pipeline. It reads the records below a project folder from the asset
// database.
package loader

import (
	"context"
	"slices"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// Kind is the registered kind name.
const Kind = "loader"

// Output is the label of the only port.
const Output = "assets"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for a loader node.
type Config struct {
	// Path is the folder to load, relative to the asset root. Empty loads
	// the whole project.
	Path string `hcl:"path,optional" yaml:"path"`
	// Types keeps only records of these asset types.
	Types []string `hcl:"types,optional" yaml:"types" validate:"dive,oneof=texture model audio material prefab scene script text bundle other"`
	// Platforms overrides Path per build target.
	Platforms []PlatformPath `hcl:"platform,block" yaml:"platforms" validate:"dive"`
}

// PlatformPath is the folder loaded for one build target.
type PlatformPath struct {
	Name string `hcl:"name,label" yaml:"name" validate:"required"`
	Path string `hcl:"path" yaml:"path"`
}

type loader struct {
	paths processor.PerPlatform[string]
	types []asset.Type
}

// New builds a loader from its configuration.
func New(cfg *Config) (processor.Processor, error) {
	l := &loader{paths: processor.PerPlatform[string]{processor.DefaultPlatform: cfg.Path}}
	for _, p := range cfg.Platforms {
		l.paths[p.Name] = p.Path
	}
	for _, t := range cfg.Types {
		l.types = append(l.types, asset.Type(t))
	}
	return l, nil
}

// Watches implements processor.Source.
func (l *loader) Watches(target string) []string {
	path, _ := l.paths.For(target)
	return []string{path}
}

func (l *loader) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	path, _ := l.paths.For(pc.Target)
	records := pc.Assets.Under(pc.Assets.Resolve(path))
	if len(l.types) > 0 {
		records = slices.DeleteFunc(records, func(r asset.Record) bool {
			return !slices.Contains(l.types, r.Type)
		})
	}
	pc.Logger.Debug("Loaded assets.", "path", path, "records", len(records))
	return processor.Outputs{Output: records}, nil
}

func (l *loader) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	return l.Setup(ctx, pc, in)
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Loads project assets below a folder.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports:       func(any) []graph.PortSpec { return []graph.PortSpec{graph.Out(Output)} },
	})
}
