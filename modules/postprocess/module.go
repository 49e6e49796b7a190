// Package postprocess provides the "postprocess" node kind, a sink that
// hands the records it receives to the packager or to a custom command.
package postprocess

import (
	"context"

	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/packager"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// Kind is the registered kind name.
const Kind = "postprocess"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for a postprocess node.
type Config struct {
	// Command replaces the configured packager. The record paths are
	// appended to Args.
	Command string   `hcl:"command,optional" yaml:"command"`
	Args    []string `hcl:"args,optional" yaml:"args"`
	Env     []string `hcl:"env,optional" yaml:"env"`
	// SkipEmpty does nothing when no record arrives.
	SkipEmpty bool `hcl:"skip_empty,optional" yaml:"skip_empty"`
}

type postprocess struct {
	cfg *Config
}

// New builds a postprocess node.
func New(cfg *Config) (processor.Processor, error) {
	return &postprocess{cfg: cfg}, nil
}

func (p *postprocess) packager(pc *processor.Context) packager.Packager {
	if p.cfg.Command == "" {
		return pc.Packager
	}
	return packager.Exec{Command: p.cfg.Command, Args: p.cfg.Args, Env: p.cfg.Env, Dir: pc.OutputDir}
}

func (p *postprocess) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	return processor.Outputs{}, nil
}

func (p *postprocess) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	files := in.All().Paths()
	if len(files) == 0 && p.cfg.SkipEmpty {
		pc.Logger.Info("Nothing to postprocess.")
		return processor.Outputs{}, nil
	}
	artifact := packager.Artifact{Platform: pc.Target, Node: pc.NodeName, Files: files}
	if err := p.packager(pc).Package(ctx, artifact); err != nil {
		return nil, err
	}
	return processor.Outputs{}, nil
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Runs the packager on the received records.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports:       func(any) []graph.PortSpec { return []graph.PortSpec{graph.In("in")} },
	})
}
