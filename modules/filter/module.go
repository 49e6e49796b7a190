// Package filter provides the "filter" node kind. Each rule is an
// expr-lang boolean expression evaluated per record; matching records are
// emitted on the output port named after the rule's label. A record may
// match several rules and is then replicated on each of their ports.
// Filters never fabricate records: every output record is an input record.
package filter

import (
	"context"
	"fmt"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// Kind is the registered kind name.
const Kind = "filter"

// Input is the label of the only input port.
const Input = "in"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for a filter node.
type Config struct {
	Rules []Rule `hcl:"rule,block" yaml:"rules" validate:"min=1,dive"`
}

// Rule routes records matching Expr to the port labeled Label. ID keeps
// the port, and the edges attached to it, stable when the label is renamed.
type Rule struct {
	Label string `hcl:"label,label" yaml:"label" validate:"required"`
	ID    string `hcl:"id,optional" yaml:"id"`
	Expr  string `hcl:"expr" yaml:"expr" validate:"required"`
}

type filter struct {
	rules []*rule
}

// New compiles every rule of cfg.
func New(cfg *Config) (processor.Processor, error) {
	f := &filter{}
	seen := map[string]bool{}
	for _, r := range cfg.Rules {
		if seen[r.Label] {
			return nil, fmt.Errorf("%w: duplicate rule label %q", processor.ErrInvalidConfig, r.Label)
		}
		seen[r.Label] = true

		compiled, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", processor.ErrInvalidConfig, err)
		}
		f.rules = append(f.rules, compiled)
	}
	return f, nil
}

// Ports declares one output port per rule.
func Ports(cfg *Config) []graph.PortSpec {
	specs := []graph.PortSpec{graph.In(Input)}
	for _, r := range cfg.Rules {
		key := r.ID
		if key == "" {
			key = r.Label
		}
		specs = append(specs, graph.PortSpec{Key: key, Label: r.Label, Direction: graph.Output})
	}
	return specs
}

func (f *filter) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	out := make(processor.Outputs, len(f.rules))
	for _, r := range f.rules {
		out[r.label] = asset.Group{}
	}

	records := in.Get(Input)
	for i, rec := range records {
		env := newEnv(rec, pc.Target)
		for _, r := range f.rules {
			ok, err := r.match(env)
			if err != nil {
				return nil, err
			}
			if ok {
				out[r.label] = append(out[r.label], rec)
			}
		}
		if len(records) > 100 && i%100 == 0 {
			pc.Report("Filtering", float64(i)/float64(len(records)))
		}
	}
	for _, r := range f.rules {
		pc.Logger.Debug("Rule evaluated.", "label", r.label, "matched", len(out[r.label]), "of", len(records))
	}
	return out, nil
}

func (f *filter) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	return f.Setup(ctx, pc, in)
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Routes records to one output per rule.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports:       func(cfg any) []graph.PortSpec { return Ports(cfg.(*Config)) },
	})
}
