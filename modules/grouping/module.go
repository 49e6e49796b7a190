// Package grouping provides the "grouping" node kind. It assigns a group
// name to records from their location: the pattern holds a single "*"
// that captures one path segment of the path relative to the asset root.
// "characters/*/" puts every file below characters/hero/ in group "hero".
package grouping

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// Kind is the registered kind name.
const Kind = "grouping"

// DefaultKey is the metadata key written when Config.Key is empty.
const DefaultKey = "group"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for a grouping node.
type Config struct {
	Pattern string `hcl:"pattern" yaml:"pattern" validate:"required,contains=*"`
	Key     string `hcl:"key,optional" yaml:"key"`
	// Fallback is the group of records the pattern does not match. Empty
	// leaves them without a group.
	Fallback  string `hcl:"fallback,optional" yaml:"fallback"`
	Lowercase bool   `hcl:"lowercase,optional" yaml:"lowercase"`
}

type grouping struct {
	cfg     *Config
	key     string
	pattern *regexp.Regexp
}

// New compiles the pattern of cfg.
func New(cfg *Config) (processor.Processor, error) {
	if strings.Count(cfg.Pattern, "*") != 1 {
		return nil, fmt.Errorf("%w: pattern %q must contain exactly one '*'", processor.ErrInvalidConfig, cfg.Pattern)
	}
	prefix, suffix, _ := strings.Cut(filepath.ToSlash(cfg.Pattern), "*")
	re, err := regexp.Compile("^" + regexp.QuoteMeta(prefix) + "([^/]+?)" + regexp.QuoteMeta(suffix))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", processor.ErrInvalidConfig, err)
	}
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}
	return &grouping{cfg: cfg, key: key, pattern: re}, nil
}

// group returns the group of a path relative to the asset root.
func (g *grouping) group(rel string) (string, bool) {
	m := g.pattern.FindStringSubmatch(filepath.ToSlash(rel))
	if m == nil {
		return g.cfg.Fallback, g.cfg.Fallback != ""
	}
	name := m[1]
	if g.cfg.Lowercase {
		name = strings.ToLower(name)
	}
	return name, true
}

func (g *grouping) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	out := asset.Group{}
	ungrouped := 0
	for _, rec := range in.All() {
		rel, err := filepath.Rel(pc.Assets.Root(), rec.Path)
		if err != nil {
			rel = rec.Path
		}
		if name, ok := g.group(rel); ok {
			rec = rec.WithMeta(g.key, name)
		} else {
			ungrouped++
		}
		out = append(out, rec)
	}
	if ungrouped > 0 {
		pc.Logger.Debug("Some records matched no group.", "count", ungrouped, "pattern", g.cfg.Pattern)
	}
	return processor.Outputs{"out": out}, nil
}

func (g *grouping) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	return g.Setup(ctx, pc, in)
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Assigns a group to records from their path.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports: func(any) []graph.PortSpec {
			return []graph.PortSpec{graph.In("in"), graph.Out("out")}
		},
	})
}
