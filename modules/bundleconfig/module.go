// Package bundleconfig provides the "bundleconfig" node kind. It assigns
// every record to a bundle by expanding a name template such as
// "{group}" or "ui_{type}" against the record.
package bundleconfig

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
const Kind = "bundleconfig"

// Metadata keys written by this kind.
const (
	BundleKey  = "bundle"
	VariantKey = "bundle.variant"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for a bundle configuration node.
type Config struct {
	// Name is the bundle name template. Placeholders name a metadata key
	// or one of name, type, variant and platform.
	Name string `hcl:"name" yaml:"name" validate:"required"`
	// Fallback names the bundle of records for which a placeholder is
	// empty. Without one those records are left out.
	Fallback  string            `hcl:"fallback,optional" yaml:"fallback"`
	Lowercase bool              `hcl:"lowercase,optional" yaml:"lowercase"`
	Platforms []PlatformVariant `hcl:"platform,block" yaml:"platforms" validate:"dive"`
}

// PlatformVariant selects the bundle variant built for one target.
type PlatformVariant struct {
	Name    string `hcl:"name,label" yaml:"name" validate:"required"`
	Variant string `hcl:"variant" yaml:"variant" validate:"required"`
}

type bundleConfig struct {
	cfg      *Config
	variants processor.PerPlatform[string]
}

// New checks the template and builds the processor.
func New(cfg *Config) (processor.Processor, error) {
	if strings.ContainsAny(placeholder.ReplaceAllString(cfg.Name, ""), "{}") {
		return nil, fmt.Errorf("%w: malformed bundle name template %q", processor.ErrInvalidConfig, cfg.Name)
	}
	b := &bundleConfig{cfg: cfg, variants: processor.PerPlatform[string]{}}
	for _, p := range cfg.Platforms {
		b.variants[p.Name] = p.Variant
	}
	return b, nil
}

// name expands the template for rec. ok is false when a placeholder
// resolved to an empty value.
func (b *bundleConfig) name(rec asset.Record, target string) (string, bool) {
	ok := true
	name := placeholder.ReplaceAllStringFunc(b.cfg.Name, func(m string) string {
		var v string
		switch key := m[1 : len(m)-1]; key {
		case "name":
			v = strings.TrimSuffix(rec.Name(), filepath.Ext(rec.Path))
		case "type":
			v = string(rec.Type)
		case "variant":
			v = rec.Variant
		case "platform":
			v = target
		default:
			v = rec.Get(key)
		}
		if v == "" {
			ok = false
		}
		return v
	})
	if b.cfg.Lowercase {
		name = strings.ToLower(name)
	}
	return name, ok
}

func (b *bundleConfig) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	variant, _ := b.variants.For(pc.Target)

	out := asset.Group{}
	skipped := 0
	for _, rec := range in.All() {
		name, ok := b.name(rec, pc.Target)
		if !ok {
			if b.cfg.Fallback == "" {
				skipped++
				continue
			}
			name = b.cfg.Fallback
		}
		rec = rec.WithMeta(BundleKey, name)
		if variant != "" {
			rec = rec.WithMeta(VariantKey, variant)
		}
		out = append(out, rec)
	}
	if skipped > 0 {
		pc.Logger.Warn("Records left out of every bundle.", "count", skipped, "template", b.cfg.Name)
	}
	return processor.Outputs{"out": out}, nil
}

func (b *bundleConfig) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	return b.Setup(ctx, pc, in)
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Assigns records to bundles.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports: func(any) []graph.PortSpec {
			return []graph.PortSpec{graph.In("in"), graph.Out("out")}
		},
		Rejects: []string{"bundlebuilder"},
	})
}
