// Package bundlebuilder provides the "bundlebuilder" node kind. It emits one
// bundle record per bundle name assigned upstream. In run mode every bundle
// is written as a zstd-compressed tar into <output>/<platform>/ and the
// finished files are handed to the packager.
package bundlebuilder

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/packager"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
	"github.com/specialistvlad/assetgraph/modules/bundleconfig"
)

// Kind is the registered kind name.
const Kind = "bundlebuilder"

// Extension is the file extension of written bundles.
const Extension = ".bundle"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for a bundle builder node.
type Config struct {
	// Level is the zstd encoder level.
	Level string `hcl:"level,optional" yaml:"level" validate:"omitempty,oneof=fastest default better best"`
	// SkipPackaging writes the bundles without calling the packager.
	SkipPackaging bool `hcl:"skip_packaging,optional" yaml:"skip_packaging"`
}

type bundleBuilder struct {
	level zstd.EncoderLevel
	cfg   *Config
}

// New builds a bundle builder.
func New(cfg *Config) (processor.Processor, error) {
	level := zstd.SpeedDefault
	if cfg.Level != "" {
		var ok bool
		if ok, level = zstd.EncoderLevelFromString(cfg.Level); !ok {
			return nil, fmt.Errorf("%w: unknown compression level %q", processor.ErrInvalidConfig, cfg.Level)
		}
	}
	return &bundleBuilder{level: level, cfg: cfg}, nil
}

// bundle is one bundle to build.
type bundle struct {
	name    string
	variant string
	members asset.Group
}

// PlatformDir returns the directory bundles for target are written to.
func PlatformDir(outputDir, target string) string {
	if target == "" {
		target = processor.DefaultPlatform
	}
	return filepath.Join(outputDir, target)
}

func collect(in asset.Group) []*bundle {
	byName := map[string]*bundle{}
	for _, rec := range in {
		name := rec.Get(bundleconfig.BundleKey)
		if name == "" {
			continue
		}
		b, ok := byName[name]
		if !ok {
			b = &bundle{name: name, variant: rec.Get(bundleconfig.VariantKey)}
			byName[name] = b
		}
		b.members = append(b.members, rec)
	}
	bundles := make([]*bundle, 0, len(byName))
	for _, b := range byName {
		bundles = append(bundles, b)
	}
	slices.SortFunc(bundles, func(a, b *bundle) int { return cmp.Compare(a.name, b.name) })
	return bundles
}

func (b *bundle) record(dir, target string) asset.Record {
	name := b.name
	if b.variant != "" {
		name += "." + b.variant
	}
	rec := asset.NewRecord(filepath.Join(dir, name+Extension), strconv.FormatUint(b.members.Fingerprint(), 16))
	rec = rec.WithMeta(bundleconfig.BundleKey, b.name, "assets", strconv.Itoa(len(b.members)), "platform", target)
	if b.variant != "" {
		rec = rec.WithVariant(b.variant)
	}
	return rec
}

func (bb *bundleBuilder) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	dir := PlatformDir(pc.OutputDir, pc.Target)
	out := asset.Group{}
	for _, b := range collect(in.All()) {
		out = append(out, b.record(dir, pc.Target))
	}
	return processor.Outputs{"out": out}, nil
}

func (bb *bundleBuilder) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	dir := PlatformDir(pc.OutputDir, pc.Target)
	bundles := collect(in.All())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle directory: %w", err)
	}

	out := asset.Group{}
	for i, b := range bundles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := b.record(dir, pc.Target)
		if err := writeArchive(ctx, rec.Path, pc.Assets.Root(), b.members, bb.level); err != nil {
			return nil, fmt.Errorf("bundle %s: %w", b.name, err)
		}
		pc.Logger.Debug("Bundle written.", "bundle", b.name, "path", rec.Path, "assets", len(b.members))
		pc.Report("Writing bundles", float64(i+1)/float64(len(bundles)))
		out = append(out, rec)
	}

	if len(out) > 0 && !bb.cfg.SkipPackaging {
		artifact := packager.Artifact{Platform: pc.Target, Node: pc.NodeName, Files: out.Paths()}
		if err := pc.Packager.Package(ctx, artifact); err != nil {
			return nil, err
		}
	}
	pc.Logger.Info("Bundles built.", "platform", pc.Target, "bundles", len(out))
	return processor.Outputs{"out": out}, nil
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Writes compressed bundles and packages them.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports: func(any) []graph.PortSpec {
			return []graph.PortSpec{graph.In("in"), graph.Out("out")}
		},
		Accepts: []string{bundleconfig.Kind},
	})
}
