// Package exporter provides the "exporter" node kind, a sink that copies
// the records it receives into an export directory.
package exporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// Kind is the registered kind name.
const Kind = "exporter"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for an exporter node.
type Config struct {
	// Dir is the destination. Relative paths are resolved against the
	// output directory; "{platform}" expands to the build target.
	Dir string `hcl:"dir" yaml:"dir" validate:"required"`
	// KeepStructure keeps paths relative to the asset root instead of
	// flattening every file into Dir.
	KeepStructure bool `hcl:"keep_structure,optional" yaml:"keep_structure"`
}

type exporter struct {
	cfg *Config
}

// New builds an exporter.
func New(cfg *Config) (processor.Processor, error) {
	return &exporter{cfg: cfg}, nil
}

func (e *exporter) dir(pc *processor.Context) string {
	target := pc.Target
	if target == "" {
		target = processor.DefaultPlatform
	}
	dir := strings.ReplaceAll(e.cfg.Dir, "{platform}", target)
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(pc.OutputDir, dir)
}

// plan maps every record to its destination and rejects two records
// landing on the same file.
func (e *exporter) plan(pc *processor.Context, in asset.Group) (map[string]string, error) {
	dir := e.dir(pc)
	dests := make(map[string]string, len(in))
	seen := make(map[string]string, len(in))
	for _, rec := range in {
		rel := filepath.Base(rec.Path)
		if e.cfg.KeepStructure {
			if r, err := filepath.Rel(pc.Assets.Root(), rec.Path); err == nil && !strings.HasPrefix(r, "..") {
				rel = r
			}
		}
		dest := filepath.Join(dir, rel)
		if prev, ok := seen[dest]; ok && prev != rec.Path {
			return nil, fmt.Errorf("%w: %s and %s both export to %s", processor.ErrInvalidConfig, prev, rec.Path, dest)
		}
		seen[dest] = rec.Path
		dests[rec.Path] = dest
	}
	return dests, nil
}

func (e *exporter) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	if _, err := e.plan(pc, in.All()); err != nil {
		return nil, err
	}
	return processor.Outputs{}, nil
}

func (e *exporter) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	records := in.All()
	dests, err := e.plan(pc, records)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := copyFile(rec.Path, dests[rec.Path]); err != nil {
			return nil, err
		}
		pc.Report("Exporting", float64(i+1)/float64(len(records)))
	}
	pc.Logger.Info("📤 Export finished.", "dir", e.dir(pc), "files", len(records))
	return processor.Outputs{}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("export %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("export %s: %w", src, err)
	}
	return out.Close()
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Copies records into an export directory.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports:       func(any) []graph.PortSpec { return []graph.PortSpec{graph.In("in")} },
	})
}
