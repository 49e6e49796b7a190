package testutil

import (
	"path/filepath"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/packager"
	"github.com/specialistvlad/assetgraph/internal/processor"
)

// ProcessorContext returns a context for invoking a processor directly. The
// asset database is rooted at assets, output and cache directories live in
// a fresh temporary directory.
func ProcessorContext(t testing.TB, assets *asset.Database, mode processor.Mode, target string) *processor.Context {
	t.Helper()
	if assets == nil {
		assets = asset.NewDatabase(t.TempDir())
	}
	dir := t.TempDir()
	return &processor.Context{
		NodeID:    "node-id",
		NodeName:  "node",
		Target:    target,
		Mode:      mode,
		Assets:    assets,
		OutputDir: filepath.Join(dir, "out"),
		CacheDir:  filepath.Join(dir, "cache"),
		Packager:  packager.Noop{},
		Logger:    ctxlog.Discard(),
	}
}

// Records builds a group with one record per path.
func Records(paths ...string) asset.Group {
	g := asset.Group{}
	for _, p := range paths {
		g = append(g, asset.NewRecord(p, "fp-"+p))
	}
	return g
}
