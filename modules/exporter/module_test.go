package exporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporter(t *testing.T) {
	root := testutil.WriteFiles(t, t.TempDir(), map[string]string{
		"ui/a.png":    "a",
		"world/b.png": "b",
		"world/a.png": "other a",
	})
	db := asset.NewDatabase(root)
	require.NoError(t, db.Scan(context.Background()))

	t.Run("keep structure", func(t *testing.T) {
		p, err := New(&Config{Dir: "export/{platform}", KeepStructure: true})
		require.NoError(t, err)
		pc := testutil.ProcessorContext(t, db, processor.ModeRun, "ios")

		out, err := p.Run(context.Background(), pc, processor.Inputs{"in": db.Under("")})
		require.NoError(t, err)
		assert.Empty(t, out)

		got, err := os.ReadFile(filepath.Join(pc.OutputDir, "export", "ios", "world", "a.png"))
		require.NoError(t, err)
		assert.Equal(t, "other a", string(got))
	})

	t.Run("flat export rejects collisions", func(t *testing.T) {
		p, err := New(&Config{Dir: "flat"})
		require.NoError(t, err)
		pc := testutil.ProcessorContext(t, db, processor.ModeSetup, "")

		_, err = p.Setup(context.Background(), pc, processor.Inputs{"in": db.Under("")})
		require.ErrorIs(t, err, processor.ErrInvalidConfig)
		assert.ErrorContains(t, err, "a.png")
	})

	t.Run("setup writes nothing", func(t *testing.T) {
		p, err := New(&Config{Dir: "flat"})
		require.NoError(t, err)
		pc := testutil.ProcessorContext(t, db, processor.ModeSetup, "")

		_, err = p.Setup(context.Background(), pc, processor.Inputs{"in": db.Under("ui")})
		require.NoError(t, err)
		assert.NoDirExists(t, pc.OutputDir)
	})
}
