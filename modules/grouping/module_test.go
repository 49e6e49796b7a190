package grouping

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupingFromPath(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		path string
		want string
	}{
		{"folder capture", Config{Pattern: "characters/*/"}, "characters/Hero/mesh.fbx", "Hero"},
		{"lowercased", Config{Pattern: "characters/*/", Lowercase: true}, "characters/Hero/mesh.fbx", "hero"},
		{"file name prefix", Config{Pattern: "ui/*_"}, "ui/button_normal.png", "button"},
		{"no match", Config{Pattern: "characters/*/"}, "props/box.fbx", ""},
		{"fallback", Config{Pattern: "characters/*/", Fallback: "misc"}, "props/box.fbx", "misc"},
		{"custom key", Config{Pattern: "levels/*/", Key: "level"}, "levels/forest/map.scene", "forest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(&tt.cfg)
			require.NoError(t, err)

			pc := testutil.ProcessorContext(t, nil, processor.ModeSetup, "")
			rec := asset.NewRecord(filepath.Join(pc.Assets.Root(), filepath.FromSlash(tt.path)), "fp")

			out, err := p.Setup(context.Background(), pc, processor.Inputs{"in": asset.Group{rec}})
			require.NoError(t, err)
			require.Len(t, out["out"], 1)

			key := tt.cfg.Key
			if key == "" {
				key = DefaultKey
			}
			assert.Equal(t, tt.want, out["out"][0].Get(key))
		})
	}
}

func TestGroupingPatternNeedsOneWildcard(t *testing.T) {
	for _, pattern := range []string{"characters/", "a/*/*/"} {
		_, err := New(&Config{Pattern: pattern})
		assert.ErrorIs(t, err, processor.ErrInvalidConfig, pattern)
	}
}
