package modifier

import (
	"context"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifier(t *testing.T) {
	tagged := asset.NewRecord("/p/a.png", "1").WithMeta("old", "x", "keep", "y")
	audio := asset.NewRecord("/p/b.ogg", "2")
	in := processor.Inputs{"in": asset.Group{tagged, audio}}

	t.Run("type constraint lets other records through", func(t *testing.T) {
		p, err := New(&Config{
			Type:      "texture",
			Set:       map[string]string{"quality": "high"},
			Remove:    []string{"old"},
			Variant:   "hd",
			Platforms: []PlatformSet{{Name: "switch", Set: map[string]string{"quality": "low"}}},
		})
		require.NoError(t, err)

		out, err := p.Setup(context.Background(), testutil.ProcessorContext(t, nil, processor.ModeSetup, "switch"), in)
		require.NoError(t, err)
		require.Len(t, out["out"], 2)

		got := out["out"][0]
		assert.Equal(t, map[string]string{"quality": "low", "keep": "y"}, got.Meta)
		assert.Equal(t, "hd", got.Variant)
		assert.True(t, audio.Equal(out["out"][1]))
		assert.Equal(t, "x", tagged.Get("old"), "input record untouched")
	})

	t.Run("strict mode fails on other types", func(t *testing.T) {
		p, err := New(&Config{Type: "texture", Strict: true})
		require.NoError(t, err)

		_, err = p.Run(context.Background(), testutil.ProcessorContext(t, nil, processor.ModeRun, ""), in)
		require.ErrorIs(t, err, processor.ErrMissingInput)
		assert.ErrorContains(t, err, "b.ogg")
	})
}
