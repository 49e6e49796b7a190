package bundleconfig

import (
	"context"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
	"github.com/specialistvlad/assetgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleNames(t *testing.T) {
	hero := asset.NewRecord("/p/hero/Mesh.fbx", "1").WithMeta("group", "Hero")
	loose := asset.NewRecord("/p/loose.png", "2")

	tests := []struct {
		name   string
		cfg    Config
		target string
		want   map[string]string
	}{
		{"group template", Config{Name: "{group}"}, "", map[string]string{"/p/hero/Mesh.fbx": "Hero"}},
		{"fallback", Config{Name: "{group}", Fallback: "shared"}, "", map[string]string{"/p/hero/Mesh.fbx": "Hero", "/p/loose.png": "shared"}},
		{"mixed placeholders", Config{Name: "{platform}_{type}_{name}", Lowercase: true}, "iOS", map[string]string{"/p/hero/Mesh.fbx": "ios_model_mesh", "/p/loose.png": "ios_texture_loose"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(&tt.cfg)
			require.NoError(t, err)

			out, err := p.Setup(context.Background(), testutil.ProcessorContext(t, nil, processor.ModeSetup, tt.target),
				processor.Inputs{"in": asset.Group{hero, loose}})
			require.NoError(t, err)

			got := map[string]string{}
			for _, rec := range out["out"] {
				got[rec.Path] = rec.Get(BundleKey)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBundleVariantPerPlatform(t *testing.T) {
	p, err := New(&Config{Name: "{group}", Platforms: []PlatformVariant{{Name: "android", Variant: "etc"}}})
	require.NoError(t, err)
	in := processor.Inputs{"in": asset.Group{asset.NewRecord("/p/a.png", "1").WithMeta("group", "ui")}}

	out, err := p.Setup(context.Background(), testutil.ProcessorContext(t, nil, processor.ModeSetup, "android"), in)
	require.NoError(t, err)
	assert.Equal(t, "etc", out["out"][0].Get(VariantKey))

	out, err = p.Setup(context.Background(), testutil.ProcessorContext(t, nil, processor.ModeSetup, "ios"), in)
	require.NoError(t, err)
	assert.Empty(t, out["out"][0].Get(VariantKey))
}

func TestBundleConfigValidation(t *testing.T) {
	reg := registry.Load(&Module{})

	_, err := reg.Build(Kind, &Config{})
	assert.ErrorIs(t, err, processor.ErrInvalidConfig, "name is required")

	_, err = reg.Build(Kind, &Config{Name: "{group"})
	assert.ErrorIs(t, err, processor.ErrInvalidConfig)
}
