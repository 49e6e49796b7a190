package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
	"github.com/specialistvlad/assetgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scannedDatabase(t *testing.T) *asset.Database {
	t.Helper()
	root := testutil.WriteFiles(t, t.TempDir(), map[string]string{
		"ui/button.png":         "png",
		"ui/click.ogg":          "ogg",
		"ui/mobile/button.png":  "small png",
		"world/rock.fbx":        "fbx",
		"world/.hidden/tmp.png": "ignored",
	})
	db := asset.NewDatabase(root)
	require.NoError(t, db.Scan(context.Background()))
	return db
}

func TestLoaderReadsFolder(t *testing.T) {
	db := scannedDatabase(t)

	tests := []struct {
		name   string
		cfg    *Config
		target string
		want   []string
	}{
		{"whole project", &Config{}, "", []string{"ui/button.png", "ui/click.ogg", "ui/mobile/button.png", "world/rock.fbx"}},
		{"one folder", &Config{Path: "ui"}, "", []string{"ui/button.png", "ui/click.ogg", "ui/mobile/button.png"}},
		{"type filter", &Config{Path: "ui", Types: []string{"texture"}}, "", []string{"ui/button.png", "ui/mobile/button.png"}},
		{
			"platform override",
			&Config{Path: "ui", Platforms: []PlatformPath{{Name: "ios", Path: "ui/mobile"}}},
			"iOS",
			[]string{"ui/mobile/button.png"},
		},
		{"missing folder", &Config{Path: "nope"}, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			require.NoError(t, err)

			out, err := p.Setup(context.Background(), testutil.ProcessorContext(t, db, processor.ModeSetup, tt.target), nil)
			require.NoError(t, err)

			var got []string
			for _, path := range out[Output].Paths() {
				rel, err := filepath.Rel(db.Root(), path)
				require.NoError(t, err)
				got = append(got, filepath.ToSlash(rel))
			}
			assert.Equal(t, tt.want, got)
			assert.NotNil(t, out[Output], "the output group exists even when empty")
		})
	}
}

func TestLoaderWatchesItsFolder(t *testing.T) {
	p, err := New(&Config{Path: "ui", Platforms: []PlatformPath{{Name: "android", Path: "ui/android"}}})
	require.NoError(t, err)

	src, ok := p.(processor.Source)
	require.True(t, ok)
	assert.Equal(t, []string{"ui"}, src.Watches("ios"))
	assert.Equal(t, []string{"ui/android"}, src.Watches("android"))
}

func TestLoaderRejectsUnknownType(t *testing.T) {
	reg := registry.Load(&Module{})
	_, err := reg.Build(Kind, &Config{Types: []string{"sprite"}})
	assert.ErrorIs(t, err, processor.ErrInvalidConfig)
}
