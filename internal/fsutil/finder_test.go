package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestFindFilesByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.hcl"))
	writeFile(t, filepath.Join(root, "sub", "b.hcl"))
	writeFile(t, filepath.Join(root, "sub", "c.yaml"))
	writeFile(t, filepath.Join(root, ".hidden", "d.hcl"))

	t.Run("walks directories and skips hidden ones", func(t *testing.T) {
		files, err := FindFilesByExtension(root, ".hcl")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			filepath.Join(root, "a.hcl"),
			filepath.Join(root, "sub", "b.hcl"),
		}, files)
	})

	t.Run("several extensions", func(t *testing.T) {
		files, err := FindFilesByExtension(root, ".hcl", ".yaml")
		require.NoError(t, err)
		assert.Len(t, files, 3)
	})

	t.Run("single file root", func(t *testing.T) {
		files, err := FindFilesByExtension(filepath.Join(root, "a.hcl"), ".hcl")
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "a.hcl")}, files)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := FindFilesByExtension(filepath.Join(root, "nope"), ".hcl")
		assert.Error(t, err)
	})

	t.Run("empty extension panics", func(t *testing.T) {
		assert.Panics(t, func() { _, _ = FindFilesByExtension(root) })
	})
}

func TestWithin(t *testing.T) {
	tests := []struct {
		root, path string
		want       bool
	}{
		{"/a/b", "/a/b", true},
		{"/a/b", "/a/b/c.png", true},
		{"/a/b", "/a/bc/d.png", false},
		{"/a/b", "/a", false},
		{"/a/b/", "/a/b/c", true},
	}
	for _, tt := range tests {
		t.Run(tt.root+"|"+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Within(tt.root, tt.path))
		})
	}
}
