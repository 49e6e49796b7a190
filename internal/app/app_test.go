package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/testutil"
	"github.com/specialistvlad/assetgraph/modules/bundlebuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundleGraph = `
node "loader" "sources" {}

node "grouping" "by_folder" {
  pattern = "*/"
}

node "bundleconfig" "assign" {
  name = "{group}"
}

node "bundlebuilder" "build" {}

edge {
  from = "sources"
  to   = "by_folder"
}

edge {
  from = "by_folder"
  to   = "assign"
}

edge {
  from = "assign"
  to   = "build"
}
`

// setupAppTest creates an app over a fresh project: assets, a graph
// document and output folders all live in temporary directories.
func setupAppTest(t *testing.T, graphSrc string, mutate func(*Config)) (*App, *testutil.SafeBuffer) {
	t.Helper()

	assets := testutil.WriteFiles(t, t.TempDir(), map[string]string{
		"ui/button.png": "button",
		"ui/panel.png":  "panel",
		"hero/mesh.fbx": "mesh",
	})
	docDir := testutil.WriteFiles(t, t.TempDir(), map[string]string{"graph.hcl": graphSrc})
	work := t.TempDir()

	cfg := Config{
		GraphPath:     filepath.Join(docDir, "graph.hcl"),
		AssetsPath:    assets,
		Target:        "android",
		OutputDir:     filepath.Join(work, "build"),
		CacheDir:      filepath.Join(work, "cache"),
		InMemoryCache: true,
		LogLevel:      "debug",
		Debounce:      50 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	validated, err := NewConfig(cfg)
	require.NoError(t, err)

	out := &testutil.SafeBuffer{}
	a, err := NewApp(out, validated)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close()
		if os.Getenv("ASSETGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), out.String())
		}
	})
	return a, out
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"graph path required", Config{}, "GraphPath is a required"},
		{"bad log level", Config{GraphPath: "g.hcl", LogLevel: "loud"}, "invalid log level"},
		{"bad log format", Config{GraphPath: "g.hcl", LogFormat: "xml"}, "invalid log format"},
		{"bad port", Config{GraphPath: "g.hcl", HealthcheckPort: 70000}, "invalid healthcheck port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := NewConfig(Config{GraphPath: "g.hcl"})
		require.NoError(t, err)
		assert.Equal(t, ".", cfg.AssetsPath)
		assert.Equal(t, "build", cfg.OutputDir)
		assert.Equal(t, 1, cfg.Workers)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "info", cfg.LogLevel)
	})
}

func TestBuildWritesBundles(t *testing.T) {
	// --- Arrange ---
	a, out := setupAppTest(t, bundleGraph, func(c *Config) { c.Workers = 4 })

	// --- Act ---
	issues := a.Build(context.Background())

	// --- Assert ---
	require.True(t, issues.Empty(), issues.String())
	dir := filepath.Join(a.config.OutputDir, "android")
	entries, err := bundlebuilder.ReadArchive(filepath.Join(dir, "ui.bundle"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.FileExists(t, filepath.Join(dir, "hero.bundle"))

	assert.Contains(t, out.String(), "sources: Started")
	assert.Contains(t, out.String(), "/4] build: Done")
}

func TestSetupReportsIssues(t *testing.T) {
	broken := strings.Replace(bundleGraph, `pattern = "*/"`, `pattern = "no-wildcard"`, 1)
	a, out := setupAppTest(t, broken, nil)

	issues := a.Setup(context.Background())
	require.Len(t, issues, 1)
	assert.Equal(t, "by_folder", issues[0].NodeName)

	a.PrintIssues(issues)
	assert.Contains(t, out.String(), "by_folder")
	assert.NoDirExists(t, a.config.OutputDir, "a dry pass writes nothing")
}

func TestValidateNode(t *testing.T) {
	a, _ := setupAppTest(t, bundleGraph, nil)

	issues, err := a.Validate(context.Background(), "assign")
	require.NoError(t, err)
	assert.True(t, issues.Empty())

	_, err = a.Validate(context.Background(), "nope")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	a, _ := setupAppTest(t, bundleGraph, nil)
	require.True(t, a.Setup(context.Background()).Empty())
	h := a.handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `assetgraph_passes_total{mode="setup",result="clean"} 1`)
}

func TestDeleteCacheWithPersistentStore(t *testing.T) {
	a, out := setupAppTest(t, bundleGraph, func(c *Config) { c.InMemoryCache = false })

	require.True(t, a.Setup(context.Background()).Empty())
	require.True(t, a.Setup(context.Background()).Empty())
	assert.Contains(t, out.String(), "Up to date")

	require.NoError(t, a.DeleteCache(context.Background()))
	assert.Contains(t, out.String(), "Cache cleared.")
	assert.DirExists(t, filepath.Join(a.config.CacheDir, "state"))
}

func TestWatchReactsToChanges(t *testing.T) {
	// --- Arrange ---
	a, out := setupAppTest(t, bundleGraph, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching for changes.")
	}, 10*time.Second, 20*time.Millisecond)

	// --- Act ---
	testutil.WriteFiles(t, a.assets.Root(), map[string]string{"ui/icon.png": "icon"})

	// --- Assert ---
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "Dry pass finished.") >= 2
	}, 10*time.Second, 20*time.Millisecond)
	_, ok := a.assets.Get(filepath.Join(a.assets.Root(), "ui", "icon.png"))
	assert.True(t, ok)

	require.NoError(t, os.Remove(a.config.GraphPath))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("watch did not stop after the document was removed")
	}
}

func TestWatchFollowsMovedDocument(t *testing.T) {
	// --- Arrange ---
	a, out := setupAppTest(t, bundleGraph, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching for changes.")
	}, 10*time.Second, 20*time.Millisecond)

	// --- Act ---
	moved := filepath.Join(filepath.Dir(a.config.GraphPath), "pipeline.hcl")
	require.NoError(t, os.Rename(a.config.GraphPath, moved))

	// --- Assert ---
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Graph document reloaded.")
	}, 10*time.Second, 20*time.Millisecond)
	assert.Contains(t, out.String(), "Graph document moved, following it.")
	assert.NotContains(t, out.String(), "Graph document removed")
	select {
	case err := <-done:
		t.Fatalf("watch stopped after the document moved: %v", err)
	default:
	}

	// The moved document is the one being watched now.
	require.NoError(t, os.Remove(moved))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("watch did not stop after the moved document was removed")
	}
}
