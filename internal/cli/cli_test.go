package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportGraph = `
variable "dest" {
  default = "exported"
}

node "loader" "sources" {}

node "exporter" "copy" {
  dir = var.dest
}

edge {
  from = "sources"
  to   = "copy"
}
`

func project(t *testing.T, doc string) (graphPath, assets, work string) {
	t.Helper()
	assets = testutil.WriteFiles(t, t.TempDir(), map[string]string{"a/one.txt": "1", "b/two.txt": "2"})
	docDir := testutil.WriteFiles(t, t.TempDir(), map[string]string{"graph.hcl": doc})
	return filepath.Join(docDir, "graph.hcl"), assets, t.TempDir()
}

func TestExecuteUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"build", "--nope"}, "unknown flag: --nope"},
		{"unknown command", []string{"deploy"}, `unknown command "deploy"`},
		{"missing graph", []string{"setup"}, "GraphPath is a required"},
		{"bad log level", []string{"setup", "-g", "x.hcl", "--log-level", "loud"}, "invalid log level"},
		{"bad variable", []string{"setup", "-g", "x.hcl", "--var", "novalue"}, `invalid --var "novalue"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Execute(context.Background(), &bytes.Buffer{}, tt.args)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, ExitUsage, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.want)
		})
	}
}

func TestExecuteBuild(t *testing.T) {
	// --- Arrange ---
	graphPath, assets, work := project(t, exportGraph)
	out := &testutil.SafeBuffer{}
	args := []string{
		"build", "-g", graphPath, "--assets", assets,
		"-o", filepath.Join(work, "out"), "--in-memory-cache",
		"--var", "dest=shipped", "--target", "ios",
	}

	// --- Act ---
	err := Execute(context.Background(), out, args)

	// --- Assert ---
	require.NoError(t, err, out.String())
	assert.FileExists(t, filepath.Join(work, "out", "shipped", "one.txt"))
	assert.FileExists(t, filepath.Join(work, "out", "shipped", "two.txt"))
	assert.Contains(t, out.String(), "copy: Done")
}

func TestExecuteReportsIssues(t *testing.T) {
	// Both files land on the same name when folders are flattened.
	graphPath, _, work := project(t, exportGraph)
	assets := testutil.WriteFiles(t, t.TempDir(), map[string]string{"a/same.txt": "1", "b/same.txt": "2"})
	out := &bytes.Buffer{}

	err := Execute(context.Background(), out, []string{
		"setup", "-g", graphPath, "--assets", assets, "-o", filepath.Join(work, "out"), "--in-memory-cache",
	})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitIssues, exitErr.Code)
	assert.Contains(t, out.String(), "⚠️")
	assert.Contains(t, out.String(), "copy")
}

func TestExecuteValidateNode(t *testing.T) {
	graphPath, assets, work := project(t, exportGraph)
	base := []string{"validate", "-g", graphPath, "--assets", assets, "--cache-dir", filepath.Join(work, "cache"), "--in-memory-cache"}

	out := &bytes.Buffer{}
	require.NoError(t, Execute(context.Background(), out, append(base, "--node", "copy")))
	assert.Contains(t, out.String(), "No issues found.")

	err := Execute(context.Background(), &bytes.Buffer{}, append(base, "--node", "missing"))
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitUsage, exitErr.Code)
}

func TestExecuteKinds(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, Execute(context.Background(), out, []string{"kinds"}))
	for _, kind := range []string{"bundlebuilder", "exporter", "filter", "loader", "postprocess"} {
		assert.Contains(t, out.String(), kind)
	}
}

func TestExecuteCacheClear(t *testing.T) {
	graphPath, assets, work := project(t, exportGraph)
	out := &bytes.Buffer{}
	err := Execute(context.Background(), out, []string{
		"cache", "clear", "-g", graphPath, "--assets", assets, "--cache-dir", filepath.Join(work, "cache"),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Cache cleared.")
	assert.DirExists(t, filepath.Join(work, "cache", "state"))
}
