package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, []string{"--help"})

	// --- Assert ---
	require.NoError(t, err)
	require.Contains(t, out.String(), "Usage:")
	require.Contains(t, out.String(), "watch")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"--this-is-not-a-valid-flag"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, cli.ExitUsage, exitErr.Code)
	require.Contains(t, exitErr.Message, "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_DocumentSyntaxError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	invalidHCL := `
		node "loader" "sources" {
		// Missing closing brace here
	`
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.hcl")
	require.NoError(t, os.WriteFile(path, []byte(invalidHCL), 0o600))

	// --- Act ---
	err := run(context.Background(), &bytes.Buffer{}, []string{"setup", "-g", path, "--assets", dir, "--in-memory-cache"})

	// --- Assert ---
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load graph document")
}
