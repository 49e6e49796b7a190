package packager

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	e, ok := ParseCommand("  zip -r out.zip ")
	require.True(t, ok)
	assert.Equal(t, "zip", e.Command)
	assert.Equal(t, []string{"-r", "out.zip"}, e.Args)

	_, ok = ParseCommand("   ")
	assert.False(t, ok)
}

func TestExec(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	ctx := context.Background()

	t.Run("passes files and platform", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.txt")
		p := Exec{Command: sh, Args: []string{"-c", `echo "$ASSETGRAPH_PLATFORM $@" > ` + out, "packager"}}

		require.NoError(t, p.Package(ctx, Artifact{Platform: "ios", Files: []string{"a.bundle", "b.bundle"}}))
		got, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "ios a.bundle b.bundle\n", string(got))
	})

	t.Run("failure carries command output", func(t *testing.T) {
		p := Exec{Command: sh, Args: []string{"-c", "echo broken >&2; exit 3"}}
		err := p.Package(ctx, Artifact{Platform: "ios"})
		assert.ErrorContains(t, err, "broken")
	})

	t.Run("empty command", func(t *testing.T) {
		assert.Error(t, Exec{}.Package(ctx, Artifact{}))
	})
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Package(context.Background(), Artifact{Platform: "android"}))
}
