package postprocess

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostprocessSetupHasNoSideEffects(t *testing.T) {
	p, err := New(&Config{Command: "false"})
	require.NoError(t, err)

	out, err := p.Setup(context.Background(), testutil.ProcessorContext(t, nil, processor.ModeSetup, ""),
		processor.Inputs{"in": testutil.Records("/p/a.bundle")})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPostprocessRunsCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p, err := New(&Config{Command: "sh", Args: []string{"-c", `echo "$ASSETGRAPH_PLATFORM $@" > done.txt`, "post"}})
	require.NoError(t, err)
	pc := testutil.ProcessorContext(t, nil, processor.ModeRun, "android")
	require.NoError(t, os.MkdirAll(pc.OutputDir, 0o755))

	_, err = p.Run(context.Background(), pc, processor.Inputs{"in": testutil.Records("/p/a.bundle", "/p/b.bundle")})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(pc.OutputDir, "done.txt"))
	require.NoError(t, err)
	assert.Equal(t, "android /p/a.bundle /p/b.bundle\n", string(got))
}

func TestPostprocessCommandFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	p, err := New(&Config{Command: "false"})
	require.NoError(t, err)
	pc := testutil.ProcessorContext(t, nil, processor.ModeRun, "")

	_, err = p.Run(context.Background(), pc, processor.Inputs{"in": testutil.Records("/p/a.bundle")})
	assert.ErrorContains(t, err, "packager false failed")
}
