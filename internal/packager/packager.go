// Package packager is the boundary to the platform packaging step: the opaque
// "produce a build artifact for target X" action that runs at the very end
// of a build. Callers only learn whether it succeeded.
package packager

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/specialistvlad/assetgraph/internal/ctxlog"
)

// Artifact is what gets handed to the packaging step.
type Artifact struct {
	Platform string
	Node     string
	Files    []string
}

// Packager produces a platform artifact from built files.
type Packager interface {
	Package(ctx context.Context, a Artifact) error
}

// Noop logs the artifact and reports success.
type Noop struct{}

// Package implements Packager.
func (Noop) Package(ctx context.Context, a Artifact) error {
	ctxlog.FromContext(ctx).Info("📦 Packaging skipped, no packager configured.",
		"platform", a.Platform, "node", a.Node, "files", len(a.Files))
	return nil
}

// Exec runs an external command once per artifact. The artifact files are
// appended to Args and the target platform is exported as
// ASSETGRAPH_PLATFORM.
type Exec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// Package implements Packager.
func (e Exec) Package(ctx context.Context, a Artifact) error {
	if e.Command == "" {
		return fmt.Errorf("packager command is empty")
	}
	logger := ctxlog.FromContext(ctx)

	args := append(append([]string{}, e.Args...), a.Files...)
	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Dir = e.Dir
	cmd.Env = append(append(os.Environ(), e.Env...), "ASSETGRAPH_PLATFORM="+a.Platform, "ASSETGRAPH_NODE="+a.Node)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.Info("📦 Running packager.", "command", e.Command, "platform", a.Platform, "files", len(a.Files))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("packager %s failed: %w: %s", e.Command, err, tail(out.String(), 512))
	}
	logger.Debug("Packager finished.", "output", tail(out.String(), 2048))
	return nil
}

// ParseCommand splits a command line on whitespace into an Exec.
func ParseCommand(line string) (Exec, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Exec{}, false
	}
	return Exec{Command: fields[0], Args: fields[1:]}, true
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
