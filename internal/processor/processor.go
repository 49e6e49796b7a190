// Package processor defines the capability every node kind implements and
// the context a node sees while it runs.
//
// A processor has two entry points. Setup is the dry variant: it computes the
// labeled output groups from the labeled input groups and must not leave any
// trace outside the process. Run computes the same shape but may commit side
// effects such as writing bundles or invoking the packager. Processors with no
// side effects implement Run by calling Setup.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/packager"
)

// Mode selects which entry point a pass calls.
type Mode string

const (
	ModeSetup Mode = "setup"
	ModeRun   Mode = "run"
)

// Inputs are the groups arriving at a node, keyed by input port label.
type Inputs map[string]asset.Group

// Get returns the group for label, never nil.
func (in Inputs) Get(label string) asset.Group {
	if g, ok := in[label]; ok && g != nil {
		return g
	}
	return asset.Group{}
}

// All concatenates every input group, ordered by label.
func (in Inputs) All() asset.Group {
	groups := make([]asset.Group, 0, len(in))
	for _, label := range slices.Sorted(maps.Keys(in)) {
		groups = append(groups, in[label])
	}
	return asset.Concat(groups...)
}

// Outputs are the groups a node produces, keyed by output port label.
type Outputs map[string]asset.Group

// Catalog is the read-only view of the project assets a node may consult.
type Catalog interface {
	Root() string
	Resolve(path string) string
	Under(root string) asset.Group
	Get(path string) (asset.Record, bool)
}

// Context carries everything a processor may use besides its inputs.
type Context struct {
	NodeID   string
	NodeName string
	Kind     string
	Target   string
	Mode     Mode

	Assets    Catalog
	OutputDir string
	CacheDir  string
	Packager  packager.Packager
	Logger    *slog.Logger

	// Progress receives sub-progress reports; fraction is in [0, 1].
	Progress func(message string, fraction float64)
}

// Report forwards a progress message when a listener is attached.
func (c *Context) Report(message string, fraction float64) {
	if c.Progress != nil {
		c.Progress(message, fraction)
	}
}

// IsActualRun reports whether side effects are allowed.
func (c *Context) IsActualRun() bool {
	return c.Mode == ModeRun
}

// Processor is implemented by every node kind.
type Processor interface {
	Setup(ctx context.Context, pc *Context, in Inputs) (Outputs, error)
	Run(ctx context.Context, pc *Context, in Inputs) (Outputs, error)
}

// Source is implemented by processors that read directly from the asset
// catalog. Watches returns the project paths they read for target, so that
// changes below them invalidate cached results.
type Source interface {
	Watches(target string) []string
}

var (
	// ErrInvalidConfig marks configuration problems.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrMissingInput marks inputs lacking what a processor needs.
	ErrMissingInput = errors.New("missing required input")
	// ErrPanic marks a processor that panicked.
	ErrPanic = errors.New("processor panicked")
)

// NodeError is an error raised by one node.
type NodeError struct {
	NodeID string
	Node   string
	Err    error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// Invoke calls Setup or Run depending on pc.Mode and converts a panic into
// an error wrapping ErrPanic.
func Invoke(ctx context.Context, p Processor, pc *Context, in Inputs) (out Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pc.Logger != nil {
				pc.Logger.Debug("Processor panic stack.", "stack", string(debug.Stack()))
			}
			out = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	if pc.Mode == ModeRun {
		return p.Run(ctx, pc, in)
	}
	return p.Setup(ctx, pc, in)
}
