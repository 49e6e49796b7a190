// Package controller is the graph execution engine. A Controller is created
// per open document and holds only derived state: the stream manager, the
// incremental cache and the issues of the most recent pass.
//
// Every pass snapshots the document, checks its structure, orders the nodes
// topologically and visits them. A node's processor receives the groups
// arriving on its input ports, concatenated per label in edge registration
// order, and its outputs are routed onto the edges leaving each output port.
// Node failures are collected as issues and turn the node's outputs empty;
// structural problems stop the pass before any processor runs.
//
// The controller never checks that a clean dry pass preceded a committed
// one. Callers that want that guarantee use Build.
package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/cachestore"
	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/packager"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
	"github.com/specialistvlad/assetgraph/internal/stream"
)

// ProgressFunc is told when a node begins (fraction 0), whenever its
// processor reports sub-progress, and when it ends (fraction 1). Calls are
// serialized. To abort a pass, cancel the context given to it.
type ProgressFunc func(node *graph.Node, message string, fraction float64)

// Options configures a Controller.
type Options struct {
	// Registry resolves node kinds. Required.
	Registry *registry.Registry
	// Assets is the project catalog source nodes read from. Defaults to an
	// empty database rooted at the working directory.
	Assets *asset.Database
	// Cache holds incremental state. Defaults to an in-memory store.
	Cache cachestore.Store
	// Packager is handed build artifacts in committed passes. Defaults to
	// packager.Noop.
	Packager packager.Packager
	// OutputDir receives committed build output.
	OutputDir string
	// CacheDir receives intermediate files such as prefabs.
	CacheDir string
	// Workers is the number of nodes that may run at once. Values below 2
	// select the sequential walk.
	Workers int
}

// Controller validates and performs passes over one graph document.
type Controller struct {
	// passMu makes passes and document swaps mutually exclusive.
	passMu     sync.Mutex
	doc        *graph.Graph
	lastTarget string

	registry *registry.Registry
	assets   *asset.Database
	cache    cachestore.Store
	packager packager.Packager
	opts     Options

	streams *stream.Manager
	tel     telemetry

	issuesMu sync.RWMutex
	issues   IssueList
}

// New creates a Controller for doc.
func New(doc *graph.Graph, opts Options) (*Controller, error) {
	if doc == nil {
		return nil, errors.New("controller requires a graph")
	}
	if opts.Registry == nil {
		return nil, errors.New("controller requires a processor registry")
	}
	if opts.Assets == nil {
		opts.Assets = asset.NewDatabase(".")
	}
	if opts.Cache == nil {
		opts.Cache = cachestore.NewMemory()
	}
	if opts.Packager == nil {
		opts.Packager = packager.Noop{}
	}
	return &Controller{
		doc:      doc,
		registry: opts.Registry,
		assets:   opts.Assets,
		cache:    opts.Cache,
		packager: opts.Packager,
		opts:     opts,
		streams:  stream.NewManager(),
	}, nil
}

// Validate runs a dry pass over nodeID and everything it transitively
// depends on. Ancestors may be served from the cache; nodeID itself is
// always re-evaluated. Structure is checked across the whole graph. The
// stream manager is left untouched.
func (c *Controller) Validate(ctx context.Context, nodeID, target string) IssueList {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	doc := c.doc.Snapshot()
	if _, ok := doc.Node(nodeID); !ok {
		issues := IssueList{structuralIssue(fmt.Errorf("node %s: %w", nodeID, graph.ErrNotFound))}
		c.setIssues(issues)
		return issues
	}

	p := c.newPass(doc, target, processor.ModeSetup, false, nil)
	p.pinned = nodeID
	return c.run(ctx, p, nodeID)
}

// Perform runs every node. With isActualRun false processors run their dry
// Setup; with isActualRun true they Run and may commit side effects. With
// forceVisitAll false, nodes whose cache key matches their last successful
// visit, and none of whose producers ran in this pass, are skipped and their
// cached outputs replayed. A change of platform target revisits every node.
func (c *Controller) Perform(ctx context.Context, target string, isActualRun, forceVisitAll bool, progress ProgressFunc) IssueList {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	if c.lastTarget != "" && c.lastTarget != target && !forceVisitAll {
		ctxlog.FromContext(ctx).Info("Platform target changed, revisiting every node.", "from", c.lastTarget, "to", target)
		forceVisitAll = true
	}
	c.lastTarget = target

	mode := processor.ModeSetup
	if isActualRun {
		mode = processor.ModeRun
	}
	p := c.newPass(c.doc.Snapshot(), target, mode, forceVisitAll, progress)
	p.record = true
	return c.run(ctx, p, "")
}

// Build performs a dry pass and, only when it reports no issues, a
// committed pass. It returns the issues of the last pass that ran.
func (c *Controller) Build(ctx context.Context, target string, progress ProgressFunc) IssueList {
	if issues := c.Perform(ctx, target, false, true, progress); !issues.Empty() {
		return issues
	}
	return c.Perform(ctx, target, true, true, progress)
}

// OnAssetsChanged applies change notifications to the asset database and
// drops the cache entries of every node whose cached inputs, outputs or
// watched paths reference a changed path. It returns the number of nodes
// invalidated.
func (c *Controller) OnAssetsChanged(ctx context.Context, imported, deleted, moved, movedFrom []string) (int, error) {
	logger := ctxlog.FromContext(ctx)
	if err := c.assets.ApplyChanges(ctx, imported, deleted, moved, movedFrom); err != nil {
		return 0, fmt.Errorf("failed to apply asset changes: %w", err)
	}

	var changed []string
	for _, set := range [][]string{imported, deleted, moved, movedFrom} {
		for _, path := range set {
			changed = append(changed, c.assets.Resolve(path))
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}

	stale := map[string]bool{}
	err := c.cache.Range(ctx, func(e *cachestore.Entry) bool {
		if slices.ContainsFunc(changed, e.References) {
			stale[e.NodeID] = true
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache: %w", err)
	}

	for id := range stale {
		if err := c.cache.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("failed to invalidate node %s: %w", id, err)
		}
	}
	logger.Debug("Asset changes applied.", "paths", len(changed), "invalidated", len(stale))
	return len(stale), nil
}

// Issues returns the issues of the most recent pass.
func (c *Controller) Issues() IssueList {
	c.issuesMu.RLock()
	defer c.issuesMu.RUnlock()
	return slices.Clone(c.issues)
}

// IsAnyIssueFound reports whether the most recent pass raised any issue.
// Callers treat true as "build forbidden".
func (c *Controller) IsAnyIssueFound() bool {
	c.issuesMu.RLock()
	defer c.issuesMu.RUnlock()
	return len(c.issues) > 0
}

// StreamManager exposes the per-edge groups of the last Perform.
func (c *Controller) StreamManager() *stream.Manager {
	return c.streams
}

// Graph returns the live document.
func (c *Controller) Graph() *graph.Graph {
	c.passMu.Lock()
	defer c.passMu.Unlock()
	return c.doc
}

// SetGraph swaps the document, for example after it was reloaded. Streams
// and issues belong to the previous document and are dropped; cache entries
// are kept since their keys cover each node's configuration.
func (c *Controller) SetGraph(doc *graph.Graph) {
	c.passMu.Lock()
	defer c.passMu.Unlock()
	c.doc = doc
	c.streams.Clear()
	c.setIssues(nil)
}

// DeleteCache drops all incremental state so that the next pass visits
// every node.
func (c *Controller) DeleteCache(ctx context.Context) error {
	c.passMu.Lock()
	defer c.passMu.Unlock()
	if err := c.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	ctxlog.FromContext(ctx).Info("🧹 Cache cleared.")
	return nil
}

// pruneCache drops the entries of nodes that are no longer part of doc.
func (c *Controller) pruneCache(ctx context.Context, doc *graph.Graph) {
	logger := ctxlog.FromContext(ctx)
	orphans := map[string]bool{}
	err := c.cache.Range(ctx, func(e *cachestore.Entry) bool {
		if _, ok := doc.Node(e.NodeID); !ok {
			orphans[e.NodeID] = true
		}
		return true
	})
	if err != nil {
		logger.Warn("Failed to scan cache for removed nodes.", "error", err)
		return
	}
	for id := range orphans {
		if err := c.cache.Delete(ctx, id); err != nil {
			logger.Warn("Failed to drop cache entry of removed node.", "node", id, "error", err)
		}
	}
	if len(orphans) > 0 {
		logger.Debug("Pruned cache entries of removed nodes.", "count", len(orphans))
	}
}

func (c *Controller) setIssues(issues IssueList) {
	c.issuesMu.Lock()
	defer c.issuesMu.Unlock()
	c.issues = issues
}
