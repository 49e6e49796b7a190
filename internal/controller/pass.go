package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/cachestore"
	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/dag"
	"github.com/specialistvlad/assetgraph/internal/executor"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// pass is the state of one traversal. Everything in it is local to the pass
// except the controller it reports to.
type pass struct {
	c        *Controller
	doc      *graph.Graph
	target   string
	mode     processor.Mode
	force    bool
	progress ProgressFunc

	// pinned is a node that is evaluated even when its cache entry matches.
	pinned string
	// record publishes edge groups to the stream manager.
	record bool

	progressMu sync.Mutex

	mu       sync.Mutex
	edges    map[string]asset.Group
	executed map[string]bool
	issues   map[string]Issue
}

func (c *Controller) newPass(doc *graph.Graph, target string, mode processor.Mode, force bool, progress ProgressFunc) *pass {
	return &pass{
		c:        c,
		doc:      doc,
		target:   target,
		mode:     mode,
		force:    force,
		progress: progress,
		edges:    map[string]asset.Group{},
		executed: map[string]bool{},
		issues:   map[string]Issue{},
	}
}

// run executes p and stores its issues on the controller. A non-empty focus
// restricts the walk to that node and its ancestors.
func (c *Controller) run(ctx context.Context, p *pass, focus string) IssueList {
	logger := ctxlog.FromContext(ctx)
	c.tel.init(logger)
	started := time.Now()

	ctx, span := tracer.Start(ctx, "controller."+string(p.mode), trace.WithAttributes(
		attribute.String("target", p.target),
		attribute.Bool("force", p.force),
		attribute.String("focus", focus),
	))
	defer span.End()

	issues := c.execute(ctx, p, focus)

	c.tel.finish(ctx, string(p.mode), started, issues)
	if issues.Empty() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("%d issue(s)", len(issues)))
	}
	logger.Debug("Pass finished.", "mode", p.mode, "issues", len(issues), "duration", time.Since(started))
	c.setIssues(issues)
	return issues
}

func (c *Controller) execute(ctx context.Context, p *pass, focus string) IssueList {
	logger := ctxlog.FromContext(ctx)

	if err := c.checkStructure(p.doc); err != nil {
		logger.Error("Graph is structurally invalid.", "error", err)
		return IssueList{structuralIssue(err)}
	}

	plan, err := buildPlan(p.doc, nil)
	if err == nil {
		err = plan.DetectCycles()
	}
	if err != nil {
		logger.Error("Graph cannot be ordered.", "error", err)
		return IssueList{structuralIssue(err)}
	}
	if focus != "" {
		scope := map[string]bool{focus: true}
		for _, id := range plan.Ancestors(focus) {
			scope[id] = true
		}
		if plan, err = buildPlan(p.doc, scope); err != nil {
			return IssueList{structuralIssue(err)}
		}
	}

	ex, err := executor.New(plan, c.opts.Workers)
	if err != nil {
		return IssueList{structuralIssue(err)}
	}

	if p.record {
		live := make(map[string]bool)
		for _, e := range p.doc.Edges() {
			live[e.ID] = true
		}
		if n := c.streams.Prune(live); n > 0 {
			logger.Debug("Pruned streams of removed edges.", "count", n)
		}
	}

	logger.Debug("Starting pass.", "mode", p.mode, "nodes", len(ex.Order()), "workers", ex.Workers(), "force", p.force)
	runErr := ex.Run(ctx, p.visit)

	var issues IssueList
	for _, id := range ex.Order() {
		if issue, ok := p.issues[id]; ok {
			issues = append(issues, issue)
		}
	}
	if runErr != nil {
		logger.Warn("Pass aborted.", "error", runErr)
		return append(issues, abortedIssue(runErr))
	}

	if p.record {
		c.streams.Replace(p.edges)
		c.pruneCache(ctx, p.doc)
	}
	return issues
}

// checkStructure reports dangling edges and connections between kinds that
// may not be connected. Unknown kinds are left to the node visit.
func (c *Controller) checkStructure(doc *graph.Graph) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}

	var errs []error
	for _, e := range doc.Edges() {
		from, _ := doc.Node(e.From.Node)
		to, _ := doc.Node(e.To.Node)
		if err := c.registry.CanConnect(from, to); errors.Is(err, graph.ErrIncompatible) {
			errs = append(errs, fmt.Errorf("edge %s from %q to %q: %w", e.ID, from.Name, to.Name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("disallowed connections: %w", errors.Join(errs...))
	}
	return nil
}

// buildPlan derives the node dependency graph from the edges. A nil scope
// keeps every node.
func buildPlan(doc *graph.Graph, scope map[string]bool) (*dag.Graph, error) {
	keep := func(id string) bool { return scope == nil || scope[id] }

	plan := dag.New()
	for _, n := range doc.Nodes() {
		if keep(n.ID) {
			plan.AddNode(n.ID)
		}
	}
	for _, e := range doc.Edges() {
		if !keep(e.From.Node) || !keep(e.To.Node) {
			continue
		}
		if err := plan.AddEdge(e.From.Node, e.To.Node); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// visit evaluates one node. It only returns an error when the pass must
// stop, which happens on cancellation.
func (p *pass) visit(ctx context.Context, id string) error {
	node, _ := p.doc.Node(id)
	ctx, logger := ctxlog.With(ctx, "node", node.Name, "kind", node.Kind)
	ctx, span := tracer.Start(ctx, "node "+node.Name, trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.kind", node.Kind),
	))
	defer span.End()

	p.report(node, "Started", 0)
	out, result, err := p.evaluate(ctx, node, logger)
	if err != nil && ctx.Err() != nil {
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, "cancelled")
		return ctx.Err()
	}

	message := "Done"
	switch {
	case err != nil:
		logger.Error("Node failed.", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.fail(node, err)
		out = nil
		message = "Failed"
	case result == resultSkipped:
		message = "Up to date"
	}

	p.publish(node, out, result != resultSkipped)
	p.c.tel.visit(ctx, node.Kind, result)
	span.SetAttributes(attribute.String("node.result", result))
	p.report(node, message, 1)
	return nil
}

// evaluate produces the outputs of node, from the cache when allowed.
func (p *pass) evaluate(ctx context.Context, node *graph.Node, logger *slog.Logger) (processor.Outputs, string, error) {
	in := p.inputs(node)

	proc, err := p.c.registry.Build(node.Kind, node.Config)
	if err != nil {
		return nil, resultFailed, err
	}

	watched := p.watched(proc)
	key, err := cacheKey(node, p.target, p.mode, in, p.watchedGroups(watched))
	if err != nil {
		logger.Warn("Cache key unavailable, the node will always run.", "error", err)
	}

	if key != "" && p.reusable(node) {
		entry, ok, err := p.c.cache.Get(ctx, node.ID, string(p.mode))
		switch {
		case err != nil:
			logger.Warn("Cache lookup failed.", "error", err)
		case ok && entry.Key == key:
			logger.Debug("Node is up to date, replaying cached outputs.")
			return cloneOutputs(entry.Output), resultSkipped, nil
		}
	}

	pc := &processor.Context{
		NodeID:    node.ID,
		NodeName:  node.Name,
		Kind:      node.Kind,
		Target:    p.target,
		Mode:      p.mode,
		Assets:    p.c.assets,
		OutputDir: p.c.opts.OutputDir,
		CacheDir:  p.c.opts.CacheDir,
		Packager:  p.c.packager,
		Logger:    logger,
		Progress: func(message string, fraction float64) {
			p.report(node, message, fraction)
		},
	}
	if err := ctx.Err(); err != nil {
		return nil, resultFailed, err
	}
	logger.Debug("Invoking processor.", "mode", p.mode, "inputs", len(in))
	out, err := processor.Invoke(ctx, proc, pc, in)
	if err != nil {
		return nil, resultFailed, err
	}
	out = declared(node, out, logger)

	if key != "" {
		entry := &cachestore.Entry{
			NodeID:    node.ID,
			Mode:      string(p.mode),
			Key:       key,
			Output:    cloneOutputs(out),
			Inputs:    in.All().Paths(),
			Watched:   watched,
			UpdatedAt: time.Now(),
		}
		if err := p.c.cache.Put(ctx, entry); err != nil {
			logger.Warn("Failed to store cache entry.", "error", err)
		}
	}
	return out, resultExecuted, nil
}

// inputs gathers, per input port label, the groups on every inbound edge in
// registration order. Unconnected ports receive an empty group.
func (p *pass) inputs(node *graph.Node) processor.Inputs {
	in := processor.Inputs{}
	for _, port := range node.Inputs() {
		in[port.Label] = asset.Group{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.doc.EdgesInto(node.ID) {
		port, _ := node.Port(e.To.Port)
		in[port.Label] = asset.Concat(in[port.Label], p.edges[e.ID])
	}
	return in
}

// publish routes outputs onto outgoing edges. Ports without an edge keep
// their group only for the lifetime of the visit.
func (p *pass) publish(node *graph.Node, out processor.Outputs, executed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if executed {
		p.executed[node.ID] = true
	}
	for _, e := range p.doc.EdgesFrom(node.ID) {
		port, _ := node.Port(e.From.Port)
		group := out[port.Label].Clone()
		p.edges[e.ID] = group
		if p.record {
			p.c.streams.Record(e.ID, group)
		}
	}
}

func (p *pass) fail(node *graph.Node, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issues[node.ID] = Issue{
		Kind:     NodeIssue,
		NodeID:   node.ID,
		NodeName: node.Name,
		Reason:   err.Error(),
		Err:      &processor.NodeError{NodeID: node.ID, Node: node.Name, Err: err},
	}
}

// reusable reports whether node may be served from the cache: visits are
// not forced, it is not pinned, and none of its producers ran in this pass.
func (p *pass) reusable(node *graph.Node) bool {
	if p.force || node.ID == p.pinned {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.doc.EdgesInto(node.ID) {
		if p.executed[e.From.Node] {
			return false
		}
	}
	return true
}

func (p *pass) report(node *graph.Node, message string, fraction float64) {
	if p.progress == nil {
		return
	}
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.progress(node, message, fraction)
}

// watched returns the absolute project paths a source processor reads.
func (p *pass) watched(proc processor.Processor) []string {
	src, ok := proc.(processor.Source)
	if !ok {
		return nil
	}
	var paths []string
	for _, path := range src.Watches(p.target) {
		paths = append(paths, p.c.assets.Resolve(path))
	}
	return paths
}

func (p *pass) watchedGroups(paths []string) []asset.Group {
	groups := make([]asset.Group, len(paths))
	for i, path := range paths {
		groups[i] = p.c.assets.Under(path)
	}
	return groups
}

// declared keeps the groups of labels the node has output ports for.
func declared(node *graph.Node, out processor.Outputs, logger *slog.Logger) processor.Outputs {
	kept := processor.Outputs{}
	for _, port := range node.Outputs() {
		kept[port.Label] = out[port.Label].Clone()
	}
	for _, label := range slices.Sorted(maps.Keys(out)) {
		if _, ok := kept[label]; !ok {
			logger.Warn("Discarding output for an undeclared port.", "label", label, "records", len(out[label]))
		}
	}
	return kept
}

func cloneOutputs(out map[string]asset.Group) processor.Outputs {
	cp := make(processor.Outputs, len(out))
	for label, g := range out {
		cp[label] = g.Clone()
	}
	return cp
}
