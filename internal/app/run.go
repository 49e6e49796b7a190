package app

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/assetgraph/internal/controller"
	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/graph"
)

// Pass modes used as the "mode" metric label.
const (
	modeValidate = "validate"
	modeSetup    = "setup"
	modeBuild    = "build"
)

func (a *App) progress() controller.ProgressFunc {
	return newProgressPrinter(a.outW, len(a.Graph().Nodes())).progress()
}

// Validate runs a dry pass. With a node name only that node and what it
// depends on are evaluated.
func (a *App) Validate(ctx context.Context, nodeName string) (controller.IssueList, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if nodeName == "" {
		return a.Setup(ctx), nil
	}
	n, ok := a.Graph().NodeByName(nodeName)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", nodeName, graph.ErrNotFound)
	}

	started := time.Now()
	a.logger.Info("🔎 Validating node.", "node", nodeName, "target", a.config.Target)
	issues := a.controller.Validate(ctx, n.ID, a.config.Target)
	a.metrics.observe(modeValidate, started, issues)
	return issues, nil
}

// Setup performs a dry pass over the whole graph.
func (a *App) Setup(ctx context.Context) controller.IssueList {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	started := time.Now()
	a.logger.Info("🚀 Starting dry pass.", "target", a.config.Target, "force", a.config.Force)
	issues := a.controller.Perform(ctx, a.config.Target, false, a.config.Force, a.progress())
	a.metrics.observe(modeSetup, started, issues)
	a.logger.Info("🏁 Dry pass finished.", "issues", len(issues), "duration", time.Since(started))
	return issues
}

// Build performs a dry pass and, when it is clean, a committed pass that
// writes output and runs the packager.
func (a *App) Build(ctx context.Context) controller.IssueList {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	started := time.Now()
	a.logger.Info("🚀 Starting build.", "target", a.config.Target, "output", a.config.OutputDir)
	issues := a.controller.Build(ctx, a.config.Target, a.progress())
	a.metrics.observe(modeBuild, started, issues)
	if issues.Empty() {
		a.logger.Info("🏁 Build finished.", "duration", time.Since(started))
	} else {
		a.logger.Warn("Build stopped by issues.", "issues", len(issues))
	}
	return issues
}

// DeleteCache drops all incremental state.
func (a *App) DeleteCache(ctx context.Context) error {
	return a.controller.DeleteCache(ctxlog.WithLogger(ctx, a.logger))
}

// PrintIssues writes one line per issue to the app output.
func (a *App) PrintIssues(issues controller.IssueList) {
	for _, issue := range issues {
		fmt.Fprintf(a.outW, "⚠️  %s\n", issue)
	}
}
