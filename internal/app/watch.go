package app

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/document"
	"github.com/specialistvlad/assetgraph/internal/watcher"
)

// Watch performs a dry pass and then keeps its results current: asset
// changes invalidate the affected nodes and trigger a new pass, edits to
// the graph document reload it. A document renamed within its folder is
// followed. Watch returns when ctx is cancelled or the document is deleted
// or moved out of its folder.
func (a *App) Watch(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.healthCheckServer()
	defer func() { _ = a.closeHealthCheckServer() }()

	a.PrintIssues(a.Setup(ctx))

	// Handlers block on ctx, so it is cancelled before the watchers stop.
	ctx, cancel := context.WithCancel(ctx)
	var watchers []*watcher.Watcher
	defer func() {
		cancel()
		for _, w := range watchers {
			w.Stop()
		}
	}()

	docPath, err := filepath.Abs(a.config.GraphPath)
	if err != nil {
		return err
	}
	var exclude []string
	for _, dir := range []string{a.config.OutputDir, a.config.CacheDir} {
		if abs, err := filepath.Abs(dir); err == nil {
			exclude = append(exclude, abs)
		}
	}

	assetChanges := make(chan watcher.ChangeSet, 16)
	docChanges := make(chan watcher.ChangeSet, 16)
	forward := func(ch chan<- watcher.ChangeSet) watcher.Handler {
		return func(ctx context.Context, cs watcher.ChangeSet) {
			select {
			case ch <- cs:
			case <-ctx.Done():
			}
		}
	}

	assetWatcher, err := watcher.New(a.assets.Root(), forward(assetChanges),
		&watcher.Options{Debounce: a.config.Debounce, Exclude: append(exclude, docPath)})
	if err != nil {
		return err
	}
	watchers = append(watchers, assetWatcher)
	if err := assetWatcher.Start(ctx); err != nil {
		return err
	}

	docWatcher, err := watcher.New(filepath.Dir(docPath), forward(docChanges),
		&watcher.Options{Debounce: a.config.Debounce, Only: []string{docPath}})
	if err != nil {
		return err
	}
	watchers = append(watchers, docWatcher)
	if err := docWatcher.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("👀 Watching for changes.", "assets", a.assets.Root(), "document", docPath)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Watch stopped.")
			return nil
		case cs := <-assetChanges:
			a.onAssetChanges(ctx, cs)
		case cs := <-docChanges:
			if i := slices.Index(cs.MovedFrom, docPath); i >= 0 {
				a.logger.Info("Graph document moved, following it.", "from", docPath, "to", cs.Moved[i])
				docPath = cs.Moved[i]
				a.config.GraphPath = docPath
			} else if slices.Contains(cs.Deleted, docPath) {
				a.logger.Warn("Graph document removed, stopping watch.", "document", docPath)
				return nil
			}
			a.reloadDocument(ctx)
		}
	}
}

func (a *App) onAssetChanges(ctx context.Context, cs watcher.ChangeSet) {
	a.metrics.assetChanges.Add(float64(cs.Len()))
	invalidated, err := a.controller.OnAssetsChanged(ctx, cs.Imported, cs.Deleted, cs.Moved, cs.MovedFrom)
	if err != nil {
		a.logger.Error("Failed to apply asset changes.", "error", err)
	}
	a.logger.Info("Assets changed.", "paths", cs.Len(), "invalidated", invalidated)
	a.PrintIssues(a.Setup(ctx))
}

func (a *App) reloadDocument(ctx context.Context) {
	doc, err := document.Load(ctx, a.config.GraphPath, a.registry, document.WithVariables(a.config.Variables))
	if err != nil {
		a.logger.Error("Graph document reload failed, keeping the previous version.", "error", err)
		return
	}
	a.metrics.reloads.Inc()
	a.controller.SetGraph(doc)
	a.logger.Info("Graph document reloaded.", "nodes", len(doc.Nodes()))
	a.PrintIssues(a.Setup(ctx))
}
