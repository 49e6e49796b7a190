package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/cachestore"
	"github.com/specialistvlad/assetgraph/internal/controller"
	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/document"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/packager"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	assets     *asset.Database
	cache      cachestore.Store
	controller *controller.Controller

	promReg    *prometheus.Registry
	metrics    *metrics
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It loads the graph
// document, scans the asset root and opens the cache. A registry that fails
// validation is a programming error and panics.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.Load(modules...)
	if err := reg.ValidateRegistry(ctx); err != nil {
		panic(err)
	}
	logger.Debug("All modules registered.", "count", len(modules))

	assets := asset.NewDatabase(cfg.AssetsPath)
	if err := assets.Scan(ctx); err != nil {
		return nil, err
	}

	doc, err := document.Load(ctx, cfg.GraphPath, reg, document.WithVariables(cfg.Variables))
	if err != nil {
		return nil, fmt.Errorf("failed to load graph document: %w", err)
	}

	cache, err := openCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	var pack packager.Packager = packager.Noop{}
	if exec, ok := packager.ParseCommand(cfg.PackagerCmd); ok {
		pack = exec
	}

	ctrl, err := controller.New(doc, controller.Options{
		Registry:  reg,
		Assets:    assets,
		Cache:     cache,
		Packager:  pack,
		OutputDir: cfg.OutputDir,
		CacheDir:  cfg.CacheDir,
		Workers:   cfg.Workers,
	})
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	return &App{
		ctx:        ctx,
		outW:       outW,
		logger:     logger,
		config:     cfg,
		registry:   reg,
		assets:     assets,
		cache:      cache,
		controller: ctrl,
		promReg:    promReg,
		metrics:    newMetrics(promReg),
	}, nil
}

func openCache(cfg *Config, logger *slog.Logger) (cachestore.Store, error) {
	if cfg.InMemoryCache {
		logger.Debug("Using in-memory cache.")
		return cachestore.NewMemory(), nil
	}
	bc := cachestore.DefaultBadgerConfig(filepath.Join(cfg.CacheDir, "state"))
	bc.Logger = logger.With("component", "badger")
	store, err := cachestore.OpenBadger(bc)
	if err != nil {
		return nil, err
	}
	logger.Debug("Persistent cache opened.", "path", bc.Path)
	return store, nil
}

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Controller returns the controller driving the loaded document.
func (a *App) Controller() *controller.Controller {
	return a.controller
}

// Graph returns the loaded document.
func (a *App) Graph() *graph.Graph {
	return a.controller.Graph()
}

// Close releases the cache and stops the health check server.
func (a *App) Close() error {
	return errors.Join(a.closeHealthCheckServer(), a.cache.Close())
}
