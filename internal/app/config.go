package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GraphPath  string // .hcl or .yaml graph document
	AssetsPath string // project asset root
	Target     string // build platform
	OutputDir  string
	CacheDir   string // incremental state and intermediate files
	// InMemoryCache keeps incremental state for the process lifetime only.
	InMemoryCache bool
	Variables     map[string]string

	Workers     int
	Force       bool
	PackagerCmd string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	Debounce        time.Duration
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GraphPath == "" {
		return nil, errors.New("GraphPath is a required configuration field and cannot be empty")
	}
	if cfg.AssetsPath == "" {
		cfg.AssetsPath = "."
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "build"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".assetgraph"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 200 * time.Millisecond
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	return &cfg, nil
}
