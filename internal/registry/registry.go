package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
)

// ErrUnknownKind is returned for kinds nobody registered.
var ErrUnknownKind = errors.New("unknown processor kind")

// Module is the interface that all processor modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Definition is everything the engine needs to know about one processor kind.
type Definition struct {
	Kind        string
	Description string

	// NewConfig returns a pointer to a zero configuration struct, ready to
	// be decoded into.
	NewConfig func() any
	// New builds a processor from a decoded and validated configuration.
	New func(cfg any) (processor.Processor, error)
	// Ports declares the ports a node of this kind exposes for cfg.
	Ports func(cfg any) []graph.PortSpec

	// Accepts lists the only kinds allowed to feed this kind. Empty means any.
	Accepts []string
	// Rejects lists kinds that may never feed this kind.
	Rejects []string
}

// Registry holds all the registered processor definitions for a single
// application instance.
type Registry struct {
	definitions map[string]*Definition
	validate    *validator.Validate
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Load creates a registry and registers every module with it.
func Load(modules ...Module) *Registry {
	r := New()
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Register adds a definition. Registering the same kind twice is a
// programming error and panics.
func (r *Registry) Register(def *Definition) {
	if def == nil || def.Kind == "" {
		panic("processor definition must have a kind")
	}
	if _, exists := r.definitions[def.Kind]; exists {
		panic(fmt.Sprintf("processor kind '%s' already registered", def.Kind))
	}
	slog.Debug("Registering processor kind.", "kind", def.Kind)
	r.definitions[def.Kind] = def
}

// Lookup returns the definition for kind.
func (r *Registry) Lookup(kind string) (*Definition, bool) {
	def, ok := r.definitions[kind]
	return def, ok
}

// Kinds returns every registered kind, sorted.
func (r *Registry) Kinds() []string {
	return slices.Sorted(maps.Keys(r.definitions))
}

func (r *Registry) definition(kind string) (*Definition, error) {
	def, ok := r.definitions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return def, nil
}
