// Package document loads a graph document from disk. Two formats are
// understood, told apart by file extension: HCL (.hcl) and YAML (.yaml,
// .yml). Both describe the same thing: a list of nodes, each a named
// instance of a processor kind with its configuration, and a list of edges
// between them.
//
// Edge endpoints are written "node" or "node.label". The label may be
// omitted when the node has a single port in that direction.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// ErrUnsupportedFormat is returned for files that are neither HCL nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Option tunes loading.
type Option func(*options)

type options struct {
	variables map[string]string
}

// WithVariables overrides HCL variable values.
func WithVariables(vars map[string]string) Option {
	return func(o *options) {
		o.variables = vars
	}
}

// Load reads the document at path and builds a graph whose connections are
// checked by reg.
func Load(ctx context.Context, path string, reg *registry.Registry, opts ...Option) (*graph.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph document: %w", err)
	}
	return Parse(ctx, path, src, reg, opts...)
}

// Parse builds a graph from document source. filename selects the format
// and appears in error messages.
func Parse(ctx context.Context, filename string, src []byte, reg *registry.Registry, opts ...Option) (*graph.Graph, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := ctxlog.FromContext(ctx)

	var (
		doc *decl
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".hcl":
		doc, err = parseHCL(filename, src, reg, o)
	case ".yaml", ".yml":
		doc, err = parseYAML(filename, src, reg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	g, err := doc.assemble(reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	logger.Debug("Graph document loaded.", "file", filename, "nodes", len(g.Nodes()), "edges", len(g.Edges()))
	return g, nil
}

// decl is a parsed document before it becomes a graph.
type decl struct {
	nodes []nodeDecl
	edges []edgeDecl
}

type nodeDecl struct {
	ID       string
	Name     string
	Kind     string
	Position graph.Position
	Config   any
}

type edgeDecl struct {
	ID   string
	From string
	To   string
}

func (d *decl) assemble(reg *registry.Registry) (*graph.Graph, error) {
	g := graph.New(graph.WithChecker(reg))
	for _, nd := range d.nodes {
		if _, exists := g.NodeByName(nd.Name); exists {
			return nil, fmt.Errorf("node %q: %w", nd.Name, graph.ErrDuplicate)
		}
		n, err := reg.NewNode(nd.Name, nd.Kind, nd.Config)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nd.Name, err)
		}
		n.ID = nd.ID
		if n.ID == "" {
			n.ID = graph.StableNodeID(nd.Kind, nd.Name)
		}
		n.Position = nd.Position
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("node %q: %w", nd.Name, err)
		}
	}
	for i, ed := range d.edges {
		from, err := endpoint(g, ed.From, graph.Output)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i+1, err)
		}
		to, err := endpoint(g, ed.To, graph.Input)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i+1, err)
		}
		if _, err := g.ConnectWithID(ed.ID, from, to); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i+1, err)
		}
	}
	return g, nil
}

// endpoint resolves "node[.label]" to a port.
func endpoint(g *graph.Graph, ref string, dir graph.Direction) (graph.Endpoint, error) {
	name, label, _ := strings.Cut(ref, ".")
	n, ok := g.NodeByName(name)
	if !ok {
		return graph.Endpoint{}, fmt.Errorf("node %q: %w", name, graph.ErrNotFound)
	}
	if label == "" {
		ports := n.Outputs()
		if dir == graph.Input {
			ports = n.Inputs()
		}
		if len(ports) != 1 {
			return graph.Endpoint{}, fmt.Errorf("%q has %d %s ports, name one in %q", name, len(ports), dir, name+".<label>")
		}
		return graph.Endpoint{Node: n.ID, Port: ports[0].ID}, nil
	}
	p, ok := n.PortByLabel(dir, label)
	if !ok {
		return graph.Endpoint{}, fmt.Errorf("%s port %q on node %q: %w", dir, label, name, graph.ErrNotFound)
	}
	return graph.Endpoint{Node: n.ID, Port: p.ID}, nil
}
