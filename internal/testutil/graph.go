package testutil

import (
	"strings"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/registry"
	"github.com/stretchr/testify/require"
)

// GraphBuilder assembles a graph by node name.
type GraphBuilder struct {
	t   testing.TB
	Reg *registry.Registry
	G   *graph.Graph
}

// NewGraphBuilder returns a builder over an empty graph checked by reg.
func NewGraphBuilder(t testing.TB, reg *registry.Registry) *GraphBuilder {
	return &GraphBuilder{t: t, Reg: reg, G: graph.New(graph.WithChecker(reg))}
}

// Node adds a node of kind with cfg; a nil cfg is the zero configuration.
func (b *GraphBuilder) Node(name, kind string, cfg any) *graph.Node {
	b.t.Helper()
	n, err := b.Reg.NewNode(name, kind, cfg)
	require.NoError(b.t, err)
	require.NoError(b.t, b.G.AddNode(n))
	return n
}

// ID returns the id of the node called name.
func (b *GraphBuilder) ID(name string) string {
	b.t.Helper()
	n, ok := b.G.NodeByName(name)
	require.True(b.t, ok, "node %q not found", name)
	return n.ID
}

// Connect wires "from[.label]" to "to[.label]". A missing label selects the
// node's only port in that direction.
func (b *GraphBuilder) Connect(from, to string) *graph.Edge {
	b.t.Helper()
	e, err := b.TryConnect(from, to)
	require.NoError(b.t, err)
	return e
}

// TryConnect is Connect returning the error instead of failing the test.
func (b *GraphBuilder) TryConnect(from, to string) (*graph.Edge, error) {
	b.t.Helper()
	fromName, fromLabel, _ := strings.Cut(from, ".")
	toName, toLabel, _ := strings.Cut(to, ".")
	return b.G.ConnectLabels(b.ID(fromName), fromLabel, b.ID(toName), toLabel)
}
