package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/registry"
	"gopkg.in/yaml.v3"
)

type yamlRoot struct {
	Nodes []yamlNode `yaml:"nodes"`
	Edges []yamlEdge `yaml:"edges"`
}

type yamlNode struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Kind     string    `yaml:"kind"`
	Position []float64 `yaml:"position"`
	Config   yaml.Node `yaml:"config"`
}

type yamlEdge struct {
	ID   string `yaml:"id"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

func parseYAML(filename string, src []byte, reg *registry.Registry) (*decl, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	var root yamlRoot
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", filename, err)
	}

	doc := &decl{}
	for i, n := range root.Nodes {
		if n.Name == "" || n.Kind == "" {
			return nil, fmt.Errorf("%s: node %d needs a name and a kind", filename, i+1)
		}
		nd := nodeDecl{ID: n.ID, Name: n.Name, Kind: n.Kind}
		switch len(n.Position) {
		case 0:
		case 2:
			nd.Position = graph.Position{X: n.Position[0], Y: n.Position[1]}
		default:
			return nil, fmt.Errorf("%s: node %q: position needs two numbers, got %d", filename, n.Name, len(n.Position))
		}

		cfg, err := reg.NewConfig(n.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s: node %q: %w", filename, n.Name, err)
		}
		if !n.Config.IsZero() {
			if err := n.Config.Decode(cfg); err != nil {
				return nil, fmt.Errorf("%s: node %q: %w", filename, n.Name, err)
			}
		}
		nd.Config = cfg
		doc.nodes = append(doc.nodes, nd)
	}
	for _, e := range root.Edges {
		doc.edges = append(doc.edges, edgeDecl(e))
	}
	return doc, nil
}
