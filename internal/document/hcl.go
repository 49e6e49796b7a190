package document

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclRoot is the top level of an HCL document.
type hclRoot struct {
	Variables []*hclVariable `hcl:"variable,block"`
	Nodes     []*hclNode     `hcl:"node,block"`
	Edges     []*hclEdge     `hcl:"edge,block"`
}

type hclVariable struct {
	Name        string         `hcl:"name,label"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
}

// hclNode keeps the body undecoded: its schema depends on the kind.
type hclNode struct {
	Kind string   `hcl:"kind,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type hclEdge struct {
	ID   string `hcl:"id,optional"`
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// nodeAttributes are read by the document itself, the rest of a node body
// belongs to the processor configuration.
var nodeAttributes = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "id"},
		{Name: "position"},
	},
}

func parseHCL(filename string, src []byte, reg *registry.Registry, o *options) (*decl, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	evalCtx, err := variables(root.Variables, o.variables)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	doc := &decl{}
	for _, n := range root.Nodes {
		nd, err := decodeNode(n, evalCtx, reg)
		if err != nil {
			return nil, fmt.Errorf("%s: node %q: %w", filename, n.Name, err)
		}
		doc.nodes = append(doc.nodes, nd)
	}
	for _, e := range root.Edges {
		doc.edges = append(doc.edges, edgeDecl{ID: e.ID, From: e.From, To: e.To})
	}
	return doc, nil
}

// variables evaluates the variable defaults, applies overrides and exposes
// the result as var.<name>.
func variables(defs []*hclVariable, overrides map[string]string) (*hcl.EvalContext, error) {
	vals := make(map[string]cty.Value, len(defs))
	for _, v := range defs {
		if s, ok := overrides[v.Name]; ok {
			vals[v.Name] = cty.StringVal(s)
			continue
		}
		if v.Default == nil {
			return nil, fmt.Errorf("variable %q has no value", v.Name)
		}
		val, diags := v.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid default for variable %q: %w", v.Name, diags)
		}
		if val.IsNull() {
			return nil, fmt.Errorf("variable %q has no value", v.Name)
		}
		vals[v.Name] = val
	}
	for name := range overrides {
		if _, ok := vals[name]; !ok {
			return nil, fmt.Errorf("variable %q is not declared", name)
		}
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{"var": cty.ObjectVal(vals)}}, nil
}

func decodeNode(n *hclNode, evalCtx *hcl.EvalContext, reg *registry.Registry) (nodeDecl, error) {
	nd := nodeDecl{Name: n.Name, Kind: n.Kind}

	content, rest, diags := n.Body.PartialContent(nodeAttributes)
	if diags.HasErrors() {
		return nd, diags
	}
	if attr, ok := content.Attributes["id"]; ok {
		if diags := gohcl.DecodeExpression(attr.Expr, evalCtx, &nd.ID); diags.HasErrors() {
			return nd, diags
		}
	}
	if attr, ok := content.Attributes["position"]; ok {
		pos, err := position(attr.Expr, evalCtx)
		if err != nil {
			return nd, err
		}
		nd.Position = pos
	}

	cfg, err := reg.NewConfig(n.Kind)
	if err != nil {
		return nd, err
	}
	if diags := gohcl.DecodeBody(rest, evalCtx, cfg); diags.HasErrors() {
		return nd, diags
	}
	nd.Config = cfg
	return nd, nil
}

func position(expr hcl.Expression, evalCtx *hcl.EvalContext) (graph.Position, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return graph.Position{}, diags
	}
	val, err := convert.Convert(val, cty.List(cty.Number))
	if err != nil {
		return graph.Position{}, fmt.Errorf("position: %w", err)
	}
	var xy []float64
	if err := gocty.FromCtyValue(val, &xy); err != nil {
		return graph.Position{}, fmt.Errorf("position: %w", err)
	}
	if len(xy) != 2 {
		return graph.Position{}, fmt.Errorf("position needs two numbers, got %d", len(xy))
	}
	return graph.Position{X: xy[0], Y: xy[1]}, nil
}
