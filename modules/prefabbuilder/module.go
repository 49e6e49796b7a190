// Package prefabbuilder provides the "prefabbuilder" node kind. It turns
// every group of records into one prefab record. In run mode the prefab
// manifest is written below the cache directory so later stages can pack
// it like any other asset.
package prefabbuilder

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// Kind is the registered kind name.
const Kind = "prefabbuilder"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config defines the arguments for a prefab builder node.
type Config struct {
	// GroupKey is the metadata key holding the group name.
	GroupKey string `hcl:"group_key,optional" yaml:"group_key"`
	// IncludeMembers also forwards the grouped records after the prefabs.
	IncludeMembers bool `hcl:"include_members,optional" yaml:"include_members"`
}

// Manifest is the content of a prefab file.
type Manifest struct {
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

// Member is one record referenced by a prefab.
type Member struct {
	Path        string     `json:"path"`
	Fingerprint string     `json:"fingerprint"`
	Type        asset.Type `json:"type"`
}

type prefabBuilder struct {
	key     string
	members bool
}

// New builds a prefab builder.
func New(cfg *Config) (processor.Processor, error) {
	key := cfg.GroupKey
	if key == "" {
		key = "group"
	}
	return &prefabBuilder{key: key, members: cfg.IncludeMembers}, nil
}

type prefab struct {
	record  asset.Record
	payload []byte
}

// prefabs groups the records and builds one prefab per group, ordered by
// group name.
func (b *prefabBuilder) prefabs(pc *processor.Context, in asset.Group) ([]prefab, asset.Group, error) {
	groups := map[string]*Manifest{}
	var members asset.Group
	for _, rec := range in {
		name := rec.Get(b.key)
		if name == "" {
			continue
		}
		m, ok := groups[name]
		if !ok {
			m = &Manifest{Name: name}
			groups[name] = m
		}
		m.Members = append(m.Members, Member{Path: rec.Path, Fingerprint: rec.Fingerprint, Type: rec.Type})
		members = append(members, rec)
	}

	manifests := make([]*Manifest, 0, len(groups))
	for _, m := range groups {
		manifests = append(manifests, m)
	}
	slices.SortFunc(manifests, func(a, b *Manifest) int { return cmp.Compare(a.Name, b.Name) })

	out := make([]prefab, 0, len(manifests))
	for _, m := range manifests {
		payload, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("encode prefab %s: %w", m.Name, err)
		}
		rec := asset.NewRecord(Path(pc.CacheDir, m.Name), asset.FingerprintBytes(payload))
		rec = rec.WithMeta(b.key, m.Name, "members", strconv.Itoa(len(m.Members)))
		out = append(out, prefab{record: rec, payload: payload})
	}
	return out, members, nil
}

// Path returns where the prefab for group is written.
func Path(cacheDir, group string) string {
	return filepath.Join(cacheDir, "prefabs", group+".prefab")
}

func (b *prefabBuilder) output(prefabs []prefab, members asset.Group) processor.Outputs {
	group := make(asset.Group, 0, len(prefabs))
	for _, p := range prefabs {
		group = append(group, p.record)
	}
	if b.members {
		group = append(group, members...)
	}
	return processor.Outputs{"out": group}
}

func (b *prefabBuilder) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	prefabs, members, err := b.prefabs(pc, in.All())
	if err != nil {
		return nil, err
	}
	return b.output(prefabs, members), nil
}

func (b *prefabBuilder) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	prefabs, members, err := b.prefabs(pc, in.All())
	if err != nil {
		return nil, err
	}
	if len(prefabs) > 0 {
		if err := os.MkdirAll(filepath.Dir(prefabs[0].record.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create prefab directory: %w", err)
		}
	}
	for i, p := range prefabs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p.record.Path, p.payload, 0o644); err != nil {
			return nil, fmt.Errorf("write prefab %s: %w", p.record.Path, err)
		}
		pc.Report("Writing prefabs", float64(i+1)/float64(len(prefabs)))
	}
	pc.Logger.Info("Prefabs written.", "count", len(prefabs))
	return b.output(prefabs, members), nil
}

// Register registers the kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Builds one prefab per record group.",
		NewConfig:   func() any { return new(Config) },
		New:         func(cfg any) (processor.Processor, error) { return New(cfg.(*Config)) },
		Ports: func(any) []graph.PortSpec {
			return []graph.PortSpec{graph.In("in"), graph.Out("out")}
		},
	})
}
