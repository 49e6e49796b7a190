// Package asset defines the records that flow along graph edges and the
// project asset database that source nodes read from.
package asset

import (
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Type is the asset-type tag derived from a source path.
type Type string

const (
	TypeTexture  Type = "texture"
	TypeModel    Type = "model"
	TypeAudio    Type = "audio"
	TypeMaterial Type = "material"
	TypePrefab   Type = "prefab"
	TypeScene    Type = "scene"
	TypeScript   Type = "script"
	TypeText     Type = "text"
	TypeBundle   Type = "bundle"
	TypeOther    Type = "other"
)

// TypeOf returns the asset type for path based on its extension.
func TypeOf(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".tga", ".psd", ".exr":
		return TypeTexture
	case ".fbx", ".obj", ".gltf", ".glb", ".blend":
		return TypeModel
	case ".wav", ".ogg", ".mp3":
		return TypeAudio
	case ".mat":
		return TypeMaterial
	case ".prefab":
		return TypePrefab
	case ".unity", ".scene":
		return TypeScene
	case ".cs", ".lua", ".js":
		return TypeScript
	case ".txt", ".json", ".xml", ".yaml", ".csv":
		return TypeText
	case ".bundle":
		return TypeBundle
	default:
		return TypeOther
	}
}

// Record describes one tracked asset. Records are values: processors that
// want to change one emit a modified copy (see WithMeta).
type Record struct {
	Path        string            `json:"path"`
	Fingerprint string            `json:"fingerprint"`
	Type        Type              `json:"type"`
	Variant     string            `json:"variant,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// NewRecord builds a record for path, deriving its type from the extension.
func NewRecord(path, fingerprint string) Record {
	return Record{Path: path, Fingerprint: fingerprint, Type: TypeOf(path)}
}

// Name returns the base name of the record's path.
func (r Record) Name() string {
	return filepath.Base(r.Path)
}

// Get returns a metadata value, or "" when unset.
func (r Record) Get(key string) string {
	return r.Meta[key]
}

// WithMeta returns a copy of r with the given key/value pairs set.
// An odd trailing key is ignored.
func (r Record) WithMeta(kv ...string) Record {
	out := r
	out.Meta = make(map[string]string, len(r.Meta)+len(kv)/2)
	maps.Copy(out.Meta, r.Meta)
	for i := 0; i+1 < len(kv); i += 2 {
		out.Meta[kv[i]] = kv[i+1]
	}
	return out
}

// WithVariant returns a copy of r with Variant set.
func (r Record) WithVariant(variant string) Record {
	out := r.WithMeta()
	out.Variant = variant
	return out
}

// Equal reports whether two records carry the same values.
func (r Record) Equal(o Record) bool {
	return r.Path == o.Path && r.Fingerprint == o.Fingerprint && r.Type == o.Type &&
		r.Variant == o.Variant && maps.Equal(r.Meta, o.Meta)
}

func (r Record) writeTo(d *xxhash.Digest) {
	_, _ = d.WriteString(r.Path)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(r.Fingerprint)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(r.Type))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(r.Variant)
	for _, k := range slices.Sorted(maps.Keys(r.Meta)) {
		_, _ = d.WriteString("\x01")
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(r.Meta[k])
	}
	_, _ = d.WriteString("\x02")
}

// Group is an ordered collection of records.
type Group []Record

// Concat appends groups in order into a fresh group.
func Concat(groups ...Group) Group {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	out := make(Group, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Paths returns the source paths of the group in order.
func (g Group) Paths() []string {
	paths := make([]string, len(g))
	for i, r := range g {
		paths[i] = r.Path
	}
	return paths
}

// Find returns the first record with the given path.
func (g Group) Find(path string) (Record, bool) {
	for _, r := range g {
		if r.Path == path {
			return r, true
		}
	}
	return Record{}, false
}

// Contains reports whether a record with the given path is present.
func (g Group) Contains(path string) bool {
	_, ok := g.Find(path)
	return ok
}

// Clone returns a copy of the group. Records share their metadata maps,
// which are never mutated in place.
func (g Group) Clone() Group {
	if g == nil {
		return Group{}
	}
	return slices.Clone(g)
}

// Fingerprint is an order-sensitive hash of every record in the group.
func (g Group) Fingerprint() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.Itoa(len(g)))
	for _, r := range g {
		r.writeTo(d)
	}
	return d.Sum64()
}
