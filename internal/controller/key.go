package controller

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
)

// cacheKey identifies everything a visit depends on: the node kind and
// configuration, the platform target, the pass mode, the groups arriving on
// each input label and, for source nodes, the catalog content they read.
func cacheKey(node *graph.Node, target string, mode processor.Mode, in processor.Inputs, watched []asset.Group) (string, error) {
	cfgHash, err := hashstructure.Hash(node.Config, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash configuration of node %q: %w", node.Name, err)
	}

	d := xxhash.New()
	write := func(s string) {
		_, _ = d.WriteString(s)
		_, _ = d.WriteString("\x00")
	}
	write(node.Kind)
	write(strconv.FormatUint(cfgHash, 16))
	write(target)
	write(string(mode))
	for _, label := range slices.Sorted(maps.Keys(in)) {
		write(label)
		write(strconv.FormatUint(in[label].Fingerprint(), 16))
	}
	for _, g := range watched {
		write(strconv.FormatUint(g.Fingerprint(), 16))
	}
	return strconv.FormatUint(d.Sum64(), 16), nil
}
