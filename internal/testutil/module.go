package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/specialistvlad/assetgraph/internal/graph"
	"github.com/specialistvlad/assetgraph/internal/processor"
	"github.com/specialistvlad/assetgraph/internal/registry"
)

// Invocation is one processor call seen by a Recorder.
type Invocation struct {
	Node   string
	Mode   processor.Mode
	Target string
	Inputs processor.Inputs
	ExecutionRecord
}

// Recorder collects the invocations of RecordingModule processors.
type Recorder struct {
	mu    sync.Mutex
	calls []Invocation
}

func (r *Recorder) add(inv Invocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inv)
}

// Calls returns every invocation in call order.
func (r *Recorder) Calls() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Nodes returns the names of the invoked nodes in call order.
func (r *Recorder) Nodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.calls))
	for i, c := range r.calls {
		names[i] = c.Node
	}
	return names
}

// Count returns how often node was invoked.
func (r *Recorder) Count(node string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Node == node {
			n++
		}
	}
	return n
}

// Last returns the most recent invocation of node.
func (r *Recorder) Last(node string) (Invocation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].Node == node {
			return r.calls[i], true
		}
	}
	return Invocation{}, false
}

// Reset forgets every invocation.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// EmitConfig configures the "emit" test kind.
type EmitConfig struct {
	Paths []string `hcl:"paths,optional" yaml:"paths"`
	Tag   string   `hcl:"tag,optional" yaml:"tag"`
	// Outputs name the ports, each receiving the same records. Defaults to
	// "out".
	Outputs []string `hcl:"outputs,optional" yaml:"outputs" validate:"dive,required"`
}

// RelayConfig configures the "relay" and "builder" test kinds.
type RelayConfig struct {
	// Tag is stamped as "tag" metadata on every forwarded record.
	Tag string `hcl:"tag,optional" yaml:"tag"`
	// Fail makes the processor return an error with this message.
	Fail string `hcl:"fail,optional" yaml:"fail"`
	// Panic makes the processor panic.
	Panic bool `hcl:"panic,optional" yaml:"panic"`
	// Sleep delays the processor.
	Sleep time.Duration `hcl:"sleep,optional" yaml:"sleep"`
	// Inputs and Outputs name the ports; they default to "in" and "out".
	Inputs  []string `hcl:"inputs,optional" yaml:"inputs"`
	Outputs []string `hcl:"outputs,optional" yaml:"outputs" validate:"dive,required"`
}

// RecordingModule registers three test kinds:
//
//   - emit: no input, emits one record per configured path on every output.
//   - relay: forwards the concatenation of its inputs to every output.
//   - builder: a relay that may not feed another builder.
type RecordingModule struct {
	Recorder *Recorder
}

// Register implements the registry.Module interface.
func (m *RecordingModule) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        "emit",
		Description: "Emits fixed records.",
		NewConfig:   func() any { return &EmitConfig{} },
		New: func(cfg any) (processor.Processor, error) {
			return &emit{cfg: cfg.(*EmitConfig), rec: m.Recorder}, nil
		},
		Ports: func(cfg any) []graph.PortSpec {
			var specs []graph.PortSpec
			for _, l := range labelsOr(cfg.(*EmitConfig).Outputs, "out") {
				specs = append(specs, graph.Out(l))
			}
			return specs
		},
	})

	relayPorts := func(cfg any) []graph.PortSpec {
		c := cfg.(*RelayConfig)
		var specs []graph.PortSpec
		for _, l := range labelsOr(c.Inputs, "in") {
			specs = append(specs, graph.In(l))
		}
		for _, l := range labelsOr(c.Outputs, "out") {
			specs = append(specs, graph.Out(l))
		}
		return specs
	}
	newRelay := func(cfg any) (processor.Processor, error) {
		return &relay{cfg: cfg.(*RelayConfig), rec: m.Recorder}, nil
	}

	r.Register(&registry.Definition{
		Kind:        "relay",
		Description: "Forwards its inputs.",
		NewConfig:   func() any { return &RelayConfig{} },
		New:         newRelay,
		Ports:       relayPorts,
	})
	r.Register(&registry.Definition{
		Kind:        "builder",
		Description: "Forwards its inputs, never into another builder.",
		NewConfig:   func() any { return &RelayConfig{} },
		New:         newRelay,
		Ports:       relayPorts,
		Rejects:     []string{"builder"},
	})
}

func labelsOr(labels []string, def string) []string {
	if len(labels) == 0 {
		return []string{def}
	}
	return labels
}

type emit struct {
	cfg *EmitConfig
	rec *Recorder
}

func (e *emit) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	start := time.Now()
	group := asset.Group{}
	for _, p := range e.cfg.Paths {
		group = append(group, asset.NewRecord(p, "fp-"+p+"-"+e.cfg.Tag))
	}
	if e.rec != nil {
		e.rec.add(Invocation{Node: pc.NodeName, Mode: pc.Mode, Target: pc.Target, Inputs: in,
			ExecutionRecord: ExecutionRecord{Start: start, End: time.Now()}})
	}
	out := processor.Outputs{}
	for _, l := range labelsOr(e.cfg.Outputs, "out") {
		out[l] = group
	}
	return out, nil
}

func (e *emit) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	return e.Setup(ctx, pc, in)
}

type relay struct {
	cfg *RelayConfig
	rec *Recorder
}

func (r *relay) Setup(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	start := time.Now()
	defer func() {
		if r.rec != nil {
			r.rec.add(Invocation{Node: pc.NodeName, Mode: pc.Mode, Target: pc.Target, Inputs: in,
				ExecutionRecord: ExecutionRecord{Start: start, End: time.Now()}})
		}
	}()

	if r.cfg.Sleep > 0 {
		select {
		case <-time.After(r.cfg.Sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.cfg.Panic {
		panic("relay asked to panic")
	}
	if r.cfg.Fail != "" {
		return nil, errors.New(r.cfg.Fail)
	}

	pc.Report("Forwarding", 0.5)
	forwarded := asset.Group{}
	for _, l := range labelsOr(r.cfg.Inputs, "in") {
		for _, rec := range in.Get(l) {
			if r.cfg.Tag != "" {
				rec = rec.WithMeta("tag", r.cfg.Tag)
			}
			forwarded = append(forwarded, rec)
		}
	}
	out := processor.Outputs{}
	for _, l := range labelsOr(r.cfg.Outputs, "out") {
		out[l] = forwarded
	}
	return out, nil
}

func (r *relay) Run(ctx context.Context, pc *processor.Context, in processor.Inputs) (processor.Outputs, error) {
	return r.Setup(ctx, pc, in)
}
