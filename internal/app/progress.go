package app

import (
	"fmt"
	"io"

	"github.com/specialistvlad/assetgraph/internal/controller"
	"github.com/specialistvlad/assetgraph/internal/graph"
)

// progressPrinter renders controller progress as "[i/n] node: message"
// lines. i counts nodes in the order they start.
type progressPrinter struct {
	out   io.Writer
	total int
	seen  map[string]int
}

func newProgressPrinter(out io.Writer, total int) *progressPrinter {
	return &progressPrinter{out: out, total: total, seen: map[string]int{}}
}

func (p *progressPrinter) report(node *graph.Node, message string, fraction float64) {
	idx, ok := p.seen[node.ID]
	if !ok {
		idx = len(p.seen) + 1
		p.seen[node.ID] = idx
	}
	if fraction > 0 && fraction < 1 {
		fmt.Fprintf(p.out, "[%d/%d] %s: %s (%.0f%%)\n", idx, p.total, node.Name, message, fraction*100)
		return
	}
	fmt.Fprintf(p.out, "[%d/%d] %s: %s\n", idx, p.total, node.Name, message)
}

// progress returns the callback passed to the controller.
func (p *progressPrinter) progress() controller.ProgressFunc {
	return p.report
}
