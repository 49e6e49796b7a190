package filter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/specialistvlad/assetgraph/internal/asset"
)

// Env is what a rule expression sees for each record.
type Env struct {
	Path        string            `expr:"path"`
	Name        string            `expr:"name"`
	Ext         string            `expr:"ext"`
	Dir         string            `expr:"dir"`
	Type        string            `expr:"type"`
	Variant     string            `expr:"variant"`
	Fingerprint string            `expr:"fingerprint"`
	Meta        map[string]string `expr:"meta"`
	Target      string            `expr:"target"`
}

func newEnv(r asset.Record, target string) Env {
	meta := r.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	return Env{
		Path:        filepath.ToSlash(r.Path),
		Name:        r.Name(),
		Ext:         strings.TrimPrefix(strings.ToLower(filepath.Ext(r.Path)), "."),
		Dir:         filepath.ToSlash(filepath.Dir(r.Path)),
		Type:        string(r.Type),
		Variant:     r.Variant,
		Fingerprint: r.Fingerprint,
		Meta:        meta,
		Target:      target,
	}
}

// rule is a compiled Rule.
type rule struct {
	label   string
	source  string
	program *vm.Program
}

func compile(r Rule) (*rule, error) {
	program, err := expr.Compile(r.Expr, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Label, err)
	}
	return &rule{label: r.Label, source: r.Expr, program: program}, nil
}

func (r *rule) match(env Env) (bool, error) {
	out, err := expr.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("rule %q failed on %s: %w", r.label, env.Path, err)
	}
	return out.(bool), nil
}
