package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/specialistvlad/assetgraph/internal/ctxlog"
)

// ValidateRegistry checks that every definition is complete and consistent:
// all factories are set, configurations are structs the document decoder
// can handle, and compatibility rules only name registered kinds.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, kind := range r.Kinds() {
		def := r.definitions[kind]
		if def.New == nil {
			errs = append(errs, fmt.Sprintf("kind '%s': missing processor constructor", kind))
		}
		if def.Ports == nil {
			errs = append(errs, fmt.Sprintf("kind '%s': missing port declaration", kind))
		}
		if def.NewConfig == nil {
			errs = append(errs, fmt.Sprintf("kind '%s': missing configuration factory", kind))
		} else if err := checkConfigShape(def.NewConfig()); err != nil {
			errs = append(errs, fmt.Sprintf("kind '%s': %v", kind, err))
		}

		for _, other := range append(append([]string{}, def.Accepts...), def.Rejects...) {
			if _, ok := r.definitions[other]; !ok {
				errs = append(errs, fmt.Sprintf("kind '%s': connection rule names unregistered kind '%s'", kind, other))
			}
		}
		if def.Description == "" {
			logger.Warn("Processor kind has no description.", "kind", kind)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "kinds", len(r.definitions))
	return nil
}

// checkConfigShape verifies cfg is a non-nil struct pointer whose hcl tags
// yield a body schema.
func checkConfigShape(cfg any) (err error) {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("configuration factory must return a pointer to a struct, got %T", cfg)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("configuration %T has invalid hcl tags: %v", cfg, r)
		}
	}()
	gohcl.ImpliedBodySchema(cfg)
	return nil
}
