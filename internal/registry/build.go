package registry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/specialistvlad/assetgraph/internal/processor"
)

// NewConfig returns a fresh zero configuration for kind.
func (r *Registry) NewConfig(kind string) (any, error) {
	def, err := r.definition(kind)
	if err != nil {
		return nil, err
	}
	return def.NewConfig(), nil
}

// Build validates cfg and constructs a processor of the given kind. A nil
// cfg means the zero configuration.
func (r *Registry) Build(kind string, cfg any) (processor.Processor, error) {
	def, err := r.definition(kind)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = def.NewConfig()
	}
	if err := r.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	p, err := def.New(cfg)
	if err != nil {
		if errors.Is(err, processor.ErrInvalidConfig) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", processor.ErrInvalidConfig, err)
	}
	return p, nil
}

// ValidateConfig runs the `validate` struct tags of cfg.
func (r *Registry) ValidateConfig(cfg any) error {
	v := reflect.ValueOf(cfg)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	err := r.validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", processor.ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", processor.ErrInvalidConfig, strings.Join(msgs, "; "))
}
