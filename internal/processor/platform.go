package processor

import "strings"

// DefaultPlatform is the key used when no platform-specific entry exists.
const DefaultPlatform = "default"

// PerPlatform holds one value per build target plus an optional default.
type PerPlatform[T any] map[string]T

// For returns the entry for target, falling back to the default entry.
// Target matching ignores case.
func (p PerPlatform[T]) For(target string) (T, bool) {
	if v, ok := p[target]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, target) {
			return v, true
		}
	}
	v, ok := p[DefaultPlatform]
	return v, ok
}
