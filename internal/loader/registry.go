// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// shellPrefix introduces an inline shell transform: "sh:tr a-z A-Z".
const shellPrefix = "sh:"

// Registry maps transform identifiers to implementations. The zero value is
// not usable; call NewRegistry.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]Transform
}

// NewRegistry returns a registry holding the built-in transforms:
// "identity", "esbuild", and the "sh:" prefix family.
func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[string]Transform)}
	r.Register("identity", Identity)
	r.Register("esbuild", Esbuild)
	return r
}

// Register adds or replaces the transform stored under name.
func (r *Registry) Register(name string, fn Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[name] = fn
}

// Lookup returns the transform for name. Names starting with "sh:" yield a
// shell transform running the remainder as a script.
func (r *Registry) Lookup(name string) (Transform, error) {
	if script, ok := strings.CutPrefix(name, shellPrefix); ok {
		return Shell(script)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.transforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}
	return fn, nil
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Identity returns source unchanged.
func Identity(_ context.Context, _, source string) (string, error) {
	return source, nil
}
