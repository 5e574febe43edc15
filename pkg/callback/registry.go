// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-wssec.
//
// go-wssec is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package callback

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-wssec/pkg/validation"
)

// Factory constructs a handler from its zero configuration.
type Factory func() (Handler, error)

// Registry maps handler names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New instantiates the handler registered under name.
func (r *Registry) New(name string) (Handler, error) {
	if err := validation.ValidateHandlerName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownHandler, err)
	}
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, name)
	}
	h, err := f()
	if err != nil {
		return nil, fmt.Errorf("callback: instantiate %s: %w", name, err)
	}
	if h == nil {
		return nil, fmt.Errorf("callback: instantiate %s: factory returned nil", name)
	}
	return h, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the handlers built into go-wssec.
var DefaultRegistry = NewRegistry()

// Register adds a factory to the default registry.
func Register(name string, f Factory) {
	DefaultRegistry.Register(name, f)
}

// New instantiates a handler from the default registry.
func New(name string) (Handler, error) {
	return DefaultRegistry.New(name)
}
