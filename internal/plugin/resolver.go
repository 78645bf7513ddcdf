package plugin

import (
	"fmt"
	"sync"
)

// FuncResolver resolves paths to constructors registered in-process. It is
// the provider abstraction for plugins compiled into the host binary.
type FuncResolver struct {
	mu           sync.RWMutex
	constructors map[string]func() (Plugin, error)
}

// NewFuncResolver creates an empty in-process resolver.
func NewFuncResolver() *FuncResolver {
	return &FuncResolver{constructors: make(map[string]func() (Plugin, error))}
}

// RegisterConstructor binds a constructor to a path. A later registration
// under the same path replaces the earlier one.
func (r *FuncResolver) RegisterConstructor(path string, constructor func() (Plugin, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.constructors[path] = constructor
}

// CanResolve reports whether a constructor is registered for the path.
func (r *FuncResolver) CanResolve(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.constructors[path]
	return ok
}

// Resolve invokes the constructor registered for the path.
func (r *FuncResolver) Resolve(path string) (Plugin, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[path]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("path %q: %w", path, ErrNoResolver)
	}
	p, err := constructor()
	if err != nil {
		return nil, fmt.Errorf("constructing plugin for %q: %w", path, err)
	}
	if p == nil {
		return nil, fmt.Errorf("constructor for %q returned nil: %w", path, ErrInvalidPlugin)
	}
	return p, nil
}
