// Package registry maps task-type names to their descriptors. Duplicate
// registration is a hard error, never a silent overwrite; the registry is
// the single source of truth consulted by the factory and plugin manager.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/taskforge/taskforge/internal/task"
)

// Registry errors.
var (
	// ErrDuplicateType is returned when a type name is registered twice.
	ErrDuplicateType = errors.New("task type already registered")

	// ErrTypeNotFound is returned when a type name is not registered.
	ErrTypeNotFound = errors.New("task type not found")

	// ErrInvalidType is returned when a registered type is nil or unnamed.
	ErrInvalidType = errors.New("invalid task type")
)

// Registry owns the name -> task type map and per-type configuration.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]*task.Type
	configs map[string]task.Config
}

// New creates an empty task type registry.
func New() *Registry {
	return &Registry{
		types:   make(map[string]*task.Type),
		configs: make(map[string]task.Config),
	}
}

// Register stores a task type. The name must be unused.
func (r *Registry) Register(t *task.Type) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("task type must have a name: %w", ErrInvalidType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("task type %q: %w", t.Name, ErrDuplicateType)
	}
	r.types[t.Name] = t
	return nil
}

// Unregister removes a task type and any attached configuration. After
// unregistration the name becomes available again.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; !exists {
		return fmt.Errorf("task type %q: %w", name, ErrTypeNotFound)
	}
	delete(r.types, name)
	delete(r.configs, name)
	return nil
}

// Get returns the type registered under name.
func (r *Registry) Get(name string) (*task.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// All returns every registered type, sorted by name.
func (r *Registry) All() []*task.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*task.Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterConfig attaches (or overwrites) configuration for a registered
// type. The type must exist.
func (r *Registry) RegisterConfig(name string, cfg task.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; !exists {
		return fmt.Errorf("task type %q: %w", name, ErrTypeNotFound)
	}
	r.configs[name] = cfg
	return nil
}

// Config returns the configuration attached to a type, falling back to the
// type's default config when none was registered explicitly.
func (r *Registry) Config(name string) (task.Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.configs[name]; ok {
		return cfg, true
	}
	if t, ok := r.types[name]; ok {
		return t.DefaultConfig, true
	}
	return task.Config{}, false
}

// Filter returns the types matching the predicate, sorted by name.
func (r *Registry) Filter(pred func(*task.Type) bool) []*task.Type {
	all := r.All()
	out := make([]*task.Type, 0, len(all))
	for _, t := range all {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// ByPriority returns the types with the exact default priority.
func (r *Registry) ByPriority(priority int) []*task.Type {
	return r.Filter(func(t *task.Type) bool { return t.DefaultPriority == priority })
}

// ByVersion returns the types carrying the exact version string.
func (r *Registry) ByVersion(version string) []*task.Type {
	return r.Filter(func(t *task.Type) bool { return t.Version == version })
}

// Size returns the number of registered types.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.types)
}

// Clear unconditionally empties the type and config maps. Used only during
// full shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.types = make(map[string]*task.Type)
	r.configs = make(map[string]task.Config)
}
