// Package factory resolves task-type names through the registry and
// produces concrete task instances. Created instances are cached under a
// canonical "type:id" key, making creation idempotent per key.
package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/taskforge/taskforge/internal/registry"
	"github.com/taskforge/taskforge/internal/task"
)

// ErrMissingID is returned by Builder.Build when no id was set.
var ErrMissingID = errors.New("task id is required")

// Spec describes one task for batch creation.
type Spec struct {
	Type   string
	ID     string
	Inputs map[string]any
}

// Factory creates and caches task instances.
type Factory struct {
	mu       sync.Mutex
	registry *registry.Registry
	cache    map[string]task.Task // keyed type:id
}

// New creates a factory backed by the given type registry.
func New(reg *registry.Registry) *Factory {
	return &Factory{
		registry: reg,
		cache:    make(map[string]task.Task),
	}
}

// cacheKey is the canonical composite key used for insert, lookup and evict.
func cacheKey(typeName, id string) string {
	return typeName + ":" + id
}

// Create resolves typeName and returns a task instance. Repeated calls with
// the same (typeName, id) return the cached instance without invoking the
// type's constructor again.
func (f *Factory) Create(typeName, id string, inputs map[string]any) (task.Task, error) {
	typ, ok := f.registry.Get(typeName)
	if !ok {
		return nil, fmt.Errorf("task type %q: %w", typeName, registry.ErrTypeNotFound)
	}

	key := cacheKey(typeName, id)

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[key]; ok {
		return cached, nil
	}

	t, err := typ.New(id, inputs)
	if err != nil {
		return nil, fmt.Errorf("creating task %q of type %q: %w", id, typeName, err)
	}
	f.cache[key] = t
	return t, nil
}

// CreateAll creates one task per spec, preserving input order. The first
// failure aborts the batch.
func (f *Factory) CreateAll(specs []Spec) ([]task.Task, error) {
	out := make([]task.Task, 0, len(specs))
	for _, s := range specs {
		t, err := f.Create(s.Type, s.ID, s.Inputs)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// CacheSize returns the number of cached instances.
func (f *Factory) CacheSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.cache)
}

// ClearCache evicts every cached instance.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cache = make(map[string]task.Task)
}

// RemoveFromCache evicts all entries whose task id matches, scanning across
// types. Returns true if anything was removed.
func (f *Factory) RemoveFromCache(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := false
	for key, t := range f.cache {
		if t.ID() == id {
			delete(f.cache, key)
			removed = true
		}
	}
	return removed
}

// CachedTasks returns the cached instances, ordered by cache key.
func (f *Factory) CachedTasks() []task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.cache))
	for key := range f.cache {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]task.Task, 0, len(keys))
	for _, key := range keys {
		out = append(out, f.cache[key])
	}
	return out
}

// SupportedTypes returns the registered type names, sorted.
func (f *Factory) SupportedTypes() []string {
	return f.registry.Names()
}

// IsSupported reports whether a type name is registered.
func (f *Factory) IsSupported(name string) bool {
	return f.registry.Has(name)
}

// TypeInfo returns the descriptor for a type name.
func (f *Factory) TypeInfo(name string) (*task.Type, bool) {
	return f.registry.Get(name)
}

// FilterTypes returns the registered types matching the predicate.
func (f *Factory) FilterTypes(pred func(*task.Type) bool) []*task.Type {
	return f.registry.Filter(pred)
}

// TypesByPriority returns the registered types with the exact priority.
func (f *Factory) TypesByPriority(priority int) []*task.Type {
	return f.registry.ByPriority(priority)
}
