// Package services provides a name-keyed registry for cross-cutting
// dependencies (loggers, clients) that are injected into task execution
// contexts. Lookup of an unregistered name is an error, not a nil value.
package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors.
var (
	// ErrAlreadyRegistered is returned when a service id is registered twice.
	ErrAlreadyRegistered = errors.New("service already registered")

	// ErrNotRegistered is returned when a service id is not registered.
	ErrNotRegistered = errors.New("service not registered")
)

// Config is optional, purely descriptive metadata for a registered service.
// The registry does not enforce singleton semantics or resolve dependencies.
type Config struct {
	Singleton    bool
	Dependencies []string
	Tags         []string
}

// Registry maps service ids to arbitrary instances.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]any
	configs   map[string]Config
}

// NewRegistry creates an empty service registry.
func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]any),
		configs:   make(map[string]Config),
	}
}

// Register binds an instance to an id.
func (r *Registry) Register(id string, instance any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[id]; exists {
		return fmt.Errorf("service %q: %w", id, ErrAlreadyRegistered)
	}
	r.instances[id] = instance
	return nil
}

// Get returns the instance bound to id.
func (r *Registry) Get(id string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.instances[id]
	if !ok {
		return nil, fmt.Errorf("service %q: %w", id, ErrNotRegistered)
	}
	return instance, nil
}

// Unregister removes an instance and any attached config.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[id]; !exists {
		return fmt.Errorf("service %q: %w", id, ErrNotRegistered)
	}
	delete(r.instances, id)
	delete(r.configs, id)
	return nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.instances[id]
	return ok
}

// IDs returns all registered service ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Size returns the number of registered services.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.instances)
}

// Clear removes all instances and configs.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.instances = make(map[string]any)
	r.configs = make(map[string]Config)
}

// RegisterConfig attaches metadata to a service id. The config may be
// registered before the instance itself.
func (r *Registry) RegisterConfig(id string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[id] = cfg
}

// ConfigFor returns the metadata attached to a service id, if any.
func (r *Registry) ConfigFor(id string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[id]
	return cfg, ok
}
