package plugin

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/registry"
	"github.com/taskforge/taskforge/internal/services"
)

// Manager owns the set of loaded plugins. Loading registers every task type
// a plugin contributes into the type registry transactionally: on any
// mid-loop failure the already-registered types are rolled back, so a bad
// plugin can never leave partial registration behind.
type Manager struct {
	mu sync.RWMutex

	types     *registry.Registry
	services  *services.Registry
	resolvers []Resolver

	plugins   map[string]*loadedPlugin
	loadOrder []string
	configs   map[string]Config

	logger *logging.Logger
}

// loadedPlugin pairs a plugin with its load bookkeeping.
type loadedPlugin struct {
	plugin    Plugin
	path      string
	typeNames []string
}

// Option configures a Manager.
type Option func(*Manager)

// WithResolver appends a resolver. Resolvers are consulted in order.
func WithResolver(r Resolver) Option {
	return func(m *Manager) {
		m.resolvers = append(m.resolvers, r)
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a plugin manager bound to the given registries.
func NewManager(types *registry.Registry, svc *services.Registry, opts ...Option) *Manager {
	m := &Manager{
		types:    types,
		services: svc,
		plugins:  make(map[string]*loadedPlugin),
		configs:  make(map[string]Config),
		logger:   logging.Component("plugin"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load resolves, validates, initializes and registers a plugin. Every
// failure mode wraps ErrLoad with the root cause.
func (m *Manager) Load(path string) error {
	p, err := m.resolve(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if err := validatePlugin(p); err != nil {
		destroyQuietly(p, m.logger)
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	name := p.Name()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[name]; exists {
		destroyQuietly(p, m.logger)
		return fmt.Errorf("%w: plugin %q: %w", ErrLoad, name, ErrAlreadyLoaded)
	}

	cfg, ok := m.configs[name]
	if !ok {
		cfg = DefaultPluginConfig()
	}

	if err := p.Initialize(&InitContext{Types: m.types, Services: m.services, Config: cfg}); err != nil {
		destroyQuietly(p, m.logger)
		return fmt.Errorf("%w: initializing %q: %w", ErrLoad, name, err)
	}

	// Transactional registration: pre-validate collisions, then commit,
	// rolling back on any mid-loop failure.
	types := p.TaskTypes()
	for _, t := range types {
		if m.types.Has(t.Name) {
			destroyQuietly(p, m.logger)
			return fmt.Errorf("%w: plugin %q: task type %q: %w", ErrLoad, name, t.Name, registry.ErrDuplicateType)
		}
	}

	registered := make([]string, 0, len(types))
	for _, t := range types {
		if err := m.types.Register(t); err != nil {
			for _, n := range registered {
				_ = m.types.Unregister(n)
			}
			destroyQuietly(p, m.logger)
			return fmt.Errorf("%w: plugin %q: registering task type %q: %w", ErrLoad, name, t.Name, err)
		}
		registered = append(registered, t.Name)
	}

	m.plugins[name] = &loadedPlugin{plugin: p, path: path, typeNames: registered}
	m.loadOrder = append(m.loadOrder, name)

	m.logger.InfoCtx("plugin loaded", map[string]any{
		"plugin": name,
		"types":  registered,
	})
	return nil
}

// Unload destroys a plugin and removes every task type it contributed,
// skipping types already removed independently.
func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lp, exists := m.plugins[name]
	if !exists {
		return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
	}

	destroyErr := lp.plugin.Destroy()

	for _, typeName := range lp.typeNames {
		if err := m.types.Unregister(typeName); err != nil && !errors.Is(err, registry.ErrTypeNotFound) {
			m.logger.WarnCtx("unregistering task type", map[string]any{
				"plugin": name,
				"type":   typeName,
				"error":  err.Error(),
			})
		}
	}

	delete(m.plugins, name)
	delete(m.configs, name)
	m.removeFromLoadOrder(name)

	m.logger.Infof("plugin %s unloaded", name)

	if destroyErr != nil {
		return fmt.Errorf("destroying plugin %q: %w", name, destroyErr)
	}
	return nil
}

// Reload unloads the plugin named by the path (if loaded) and loads it
// fresh. The plugin name is derived from the path's final segment with its
// extension stripped.
func (m *Manager) Reload(path string) error {
	name := NameFromPath(path)

	m.mu.RLock()
	_, loaded := m.plugins[name]
	m.mu.RUnlock()

	if loaded {
		if err := m.Unload(name); err != nil {
			return fmt.Errorf("reload unload: %w", err)
		}
	}
	return m.Load(path)
}

// NameFromPath derives a plugin name from a path's final segment, stripping
// any file extension.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Loaded returns the names of loaded plugins, in load order.
func (m *Manager) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.loadOrder))
	copy(out, m.loadOrder)
	return out
}

// Get returns a loaded plugin by name.
func (m *Manager) Get(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lp, ok := m.plugins[name]
	if !ok {
		return nil, false
	}
	return lp.plugin, true
}

// Info returns a snapshot of a loaded plugin's metadata.
func (m *Manager) Info(name string) (*Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lp, ok := m.plugins[name]
	if !ok {
		return nil, false
	}
	return m.infoLocked(name, lp), true
}

// AllInfo returns snapshots for every loaded plugin, in load order.
func (m *Manager) AllInfo() []*Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Info, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		if lp, ok := m.plugins[name]; ok {
			out = append(out, m.infoLocked(name, lp))
		}
	}
	return out
}

// infoLocked builds an Info snapshot. Caller holds at least a read lock.
func (m *Manager) infoLocked(name string, lp *loadedPlugin) *Info {
	cfg, ok := m.configs[name]
	if !ok {
		cfg = DefaultPluginConfig()
	}
	typeNames := make([]string, len(lp.typeNames))
	copy(typeNames, lp.typeNames)
	return &Info{
		Name:        lp.plugin.Name(),
		Version:     lp.plugin.Version(),
		Description: lp.plugin.Description(),
		TaskTypes:   typeNames,
		Config:      cfg,
	}
}

// RegisterConfig attaches configuration to a plugin name. May be called
// before the plugin loads; Load will pick it up.
func (m *Manager) RegisterConfig(name string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configs[name] = cfg
}

// ConfigFor returns the configuration registered for a plugin name.
func (m *Manager) ConfigFor(name string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[name]
	return cfg, ok
}

// Enable marks a plugin as enabled.
func (m *Manager) Enable(name string) {
	m.setEnabled(name, true)
}

// Disable marks a plugin as disabled.
func (m *Manager) Disable(name string) {
	m.setEnabled(name, false)
}

func (m *Manager) setEnabled(name string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[name]
	if !ok {
		cfg = DefaultPluginConfig()
	}
	cfg.Enabled = enabled
	m.configs[name] = cfg
}

// IsEnabled reports whether a plugin is enabled. Plugins without a config
// default to enabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[name]
	if !ok {
		return true
	}
	return cfg.Enabled
}

// Size returns the number of loaded plugins.
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.plugins)
}

// Clear unloads every plugin sequentially in load order, propagating the
// first failure.
func (m *Manager) Clear() error {
	for _, name := range m.Loaded() {
		if err := m.Unload(name); err != nil {
			return err
		}
	}
	return nil
}

// resolve finds the first resolver that can handle the path.
func (m *Manager) resolve(path string) (Plugin, error) {
	for _, r := range m.resolvers {
		if r.CanResolve(path) {
			return r.Resolve(path)
		}
	}
	return nil, fmt.Errorf("path %q: %w", path, ErrNoResolver)
}

// validatePlugin checks the structural contract before any registration.
func validatePlugin(p Plugin) error {
	if p.Name() == "" {
		return fmt.Errorf("empty plugin name: %w", ErrInvalidPlugin)
	}
	if p.Version() == "" {
		return fmt.Errorf("plugin %q: empty version: %w", p.Name(), ErrInvalidPlugin)
	}
	if p.Description() == "" {
		return fmt.Errorf("plugin %q: empty description: %w", p.Name(), ErrInvalidPlugin)
	}
	for _, t := range p.TaskTypes() {
		if t == nil || t.Name == "" || t.New == nil {
			return fmt.Errorf("plugin %q: malformed task type: %w", p.Name(), ErrInvalidPlugin)
		}
	}
	return nil
}

// destroyQuietly tears down a plugin whose load was abandoned.
func destroyQuietly(p Plugin, logger *logging.Logger) {
	if err := p.Destroy(); err != nil {
		logger.WarnCtx("destroying abandoned plugin", map[string]any{
			"plugin": p.Name(),
			"error":  err.Error(),
		})
	}
}

// removeFromLoadOrder removes a name from the load order slice. Caller
// holds the write lock.
func (m *Manager) removeFromLoadOrder(name string) {
	for i, n := range m.loadOrder {
		if n == name {
			m.loadOrder = append(m.loadOrder[:i], m.loadOrder[i+1:]...)
			return
		}
	}
}
