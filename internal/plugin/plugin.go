// Package plugin loads and unloads task-type providers at runtime. A plugin
// contributes one or more task types plus init/teardown hooks; its identity
// is its name, and two plugins sharing a name cannot be loaded at once.
//
// Plugins are resolved through capability-checked Resolvers rather than by
// executing arbitrary code from a path: in-process providers register a
// constructor with a FuncResolver, and file-based providers are sandboxed
// Lua scripts handled by the LuaResolver.
package plugin

import (
	"github.com/taskforge/taskforge/internal/registry"
	"github.com/taskforge/taskforge/internal/services"
	"github.com/taskforge/taskforge/internal/task"
)

// Plugin is the structural contract every provider must satisfy before any
// of its task types reach the registry.
type Plugin interface {
	Name() string
	Version() string
	Description() string

	Initialize(ctx *InitContext) error
	Destroy() error

	// TaskTypes returns the task type descriptors the plugin contributes.
	TaskTypes() []*task.Type
}

// InitContext is passed to Plugin.Initialize.
type InitContext struct {
	Types    *registry.Registry
	Services *services.Registry
	Config   Config
}

// Config is per-plugin configuration.
type Config struct {
	Enabled  bool
	Settings map[string]any
}

// DefaultPluginConfig returns the config used when none was registered.
func DefaultPluginConfig() Config {
	return Config{Enabled: true}
}

// Info is a read-only snapshot of a loaded plugin.
type Info struct {
	Name        string
	Version     string
	Description string
	TaskTypes   []string
	Config      Config
}

// Resolver turns a path into a Plugin. Resolvers declare which paths they
// can handle; the manager asks each in order.
type Resolver interface {
	CanResolve(path string) bool
	Resolve(path string) (Plugin, error)
}
