package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/builtin"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/manager"
	"github.com/taskforge/taskforge/internal/plugin"
	"github.com/taskforge/taskforge/internal/registry"
	"github.com/taskforge/taskforge/internal/services"
	"github.com/taskforge/taskforge/internal/ui"
)

// engine bundles the wired-up components a command works against.
type engine struct {
	cfg      *config.Config
	types    *registry.Registry
	services *services.Registry
	plugins  *plugin.Manager
	manager  *manager.TaskManager
	format   *ui.Formatter
}

// newEngine loads config, initializes logging and wires the registries,
// plugin manager and task manager. Plugins listed in the config are loaded
// eagerly; a plugin that fails to load is reported but does not abort
// startup.
func newEngine(cmd *cobra.Command) (*engine, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logCfg := cfg.Log
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logCfg.Level = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	types := registry.New()
	if err := builtin.Register(types); err != nil {
		return nil, err
	}

	svc := services.NewRegistry()
	plugins := plugin.NewManager(types, svc, plugin.WithResolver(plugin.NewLuaResolver()))
	for _, p := range cfg.Plugins {
		if err := plugins.Load(p); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: plugin %s: %v\n", p, err)
		}
	}

	for name, tc := range cfg.TaskConfigs {
		if err := types.RegisterConfig(name, tc); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: task config %s: %v\n", name, err)
		}
	}

	return &engine{
		cfg:      cfg,
		types:    types,
		services: svc,
		plugins:  plugins,
		manager:  manager.New(types, manager.WithServices(svc)),
		format:   ui.NewFormatter(),
	}, nil
}

// parseInputs turns key=value arguments into a task input map.
func parseInputs(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	inputs := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("input %q is not key=value", arg)
		}
		inputs[key] = value
	}
	return inputs, nil
}
