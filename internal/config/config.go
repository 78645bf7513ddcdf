// Package config handles loading and validating taskforge configuration.
// Supports YAML config files and TASKFORGE_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/task"
)

// Schedule is one recurring task entry from the config file.
type Schedule struct {
	Name   string         `mapstructure:"name"`
	Spec   string         `mapstructure:"spec"`
	Type   string         `mapstructure:"type"`
	Inputs map[string]any `mapstructure:"inputs"`
}

// Config holds all taskforge configuration.
type Config struct {
	Log logging.Config `mapstructure:"log"`

	// PluginDirs are watched for Lua plugin files; Plugins are loaded
	// explicitly by path at startup.
	PluginDirs []string `mapstructure:"plugin_dirs"`
	Plugins    []string `mapstructure:"plugins"`

	// TaskConfigs attaches per-type configuration by type name.
	TaskConfigs map[string]task.Config `mapstructure:"task_configs"`

	Schedules []Schedule `mapstructure:"schedules"`
}

// GlobalConfigPath returns the default config file location.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskforge", "config.yaml")
}

// Load reads configuration from the given file (or the global path when
// empty) and the environment. A missing file is not an error; defaults and
// environment overrides still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path == "" {
		path = GlobalConfigPath()
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("TASKFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := logging.DefaultConfig()
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.path", def.Path)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.retention_days", def.RetentionDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	for i, s := range c.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedule %d: missing name", i)
		}
		if s.Spec == "" {
			return fmt.Errorf("schedule %q: missing cron spec", s.Name)
		}
		if s.Type == "" {
			return fmt.Errorf("schedule %q: missing task type", s.Name)
		}
	}
	return nil
}
