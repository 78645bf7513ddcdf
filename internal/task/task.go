// Package task defines the task domain model: the status lifecycle and its
// state machine, the Task behavior contract supplied by task types, per-type
// configuration, and the execution context handed to a running task.
package task

import (
	"context"
	"time"

	"github.com/taskforge/taskforge/internal/services"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusCreated   Status = "created"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRetrying  Status = "retrying"
)

// IsTerminal reports whether the status has no outgoing edges in the
// canonical transition graph. Only completed is terminal; failed and cancelled
// tasks can be re-queued.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// Metrics is a read-only snapshot of a task's execution counters.
type Metrics struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Attempts   int
	Duration   time.Duration
}

// Task is a unit of work produced by a Type. Implementations do not manage
// their own status; status changes are mediated exclusively by the owning
// manager through the state machine.
type Task interface {
	ID() string
	TypeName() string
	Priority() int

	Execute(ctx context.Context, tc *Context) (any, error)
	Cancel(reason string) error
	Pause() error
	Resume() error

	Progress() float64
	Metrics() Metrics
}

// RetryPolicy describes how a failed task may be retried.
type RetryPolicy struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Exponential bool          `mapstructure:"exponential"`
}

// ResourceLimits describes advisory resource ceilings for a task type.
type ResourceLimits struct {
	MaxMemoryBytes int64 `mapstructure:"max_memory_bytes"`
	MaxCPUPercent  int   `mapstructure:"max_cpu_percent"`
	MaxConcurrent  int   `mapstructure:"max_concurrent"`
}

// Config is per-type (or per-task) configuration. It is immutable once
// attached to a Type; execution contexts carry a copy. Timeout is enforced
// by the manager; resource limits are advisory metadata for implementations.
type Config struct {
	Timeout   time.Duration     `mapstructure:"timeout"`
	Retry     RetryPolicy       `mapstructure:"retry"`
	Resources ResourceLimits    `mapstructure:"resources"`
	Env       map[string]string `mapstructure:"env"`
}

// clone returns a copy of the config with its own env map.
func (c Config) clone() Config {
	out := c
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	return out
}

// Type is a named, versioned task descriptor plus a factory for instances.
// Uniqueness of Name is enforced by the type registry.
type Type struct {
	Name            string
	Description     string
	Version         string
	DefaultPriority int
	DefaultConfig   Config

	// New constructs a task instance. Required.
	New func(id string, inputs map[string]any) (Task, error)
}

// Context is the ephemeral, execution-scoped bundle handed to Task.Execute.
// Created fresh per execution and never persisted.
type Context struct {
	Inputs   map[string]any
	Config   Config
	Services *services.Registry
	Cancel   *CancelToken
}

// NewContext builds an execution context. The config is copied so a task
// cannot mutate the registered defaults.
func NewContext(inputs map[string]any, cfg Config, svc *services.Registry, token *CancelToken) *Context {
	if token == nil {
		token = NewCancelToken()
	}
	return &Context{
		Inputs:   inputs,
		Config:   cfg.clone(),
		Services: svc,
		Cancel:   token,
	}
}
