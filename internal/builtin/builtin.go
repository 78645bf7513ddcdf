// Package builtin provides the task types that ship with the engine.
package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskforge/taskforge/internal/registry"
	"github.com/taskforge/taskforge/internal/task"
)

// Register registers every builtin task type into the registry.
func Register(r *registry.Registry) error {
	for _, typ := range []*task.Type{EchoType(), SleepType()} {
		if err := r.Register(typ); err != nil {
			return fmt.Errorf("registering builtin %q: %w", typ.Name, err)
		}
	}
	return nil
}

// EchoType returns the echo task type, an identity transform over its
// inputs.
func EchoType() *task.Type {
	return &task.Type{
		Name:        "echo",
		Description: "returns its inputs unchanged",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			return &echoTask{base: newBase(id, "echo")}, nil
		},
	}
}

// SleepType returns the sleep task type. It waits for the duration named
// by the "duration" input (string, Go syntax) and honors cancellation.
func SleepType() *task.Type {
	return &task.Type{
		Name:        "sleep",
		Description: "waits for the given duration",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			return &sleepTask{base: newBase(id, "sleep")}, nil
		},
	}
}

// base carries the bookkeeping shared by builtin tasks.
type base struct {
	id       string
	typeName string

	mu       sync.Mutex
	progress float64
	metrics  task.Metrics
}

func newBase(id, typeName string) base {
	return base{id: id, typeName: typeName}
}

func (b *base) ID() string       { return b.id }
func (b *base) TypeName() string { return b.typeName }
func (b *base) Priority() int    { return 0 }

func (b *base) Cancel(string) error { return nil }
func (b *base) Pause() error        { return nil }
func (b *base) Resume() error       { return nil }

func (b *base) Progress() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress
}

func (b *base) Metrics() task.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

func (b *base) begin() {
	b.mu.Lock()
	b.metrics.StartedAt = time.Now()
	b.metrics.Attempts++
	b.mu.Unlock()
}

func (b *base) finish(ok bool) {
	b.mu.Lock()
	b.metrics.FinishedAt = time.Now()
	b.metrics.Duration = b.metrics.FinishedAt.Sub(b.metrics.StartedAt)
	if ok {
		b.progress = 1
	}
	b.mu.Unlock()
}

type echoTask struct {
	base
}

func (t *echoTask) Execute(ctx context.Context, tc *task.Context) (any, error) {
	t.begin()
	defer t.finish(true)
	return tc.Inputs, nil
}

type sleepTask struct {
	base
}

func (t *sleepTask) Execute(ctx context.Context, tc *task.Context) (any, error) {
	t.begin()

	d, err := sleepDuration(tc.Inputs)
	if err != nil {
		t.finish(false)
		return nil, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		t.finish(true)
		return fmt.Sprintf("slept %s", d), nil
	case <-tc.Cancel.Done():
		t.finish(false)
		return nil, fmt.Errorf("sleep cancelled: %s", tc.Cancel.Reason())
	case <-ctx.Done():
		t.finish(false)
		return nil, ctx.Err()
	}
}

func sleepDuration(inputs map[string]any) (time.Duration, error) {
	raw, ok := inputs["duration"]
	if !ok {
		return 0, fmt.Errorf("sleep task requires a %q input", "duration")
	}
	switch v := raw.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parsing sleep duration %q: %w", v, err)
		}
		return d, nil
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("unsupported sleep duration type %T", raw)
	}
}
