package factory

import (
	"fmt"

	"github.com/taskforge/taskforge/internal/task"
)

// prioritySetter is implemented by tasks that accept a priority override.
type prioritySetter interface {
	SetPriority(priority int)
}

// Builder accumulates task parameters fluently before delegating to Create.
type Builder struct {
	factory  *Factory
	typeName string
	id       string
	inputs   map[string]any
	priority int
	hasPrio  bool
}

// Builder returns a fluent builder for tasks of typeName.
func (f *Factory) Builder(typeName string) *Builder {
	return &Builder{
		factory:  f,
		typeName: typeName,
		inputs:   make(map[string]any),
	}
}

// WithID sets the task id.
func (b *Builder) WithID(id string) *Builder {
	b.id = id
	return b
}

// WithInputs merges the given inputs into the accumulated set.
func (b *Builder) WithInputs(inputs map[string]any) *Builder {
	for k, v := range inputs {
		b.inputs[k] = v
	}
	return b
}

// WithInput sets a single input key.
func (b *Builder) WithInput(key string, value any) *Builder {
	b.inputs[key] = value
	return b
}

// WithPriority overrides the task's priority, when the created instance
// supports an override.
func (b *Builder) WithPriority(priority int) *Builder {
	b.priority = priority
	b.hasPrio = true
	return b
}

// Build creates the task. An id is required.
func (b *Builder) Build() (task.Task, error) {
	if b.id == "" {
		return nil, fmt.Errorf("building task of type %q: %w", b.typeName, ErrMissingID)
	}

	t, err := b.factory.Create(b.typeName, b.id, b.inputs)
	if err != nil {
		return nil, err
	}
	if b.hasPrio {
		if ps, ok := t.(prioritySetter); ok {
			ps.SetPriority(b.priority)
		}
	}
	return t, nil
}
