package factory

import (
	"sync"

	"github.com/taskforge/taskforge/internal/task"
)

// LazyTask defers task materialization until the first Get call, then
// memoizes the instance locally.
type LazyTask struct {
	mu       sync.Mutex
	factory  *Factory
	typeName string
	id       string
	inputs   map[string]any
	task     task.Task
}

// Lazy returns a deferred handle for a task.
func (f *Factory) Lazy(typeName, id string, inputs map[string]any) *LazyTask {
	return &LazyTask{
		factory:  f,
		typeName: typeName,
		id:       id,
		inputs:   inputs,
	}
}

// Get materializes the task on first call and returns the memoized instance
// thereafter.
func (l *LazyTask) Get() (task.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.task != nil {
		return l.task, nil
	}
	t, err := l.factory.Create(l.typeName, l.id, l.inputs)
	if err != nil {
		return nil, err
	}
	l.task = t
	return t, nil
}

// Initialized reports whether the handle has materialized its task.
func (l *LazyTask) Initialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.task != nil
}

// Reset clears the handle's local memo. The factory-level cache is keyed
// independently, so a Get after Reset returns the same underlying instance.
func (l *LazyTask) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.task = nil
}
