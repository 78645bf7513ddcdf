package factory

import (
	"fmt"
	"sync"

	"github.com/taskforge/taskforge/internal/task"
)

// Generator mints a sequence of tasks of one type, deriving ids by appending
// an incrementing counter to the type name ("<type>-1", "<type>-2", ...).
type Generator struct {
	mu       sync.Mutex
	factory  *Factory
	typeName string
	inputs   map[string]any
	counter  int
}

// Generator returns a stateful sequence generator for typeName. The inputs
// are shared by every generated task.
func (f *Factory) Generator(typeName string, inputs map[string]any) *Generator {
	return &Generator{
		factory:  f,
		typeName: typeName,
		inputs:   inputs,
	}
}

// Next mints the next task in the sequence.
func (g *Generator) Next() (task.Task, error) {
	g.mu.Lock()
	g.counter++
	id := fmt.Sprintf("%s-%d", g.typeName, g.counter)
	g.mu.Unlock()

	return g.factory.Create(g.typeName, id, g.inputs)
}

// Batch mints n tasks in one call, in sequence order.
func (g *Generator) Batch(n int) ([]task.Task, error) {
	out := make([]task.Task, 0, n)
	for i := 0; i < n; i++ {
		t, err := g.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Count returns how many tasks the generator has minted.
func (g *Generator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counter
}
