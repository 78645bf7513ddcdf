package factory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/taskforge/taskforge/internal/registry"
	"github.com/taskforge/taskforge/internal/task"
)

// countingTask records constructor invocations through its parent type.
type countingTask struct {
	id       string
	typeName string
	priority int
}

func (c *countingTask) ID() string            { return c.id }
func (c *countingTask) TypeName() string      { return c.typeName }
func (c *countingTask) Priority() int         { return c.priority }
func (c *countingTask) Cancel(string) error   { return nil }
func (c *countingTask) Pause() error          { return nil }
func (c *countingTask) Resume() error         { return nil }
func (c *countingTask) Progress() float64     { return 0 }
func (c *countingTask) SetPriority(p int)     { c.priority = p }
func (c *countingTask) Metrics() task.Metrics { return task.Metrics{} }
func (c *countingTask) Execute(context.Context, *task.Context) (any, error) {
	return nil, nil
}

func setupFactory(t *testing.T) (*Factory, *int) {
	t.Helper()

	reg := registry.New()
	constructed := 0
	typ := &task.Type{
		Name:    "echo",
		Version: "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			constructed++
			return &countingTask{id: id, typeName: "echo"}, nil
		},
	}
	if err := reg.Register(typ); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return New(reg), &constructed
}

func TestCreateUnknownType(t *testing.T) {
	f := New(registry.New())

	_, err := f.Create("missing", "t1", nil)
	if !errors.Is(err, registry.ErrTypeNotFound) {
		t.Errorf("Create() error = %v, want ErrTypeNotFound", err)
	}
}

func TestCreateIdempotentPerKey(t *testing.T) {
	f, constructed := setupFactory(t)

	first, err := f.Create("echo", "t1", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := f.Create("echo", "t1", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if first != second {
		t.Error("repeated Create with identical key returned a new instance")
	}
	if *constructed != 1 {
		t.Errorf("constructor invoked %d times, want 1", *constructed)
	}
	if f.CacheSize() != 1 {
		t.Errorf("CacheSize() = %d, want 1", f.CacheSize())
	}
}

func TestCreateAllPreservesOrder(t *testing.T) {
	f, _ := setupFactory(t)

	specs := []Spec{
		{Type: "echo", ID: "c"},
		{Type: "echo", ID: "a"},
		{Type: "echo", ID: "b"},
	}
	got, err := f.CreateAll(specs)
	if err != nil {
		t.Fatalf("CreateAll() error = %v", err)
	}
	for i, want := range []string{"c", "a", "b"} {
		if got[i].ID() != want {
			t.Errorf("CreateAll()[%d].ID() = %q, want %q", i, got[i].ID(), want)
		}
	}
}

func TestGeneratorBatch(t *testing.T) {
	f, _ := setupFactory(t)

	gen := f.Generator("echo", nil)
	got, err := gen.Batch(3)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Batch(3) returned %d tasks", len(got))
	}
	for i, want := range []string{"echo-1", "echo-2", "echo-3"} {
		if got[i].ID() != want {
			t.Errorf("Batch()[%d].ID() = %q, want %q", i, got[i].ID(), want)
		}
	}
	if gen.Count() != 3 {
		t.Errorf("Count() = %d, want 3", gen.Count())
	}
}

func TestLazyTask(t *testing.T) {
	f, constructed := setupFactory(t)

	lazy := f.Lazy("echo", "t1", nil)
	if lazy.Initialized() {
		t.Error("Initialized() = true before Get")
	}

	first, err := lazy.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !lazy.Initialized() {
		t.Error("Initialized() = false after Get")
	}

	// Reset clears only the local memo; the factory cache still holds the
	// instance, so Get returns the same task without reconstructing.
	lazy.Reset()
	if lazy.Initialized() {
		t.Error("Initialized() = true after Reset")
	}
	second, err := lazy.Get()
	if err != nil {
		t.Fatalf("Get() after Reset error = %v", err)
	}
	if first != second {
		t.Error("Get() after Reset returned a different instance")
	}
	if *constructed != 1 {
		t.Errorf("constructor invoked %d times, want 1", *constructed)
	}
}

func TestBuilder(t *testing.T) {
	f, _ := setupFactory(t)

	_, err := f.Builder("echo").WithInput("k", "v").Build()
	if !errors.Is(err, ErrMissingID) {
		t.Fatalf("Build() without id error = %v, want ErrMissingID", err)
	}

	got, err := f.Builder("echo").
		WithID("t9").
		WithInputs(map[string]any{"k": "v"}).
		WithPriority(7).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got.ID() != "t9" {
		t.Errorf("built task id = %q, want t9", got.ID())
	}
	if got.Priority() != 7 {
		t.Errorf("built task priority = %d, want 7", got.Priority())
	}
}

func TestRemoveFromCacheScansByID(t *testing.T) {
	reg := registry.New()
	for _, name := range []string{"alpha", "beta"} {
		name := name
		err := reg.Register(&task.Type{
			Name: name,
			New: func(id string, inputs map[string]any) (task.Task, error) {
				return &countingTask{id: id, typeName: name}, nil
			},
		})
		if err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}
	f := New(reg)

	// Same bare id under two different types.
	if _, err := f.Create("alpha", "t1", nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.Create("beta", "t1", nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.Create("alpha", "t2", nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !f.RemoveFromCache("t1") {
		t.Error("RemoveFromCache(t1) = false, want true")
	}
	if f.CacheSize() != 1 {
		t.Errorf("CacheSize() = %d after removal, want 1", f.CacheSize())
	}
	if f.RemoveFromCache("t1") {
		t.Error("RemoveFromCache(t1) = true on second call")
	}

	remaining := f.CachedTasks()
	if len(remaining) != 1 || remaining[0].ID() != "t2" {
		t.Errorf("CachedTasks() = %v, want only t2", remaining)
	}
}

func TestTypeIntrospection(t *testing.T) {
	f, _ := setupFactory(t)

	if !f.IsSupported("echo") {
		t.Error("IsSupported(echo) = false")
	}
	if f.IsSupported("nope") {
		t.Error("IsSupported(nope) = true")
	}
	if got := f.SupportedTypes(); len(got) != 1 || got[0] != "echo" {
		t.Errorf("SupportedTypes() = %v", got)
	}
	info, ok := f.TypeInfo("echo")
	if !ok || info.Version != "1.0.0" {
		t.Errorf("TypeInfo(echo) = %+v, %v", info, ok)
	}
}

func TestConstructorErrorNotCached(t *testing.T) {
	reg := registry.New()
	fail := true
	err := reg.Register(&task.Type{
		Name: "flaky",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			if fail {
				return nil, fmt.Errorf("boom")
			}
			return &countingTask{id: id, typeName: "flaky"}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	f := New(reg)

	if _, err := f.Create("flaky", "t1", nil); err == nil {
		t.Fatal("Create() error = nil, want constructor failure")
	}
	if f.CacheSize() != 0 {
		t.Errorf("CacheSize() = %d after failed create, want 0", f.CacheSize())
	}

	fail = false
	if _, err := f.Create("flaky", "t1", nil); err != nil {
		t.Errorf("Create() after recovery error = %v", err)
	}
}
