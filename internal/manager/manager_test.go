package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/taskforge/taskforge/internal/registry"
	"github.com/taskforge/taskforge/internal/task"
)

// echoTask returns its inputs unchanged.
type echoTask struct {
	id string
}

func (t *echoTask) ID() string       { return t.id }
func (t *echoTask) TypeName() string { return "echo" }
func (t *echoTask) Priority() int    { return 0 }

func (t *echoTask) Execute(ctx context.Context, tc *task.Context) (any, error) {
	return tc.Inputs, nil
}

func (t *echoTask) Cancel(string) error   { return nil }
func (t *echoTask) Pause() error          { return nil }
func (t *echoTask) Resume() error         { return nil }
func (t *echoTask) Progress() float64     { return 1 }
func (t *echoTask) Metrics() task.Metrics { return task.Metrics{Attempts: 1} }

// failTask always fails with a fixed error.
type failTask struct {
	id  string
	err error
}

func (t *failTask) ID() string       { return t.id }
func (t *failTask) TypeName() string { return "fail" }
func (t *failTask) Priority() int    { return 0 }

func (t *failTask) Execute(ctx context.Context, tc *task.Context) (any, error) {
	return nil, t.err
}

func (t *failTask) Cancel(string) error   { return nil }
func (t *failTask) Pause() error          { return nil }
func (t *failTask) Resume() error         { return nil }
func (t *failTask) Progress() float64     { return 0 }
func (t *failTask) Metrics() task.Metrics { return task.Metrics{} }

// blockTask signals that it started, then blocks until released, the cancel
// token fires, or the context expires.
type blockTask struct {
	id      string
	started chan struct{}
	release chan struct{}
}

func newBlockTask(id string) *blockTask {
	return &blockTask{
		id:      id,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (t *blockTask) ID() string       { return t.id }
func (t *blockTask) TypeName() string { return "block" }
func (t *blockTask) Priority() int    { return 0 }

func (t *blockTask) Execute(ctx context.Context, tc *task.Context) (any, error) {
	close(t.started)
	select {
	case <-t.release:
		return "released", nil
	case <-tc.Cancel.Done():
		return nil, fmt.Errorf("cancelled: %s", tc.Cancel.Reason())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *blockTask) Cancel(string) error   { return nil }
func (t *blockTask) Pause() error          { return nil }
func (t *blockTask) Resume() error         { return nil }
func (t *blockTask) Progress() float64     { return 0.5 }
func (t *blockTask) Metrics() task.Metrics { return task.Metrics{} }

func newTestManager(t *testing.T, extra ...*task.Type) *TaskManager {
	t.Helper()

	types := registry.New()
	echoType := &task.Type{
		Name:        "echo",
		Description: "returns its inputs",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			return &echoTask{id: id}, nil
		},
	}
	if err := types.Register(echoType); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, typ := range extra {
		if err := types.Register(typ); err != nil {
			t.Fatalf("Register %s: %v", typ.Name, err)
		}
	}
	return New(types)
}

func TestCreateTask(t *testing.T) {
	m := newTestManager(t)

	id, err := m.CreateTask("echo", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if id == "" {
		t.Fatal("CreateTask returned empty id")
	}

	st, ok := m.Status(id)
	if !ok || st != task.StatusCreated {
		t.Errorf("Status(%s) = %s, %v, want created, true", id, st, ok)
	}
}

func TestCreateTaskUniqueIDs(t *testing.T) {
	m := newTestManager(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := m.CreateTask("echo", nil)
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestCreateTaskUnknownType(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.CreateTask("mystery", nil); !errors.Is(err, registry.ErrTypeNotFound) {
		t.Fatalf("CreateTask = %v, want ErrTypeNotFound", err)
	}
}

func TestExecuteEcho(t *testing.T) {
	m := newTestManager(t)

	id, err := m.CreateTask("echo", map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	result, err := m.Execute(context.Background(), id)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	inputs, ok := result.(map[string]any)
	if !ok || inputs["msg"] != "hi" {
		t.Errorf("result = %v", result)
	}

	if st, _ := m.Status(id); st != task.StatusCompleted {
		t.Errorf("status = %s, want completed", st)
	}

	// Completed tasks are not executable again.
	if _, err := m.Execute(context.Background(), id); !errors.Is(err, ErrNotExecutable) {
		t.Fatalf("second Execute = %v, want ErrNotExecutable", err)
	}
}

func TestExecuteUnknownID(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Execute(context.Background(), "task-ghost")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("Execute = %v, want ErrTaskNotFound", err)
	}
	if !strings.Contains(err.Error(), "task-ghost") {
		t.Errorf("error %q does not name the id", err)
	}
}

func TestExecuteFailure(t *testing.T) {
	boom := errors.New("boom")
	failType := &task.Type{
		Name:        "fail",
		Description: "always fails",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			return &failTask{id: id, err: boom}, nil
		},
	}
	m := newTestManager(t, failType)

	id, err := m.CreateTask("fail", nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// The task's own error comes back, not a replacement.
	if _, err := m.Execute(context.Background(), id); !errors.Is(err, boom) {
		t.Fatalf("Execute = %v, want the task's error", err)
	}
	if st, _ := m.Status(id); st != task.StatusFailed {
		t.Errorf("status = %s, want failed", st)
	}
	if _, err := m.Execute(context.Background(), id); !errors.Is(err, ErrNotExecutable) {
		t.Fatalf("Execute after failure = %v, want ErrNotExecutable", err)
	}
}

func TestQueueRetryAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	failType := &task.Type{
		Name:        "fail",
		Description: "always fails",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			return &failTask{id: id, err: boom}, nil
		},
	}
	m := newTestManager(t, failType)

	id, _ := m.CreateTask("fail", nil)
	_, _ = m.Execute(context.Background(), id)

	if err := m.Queue(id); err != nil {
		t.Fatalf("Queue after failure: %v", err)
	}
	if st, _ := m.Status(id); st != task.StatusQueued {
		t.Errorf("status = %s, want queued", st)
	}
	// Queued tasks are executable again.
	if _, err := m.Execute(context.Background(), id); !errors.Is(err, boom) {
		t.Fatalf("re-Execute = %v, want the task's error", err)
	}
}

func TestActiveSetTracksExecution(t *testing.T) {
	bt := newBlockTask("")
	blockType := &task.Type{
		Name:        "block",
		Description: "blocks until released",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			bt.id = id
			return bt, nil
		},
	}
	m := newTestManager(t, blockType)

	id, err := m.CreateTask("block", nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if got := m.Active(); len(got) != 0 {
		t.Fatalf("Active() = %v before execute, want empty", got)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Execute(context.Background(), id)
	}()

	<-bt.started
	if got := m.Active(); len(got) != 1 || got[0] != id {
		t.Errorf("Active() = %v during execute, want [%s]", got, id)
	}
	if st, _ := m.Status(id); st != task.StatusRunning {
		t.Errorf("status = %s during execute, want running", st)
	}

	close(bt.release)
	<-done

	if got := m.Active(); len(got) != 0 {
		t.Errorf("Active() = %v after execute, want empty", got)
	}
	if st, _ := m.Status(id); st != task.StatusCompleted {
		t.Errorf("status = %s after execute, want completed", st)
	}
}

func TestCancelRunningTask(t *testing.T) {
	bt := newBlockTask("")
	blockType := &task.Type{
		Name:        "block",
		Description: "blocks until released",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			bt.id = id
			return bt, nil
		},
	}
	m := newTestManager(t, blockType)

	id, _ := m.CreateTask("block", nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Execute(context.Background(), id)
		done <- err
	}()

	<-bt.started
	if err := m.Cancel(id, "operator request"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	execErr := <-done
	if execErr == nil || !strings.Contains(execErr.Error(), "operator request") {
		t.Errorf("Execute after cancel = %v, want error carrying the reason", execErr)
	}
	if st, _ := m.Status(id); st != task.StatusCancelled {
		t.Errorf("status = %s, want cancelled", st)
	}
	if got := m.Active(); len(got) != 0 {
		t.Errorf("Active() = %v after cancel, want empty", got)
	}
}

func TestCancelCompletedTaskRejected(t *testing.T) {
	m := newTestManager(t)

	id, _ := m.CreateTask("echo", nil)
	if _, err := m.Execute(context.Background(), id); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Terminal states refuse cancellation.
	if err := m.Cancel(id, ""); !errors.Is(err, task.ErrInvalidTransition) {
		t.Fatalf("Cancel = %v, want ErrInvalidTransition", err)
	}
	if st, _ := m.Status(id); st != task.StatusCompleted {
		t.Errorf("status = %s, want completed unchanged", st)
	}
}

func TestCancelUnknownID(t *testing.T) {
	m := newTestManager(t)

	if err := m.Cancel("task-ghost", ""); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("Cancel = %v, want ErrTaskNotFound", err)
	}
}

func TestPauseResume(t *testing.T) {
	bt := newBlockTask("")
	blockType := &task.Type{
		Name:        "block",
		Description: "blocks until released",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			bt.id = id
			return bt, nil
		},
	}
	m := newTestManager(t, blockType)

	id, _ := m.CreateTask("block", nil)

	// Pause before execution is a precondition failure.
	if err := m.Pause(id); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Pause on created = %v, want ErrNotRunning", err)
	}
	if err := m.Resume(id); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("Resume on created = %v, want ErrNotPaused", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Execute(context.Background(), id)
	}()
	<-bt.started

	if err := m.Pause(id); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if st, _ := m.Status(id); st != task.StatusPaused {
		t.Errorf("status = %s, want paused", st)
	}
	if err := m.Pause(id); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second Pause = %v, want ErrNotRunning", err)
	}

	if err := m.Resume(id); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st, _ := m.Status(id); st != task.StatusRunning {
		t.Errorf("status = %s, want running", st)
	}

	close(bt.release)
	<-done
}

func TestExecuteTimeout(t *testing.T) {
	bt := newBlockTask("")
	blockType := &task.Type{
		Name:        "block",
		Description: "blocks until released",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			bt.id = id
			return bt, nil
		},
	}
	types := registry.New()
	if err := types.Register(blockType); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := types.RegisterConfig("block", task.Config{Timeout: 20 * time.Millisecond}); err != nil {
		t.Fatalf("RegisterConfig: %v", err)
	}
	m := New(types)

	id, _ := m.CreateTask("block", nil)
	_, err := m.Execute(context.Background(), id)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Execute = %v, want DeadlineExceeded", err)
	}
	if st, _ := m.Status(id); st != task.StatusFailed {
		t.Errorf("status = %s, want failed", st)
	}
}

func TestQueries(t *testing.T) {
	m := newTestManager(t)

	id, _ := m.CreateTask("echo", nil)

	if got := m.All(); len(got) != 1 || got[0] != id {
		t.Errorf("All() = %v, want [%s]", got, id)
	}
	if m.Size() != 1 {
		t.Errorf("Size() = %d, want 1", m.Size())
	}
	if tsk, ok := m.Get(id); !ok || tsk.ID() != id {
		t.Errorf("Get(%s) = %v, %v", id, tsk, ok)
	}
	if p := m.Progress(id); p != 1 {
		t.Errorf("Progress(%s) = %v, want 1", id, p)
	}
	if mt := m.MetricsFor(id); mt.Attempts != 1 {
		t.Errorf("MetricsFor(%s) = %+v", id, mt)
	}

	// Unknown ids yield zero values, not errors.
	if _, ok := m.Status("task-ghost"); ok {
		t.Error("Status of unknown id reported ok")
	}
	if _, ok := m.Get("task-ghost"); ok {
		t.Error("Get of unknown id reported ok")
	}
	if p := m.Progress("task-ghost"); p != 0 {
		t.Errorf("Progress of unknown id = %v", p)
	}
}

func TestDispose(t *testing.T) {
	m := newTestManager(t)
	if err := m.Services().Register("logger", struct{}{}); err != nil {
		t.Fatalf("Register service: %v", err)
	}

	id, _ := m.CreateTask("echo", nil)
	m.Dispose()

	if _, ok := m.Status(id); ok {
		t.Error("Status after Dispose reported a known task")
	}
	if got := m.Active(); len(got) != 0 {
		t.Errorf("Active() = %v after Dispose, want empty", got)
	}
	if m.Size() != 0 {
		t.Errorf("Size() = %d after Dispose, want 0", m.Size())
	}
	if m.Services().Size() != 0 {
		t.Errorf("services survived Dispose")
	}
}

func TestDisposeCancelsActiveTasks(t *testing.T) {
	bt := newBlockTask("")
	blockType := &task.Type{
		Name:        "block",
		Description: "blocks until released",
		Version:     "1.0.0",
		New: func(id string, inputs map[string]any) (task.Task, error) {
			bt.id = id
			return bt, nil
		},
	}
	m := newTestManager(t, blockType)

	id, _ := m.CreateTask("block", nil)
	done := make(chan error, 1)
	go func() {
		_, err := m.Execute(context.Background(), id)
		done <- err
	}()
	<-bt.started

	m.Dispose()

	if err := <-done; err == nil {
		t.Error("blocked task finished without error after Dispose")
	}
	if m.Size() != 0 {
		t.Errorf("Size() = %d after Dispose, want 0", m.Size())
	}
}
