// Package manager provides the task lifecycle facade. It is the only
// component that mutates task status, always through the state machine, and
// it owns the bookkeeping of which tasks are currently executing.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/factory"
	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/registry"
	"github.com/taskforge/taskforge/internal/services"
	"github.com/taskforge/taskforge/internal/task"
)

var (
	// ErrTaskNotFound is returned when an operation names an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNotExecutable is returned when Execute is called on a task whose
	// status is neither created nor queued.
	ErrNotExecutable = errors.New("task not executable")
	// ErrNotRunning is returned when Pause is called on a task that is not
	// running.
	ErrNotRunning = errors.New("task not running")
	// ErrNotPaused is returned when Resume is called on a task that is not
	// paused.
	ErrNotPaused = errors.New("task not paused")
)

// entry is the manager's per-task bookkeeping: the status record, the inputs
// the task was created with, and the cancel token of the in-flight execution
// (nil when the task is not executing).
type entry struct {
	rec    *task.Record
	inputs map[string]any
	token  *task.CancelToken
}

// TaskManager creates, executes and tracks tasks. All map access is guarded
// by the manager mutex; status transitions for a single id are totally
// ordered under it. Execution itself runs outside the lock, so multiple
// Execute calls may be in flight concurrently against disjoint ids.
type TaskManager struct {
	mu sync.Mutex

	types    *registry.Registry
	factory  *factory.Factory
	services *services.Registry
	machine  *task.Machine

	entries map[string]*entry
	active  map[string]struct{}

	logger *logging.Logger
}

// Option configures a TaskManager.
type Option func(*TaskManager)

// WithFactory replaces the default factory.
func WithFactory(f *factory.Factory) Option {
	return func(m *TaskManager) {
		m.factory = f
	}
}

// WithServices replaces the default service registry.
func WithServices(svc *services.Registry) Option {
	return func(m *TaskManager) {
		m.services = svc
	}
}

// WithMachine replaces the canonical state machine, for embedders that
// widen or narrow transition legality.
func WithMachine(sm *task.Machine) Option {
	return func(m *TaskManager) {
		m.machine = sm
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *TaskManager) {
		m.logger = l
	}
}

// New creates a TaskManager over the given type registry.
func New(types *registry.Registry, opts ...Option) *TaskManager {
	m := &TaskManager{
		types:   types,
		entries: make(map[string]*entry),
		active:  make(map[string]struct{}),
		logger:  logging.Component("manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.factory == nil {
		m.factory = factory.New(types)
	}
	if m.services == nil {
		m.services = services.NewRegistry()
	}
	if m.machine == nil {
		m.machine = task.NewMachine()
	}
	return m
}

// Services returns the service registry injected into execution contexts.
func (m *TaskManager) Services() *services.Registry {
	return m.services
}

// CreateTask constructs a task of the named type and records it with status
// created. The returned id is unique for the lifetime of the manager: a
// millisecond timestamp plus a random suffix, so rapid sequential calls
// cannot collide.
func (m *TaskManager) CreateTask(typeName string, inputs map[string]any) (string, error) {
	id := newTaskID()

	t, err := m.factory.Create(typeName, id, inputs)
	if err != nil {
		return "", fmt.Errorf("creating task of type %q: %w", typeName, err)
	}

	m.mu.Lock()
	m.entries[id] = &entry{rec: task.NewRecord(t), inputs: inputs}
	m.mu.Unlock()

	m.logger.InfoCtx("task created", map[string]any{
		"task": id,
		"type": typeName,
	})
	return id, nil
}

// newTaskID mints a fresh task id.
func newTaskID() string {
	return fmt.Sprintf("task-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Execute runs a task to completion. The task must be in status created or
// queued. The task is part of the active set for exactly the duration of
// this call. On completion the result is returned and status becomes
// completed; on failure status becomes failed and the task's error is
// returned. A positive Config.Timeout bounds the execution context.
func (m *TaskManager) Execute(ctx context.Context, id string) (any, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	if st := e.rec.Status(); st != task.StatusCreated && st != task.StatusQueued {
		m.mu.Unlock()
		return nil, fmt.Errorf("task %q in status %s: %w", id, st, ErrNotExecutable)
	}
	if err := m.machine.Transition(e.rec, task.StatusRunning); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("task %q: %w", id, err)
	}

	t := e.rec.Task()
	cfg, _ := m.types.Config(t.TypeName())
	token := task.NewCancelToken()
	e.token = token
	m.active[id] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.active, id)
		e.token = nil
		m.mu.Unlock()
	}()

	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	tc := task.NewContext(e.inputs, cfg, m.services, token)
	result, execErr := t.Execute(runCtx, tc)

	m.mu.Lock()
	final := task.StatusCompleted
	if execErr != nil {
		final = task.StatusFailed
	}
	if err := m.machine.Transition(e.rec, final); err != nil {
		// A concurrent Cancel can win the race and commit cancelled first;
		// the earlier transition stands.
		m.logger.Debugf("task %s: keeping status %s: %v", id, e.rec.Status(), err)
	}
	m.mu.Unlock()

	if execErr != nil {
		m.logger.WarnCtx("task failed", map[string]any{
			"task":  id,
			"error": execErr.Error(),
		})
		return nil, execErr
	}

	m.logger.Infof("task %s completed", id)
	return result, nil
}

// Cancel requests cancellation of a task. The transition to cancelled is
// gated by the state machine, so tasks in a terminal state are rejected. An
// in-flight execution is signalled through its cancel token; actually
// stopping is cooperative and up to the task body.
func (m *TaskManager) Cancel(id, reason string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	if err := m.machine.Transition(e.rec, task.StatusCancelled); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("task %q: %w", id, err)
	}
	token := e.token
	t := e.rec.Task()
	delete(m.active, id)
	m.mu.Unlock()

	if token != nil {
		token.Cancel(reason)
	}
	if err := t.Cancel(reason); err != nil {
		return fmt.Errorf("cancelling task %q: %w", id, err)
	}

	m.logger.InfoCtx("task cancelled", map[string]any{
		"task":   id,
		"reason": reason,
	})
	return nil
}

// Pause suspends a running task.
func (m *TaskManager) Pause(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	if st := e.rec.Status(); st != task.StatusRunning {
		return fmt.Errorf("task %q in status %s: %w", id, st, ErrNotRunning)
	}
	if err := e.rec.Task().Pause(); err != nil {
		return fmt.Errorf("pausing task %q: %w", id, err)
	}
	return m.machine.Transition(e.rec, task.StatusPaused)
}

// Resume continues a paused task.
func (m *TaskManager) Resume(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	if st := e.rec.Status(); st != task.StatusPaused {
		return fmt.Errorf("task %q in status %s: %w", id, st, ErrNotPaused)
	}
	if err := e.rec.Task().Resume(); err != nil {
		return fmt.Errorf("resuming task %q: %w", id, err)
	}
	return m.machine.Transition(e.rec, task.StatusRunning)
}

// Queue moves a task into the queued status. Besides fresh tasks this also
// re-queues failed and cancelled ones for another run.
func (m *TaskManager) Queue(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	if err := m.machine.Transition(e.rec, task.StatusQueued); err != nil {
		return fmt.Errorf("task %q: %w", id, err)
	}
	return nil
}

// Status returns a task's current status. The second return is false for
// unknown ids.
func (m *TaskManager) Status(id string) (task.Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return "", false
	}
	return e.rec.Status(), true
}

// Active returns the sorted ids of tasks currently inside an Execute call.
func (m *TaskManager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.active))
	for id := range m.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Progress returns a task's progress, zero for unknown ids.
func (m *TaskManager) Progress(id string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return 0
	}
	return e.rec.Task().Progress()
}

// MetricsFor returns a task's metrics snapshot, zero for unknown ids.
func (m *TaskManager) MetricsFor(id string) task.Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return task.Metrics{}
	}
	return e.rec.Task().Metrics()
}

// All returns the sorted ids of every known task.
func (m *TaskManager) All() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.entries))
	for id := range m.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Get returns the task instance for an id.
func (m *TaskManager) Get(id string) (task.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.rec.Task(), true
}

// Size returns the number of known tasks.
func (m *TaskManager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Dispose cancels every active task best-effort and drops all state,
// including the service registry and the factory cache. Cancellation
// failures are logged so one bad task cannot block cleanup of the rest.
// After Dispose every query reports not-found/empty.
func (m *TaskManager) Dispose() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Cancel(id, "manager disposed"); err != nil {
			m.logger.WarnCtx("cancelling task during dispose", map[string]any{
				"task":  id,
				"error": err.Error(),
			})
		}
	}

	m.mu.Lock()
	m.entries = make(map[string]*entry)
	m.active = make(map[string]struct{})
	m.mu.Unlock()

	m.factory.ClearCache()
	m.services.Clear()

	m.logger.Info("manager disposed")
}
