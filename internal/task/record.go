package task

import (
	"sync"
	"time"
)

// Record pairs a task instance with its manager-owned lifecycle state.
// The status field is unexported: it is committed only by Machine.Transition,
// so no caller can bypass the legality check. The very first assignment
// (created) happens at construction.
type Record struct {
	mu        sync.RWMutex
	task      Task
	status    Status
	createdAt time.Time
	updatedAt time.Time
}

// NewRecord wraps a freshly constructed task with status created.
func NewRecord(t Task) *Record {
	now := time.Now()
	return &Record{
		task:      t,
		status:    StatusCreated,
		createdAt: now,
		updatedAt: now,
	}
}

// Task returns the underlying task instance.
func (r *Record) Task() Task {
	return r.task
}

// Status returns the current status.
func (r *Record) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// CreatedAt returns the creation timestamp.
func (r *Record) CreatedAt() time.Time {
	return r.createdAt
}

// UpdatedAt returns the time of the last status change.
func (r *Record) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}

// commit sets the status and refreshes the update timestamp. Called only by
// Machine.Transition after the edge has been validated.
func (r *Record) commit(to Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = to
	r.updatedAt = time.Now()
}
