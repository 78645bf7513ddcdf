// Package scheduler runs tasks on cron schedules. Each entry names a task
// type; on every tick a fresh task of that type is created and executed
// through the manager, so scheduled runs go through the same lifecycle as
// ad-hoc ones.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/manager"
)

// ErrEntryNotFound is returned when an operation names an unknown entry.
var ErrEntryNotFound = errors.New("schedule entry not found")

// Entry describes one recurring task schedule.
type Entry struct {
	Name     string
	Spec     string
	TypeName string
	Inputs   map[string]any
}

// Scheduler owns the cron runner and its entries.
type Scheduler struct {
	mu sync.Mutex

	manager *manager.TaskManager
	cron    *cron.Cron
	entries map[string]cron.EntryID
	specs   map[string]Entry

	logger *logging.Logger
}

// New creates a scheduler over the given task manager.
func New(tm *manager.TaskManager) *Scheduler {
	return &Scheduler{
		manager: tm,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]Entry),
		logger:  logging.Component("scheduler"),
	}
}

// Add registers a recurring schedule. An entry with the same name replaces
// the previous one. The spec uses standard five-field cron syntax.
func (s *Scheduler) Add(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(e.Spec, func() { s.fire(e) })
	if err != nil {
		return fmt.Errorf("schedule %q: parsing cron spec %q: %w", e.Name, e.Spec, err)
	}
	if old, ok := s.entries[e.Name]; ok {
		s.cron.Remove(old)
	}
	s.entries[e.Name] = id
	s.specs[e.Name] = e

	s.logger.InfoCtx("schedule added", map[string]any{
		"schedule": e.Name,
		"spec":     e.Spec,
		"type":     e.TypeName,
	})
	return nil
}

// fire creates and executes one task for a schedule tick.
func (s *Scheduler) fire(e Entry) {
	id, err := s.manager.CreateTask(e.TypeName, e.Inputs)
	if err != nil {
		s.logger.ErrorCtx("creating scheduled task", map[string]any{
			"schedule": e.Name,
			"error":    err.Error(),
		})
		return
	}
	if _, err := s.manager.Execute(context.Background(), id); err != nil {
		s.logger.WarnCtx("scheduled task failed", map[string]any{
			"schedule": e.Name,
			"task":     id,
			"error":    err.Error(),
		})
		return
	}
	s.logger.Debugf("schedule %s: task %s completed", e.Name, id)
}

// Remove drops a schedule by name.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("schedule %q: %w", name, ErrEntryNotFound)
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	delete(s.specs, name)
	return nil
}

// Entries returns the registered schedules sorted by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.specs))
	for _, e := range s.specs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins firing schedules in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
