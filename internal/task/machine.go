package task

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidTransition is returned when the state machine rejects a status
// change. The wrapping error cites both the current and the proposed state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Machine is the directed graph of legal status transitions. It is the sole
// authority for committing a status change to a Record. The canonical graph
// can be widened or narrowed at runtime for embedder-specific lifecycles.
type Machine struct {
	mu    sync.RWMutex
	edges map[Status]map[Status]struct{}
}

// canonicalEdges is the default transition table. completed is terminal.
var canonicalEdges = map[Status][]Status{
	StatusCreated:   {StatusQueued, StatusRunning, StatusCancelled},
	StatusQueued:    {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusPaused},
	StatusPaused:    {StatusRunning, StatusCancelled},
	StatusFailed:    {StatusQueued},
	StatusCancelled: {StatusQueued},
	StatusRetrying:  {StatusQueued, StatusRunning, StatusCancelled},
	StatusCompleted: {},
}

// NewMachine creates a state machine with the canonical transition graph.
func NewMachine() *Machine {
	m := &Machine{edges: make(map[Status]map[Status]struct{}, len(canonicalEdges))}
	for from, tos := range canonicalEdges {
		set := make(map[Status]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		m.edges[from] = set
	}
	return m
}

// CanTransition reports whether from -> to is a legal edge. Unknown from
// states return false.
func (m *Machine) CanTransition(from, to Status) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tos, ok := m.edges[from]
	if !ok {
		return false
	}
	_, ok = tos[to]
	return ok
}

// AllowedTransitions returns the full set of legal targets from a state,
// sorted. Unknown states yield an empty slice.
func (m *Machine) AllowedTransitions(from Status) []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tos, ok := m.edges[from]
	if !ok {
		return []Status{}
	}
	out := make([]Status, 0, len(tos))
	for to := range tos {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Transition validates and commits a status change on the record. The from
// state is re-derived from the record's current status at commit time.
func (m *Machine) Transition(rec *Record, to Status) error {
	from := rec.Status()
	if !m.CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	rec.commit(to)
	return nil
}

// AddTransition widens the graph with a from -> to edge.
func (m *Machine) AddTransition(from, to Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tos, ok := m.edges[from]
	if !ok {
		tos = make(map[Status]struct{})
		m.edges[from] = tos
	}
	tos[to] = struct{}{}
}

// RemoveTransition narrows the graph by deleting a from -> to edge.
func (m *Machine) RemoveTransition(from, to Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tos, ok := m.edges[from]; ok {
		delete(tos, to)
	}
}

// StateGraph returns a snapshot of the full adjacency map with sorted edge
// lists. Mutating the snapshot does not affect the machine.
func (m *Machine) StateGraph() map[Status][]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	graph := make(map[Status][]Status, len(m.edges))
	for from, tos := range m.edges {
		out := make([]Status, 0, len(tos))
		for to := range tos {
			out = append(out, to)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		graph[from] = out
	}
	return graph
}
