// Package fsm implements a closed-table finite state machine.
//
// The machine is intentionally split into:
//   - A closed transition table (state, event) -> state, fixed at setup time
//   - Enter/exit hooks attached per state
//
// Dispatching an event the current state has no edge for is inert: the
// machine stays where it is and reports that nothing happened. A state with
// no outgoing edges is therefore terminal by construction, not by runtime
// policing.
package fsm

import (
	"errors"
	"sync"
)

var (
	// ErrUnknownState is returned when a state name was never added.
	ErrUnknownState = errors.New("fsm: unknown state")
	// ErrInitialSet is returned by SetInitial when an initial state already exists.
	ErrInitialSet = errors.New("fsm: initial state already set")
	// ErrNoInitial is returned when an operation requires an initial state.
	ErrNoInitial = errors.New("fsm: no initial state set")
)

// Hooks are the optional enter/exit actions for a state.
//
// Hooks run while the machine's lock is held and must not call back into
// the machine.
type Hooks[S comparable] struct {
	OnEnter func(S)
	OnExit  func(S)
}

// Machine dispatches events against a closed transition table.
//
// S is the state type, E the event type. Machine is safe for concurrent use.
type Machine[S comparable, E comparable] struct {
	mu          sync.Mutex
	states      map[S]Hooks[S]
	transitions map[S]map[E]S
	current     S
	ready       bool
}

// New creates an empty machine with no states and no initial state.
func New[S comparable, E comparable]() *Machine[S, E] {
	return &Machine[S, E]{
		states:      make(map[S]Hooks[S]),
		transitions: make(map[S]map[E]S),
	}
}

// AddState registers a state and its hooks. Re-adding an existing state
// silently overwrites its hooks.
func (m *Machine[S, E]) AddState(s S, h Hooks[S]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s] = h
}

// AddTransition registers an edge. Both endpoints must already be states.
// Re-adding an edge for the same (from, ev) pair silently overwrites it.
func (m *Machine[S, E]) AddTransition(from S, ev E, to S) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[from]; !ok {
		return ErrUnknownState
	}
	if _, ok := m.states[to]; !ok {
		return ErrUnknownState
	}
	edges, ok := m.transitions[from]
	if !ok {
		edges = make(map[E]S)
		m.transitions[from] = edges
	}
	edges[ev] = to
	return nil
}

// SetInitial sets the starting state and runs its OnEnter hook. Exactly one
// initial state may be set, and it must be set before any dispatch.
func (m *Machine[S, E]) SetInitial(s S) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return ErrInitialSet
	}
	h, ok := m.states[s]
	if !ok {
		return ErrUnknownState
	}
	m.current = s
	m.ready = true
	if h.OnEnter != nil {
		h.OnEnter(s)
	}
	return nil
}

// Ready reports whether an initial state has been set.
func (m *Machine[S, E]) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Current returns the current state. Before SetInitial it returns the zero
// state.
func (m *Machine[S, E]) Current() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Dispatch delivers an event to the current state.
//
// If the current state has an edge for ev, the machine runs the old state's
// OnExit, moves, runs the new state's OnEnter, and returns (new, true).
// Otherwise the dispatch is inert and returns (current, false). Dispatch on
// a machine with no initial state is inert.
func (m *Machine[S, E]) Dispatch(ev E) (S, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		var zero S
		return zero, false
	}
	to, ok := m.transitions[m.current][ev]
	if !ok {
		return m.current, false
	}
	m.moveLocked(to)
	return to, true
}

// TransitionTo forces a transition to a named state, running hooks.
//
// An unknown state is reported as ErrUnknownState rather than silently
// ignored. A transition to the current state is an inert no-op.
func (m *Machine[S, E]) TransitionTo(s S) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrNoInitial
	}
	if _, ok := m.states[s]; !ok {
		return ErrUnknownState
	}
	if s == m.current {
		return nil
	}
	m.moveLocked(s)
	return nil
}

func (m *Machine[S, E]) moveLocked(to S) {
	if h := m.states[m.current]; h.OnExit != nil {
		h.OnExit(m.current)
	}
	m.current = to
	if h := m.states[to]; h.OnEnter != nil {
		h.OnEnter(to)
	}
}
