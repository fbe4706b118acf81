package search

import (
	"fmt"
	"sync"
)

// State is the lifecycle state of one search.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateCompleted
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateCompleted:
		return "completed"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	StateIdle:      {StateSearching},
	StateSearching: {StateCompleted, StateFallback},
}

// StateChangeFunc observes state transitions of a search.
type StateChangeFunc func(searchID string, from, to State)

// machine guards the transitions of a single search.
type machine struct {
	mu       sync.Mutex
	id       string
	state    State
	onChange StateChangeFunc
}

func newMachine(id string, onChange StateChangeFunc) *machine {
	return &machine{id: id, state: StateIdle, onChange: onChange}
}

// transition moves to next, rejecting transitions the lifecycle does not
// allow. Completed and Fallback are terminal.
func (m *machine) transition(next State) error {
	m.mu.Lock()
	from := m.state
	allowed := false
	for _, s := range transitions[from] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		m.mu.Unlock()
		return fmt.Errorf("invalid search state transition %s -> %s", from, next)
	}
	m.state = next
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(m.id, from, next)
	}
	return nil
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
