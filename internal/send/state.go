package send

import (
	"fmt"
	"slices"
	"sync"
)

// State represents the lifecycle of a single send operation.
type State string

const (
	Idle                State = "IDLE"
	UserInserted        State = "USER_INSERTED"
	PlaceholderInserted State = "PLACEHOLDER_INSERTED"
	Streaming           State = "STREAMING"
	Completed           State = "COMPLETED"
	Errored             State = "ERRORED"
	FallbackCompleted   State = "FALLBACK_COMPLETED"
)

// validTransitions defines allowed state transitions. Completed, Errored
// and FallbackCompleted are terminal.
var validTransitions = map[State][]State{
	Idle:                {UserInserted, Errored},
	UserInserted:        {PlaceholderInserted},
	PlaceholderInserted: {Streaming, Errored},
	Streaming:           {Completed, Errored, FallbackCompleted},
}

// Machine tracks and enforces the state of one send operation.
type Machine struct {
	mu      sync.Mutex
	current State
}

// NewMachine creates a send state machine starting in Idle.
func NewMachine() *Machine {
	return &Machine{current: Idle}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	m.current = to
	return nil
}
