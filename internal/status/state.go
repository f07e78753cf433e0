package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/chatnotify/internal/bus"
)

// State is the Session Registry's delivery state.
type State string

const (
	// Idle: no identity; nothing is delivered.
	Idle State = "IDLE"
	// Delivering: an identity is set and a delivery strategy is running.
	Delivering State = "DELIVERING"
	// Paused: an identity is set but delivery is stopped (disabled or failed to start).
	Paused State = "PAUSED"
)

// validTransitions defines allowed state transitions. Delivering and Paused
// may re-enter themselves when the identity changes.
var validTransitions = map[State][]State{
	Idle:       {Delivering, Paused},
	Delivering: {Delivering, Paused, Idle},
	Paused:     {Paused, Delivering, Idle},
}

// Machine tracks and enforces registry state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves to a new state, publishing session.status_changed.
// Returns an error if the transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.KindStatusChanged, StatusChange{From: from, To: to}))
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
