package histsync

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
)

// State is the sync controller's lifecycle state.
type State string

const (
	StateIdle    State = "IDLE"
	StateSyncing State = "SYNCING"
)

var validTransitions = map[State]map[State]bool{
	StateIdle:    {StateSyncing: true},
	StateSyncing: {StateIdle: true},
}

// StateChange is the payload of sync.state_changed events.
type StateChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// Machine tracks the sync state and rejects invalid transitions. Every
// accepted transition is announced on the bus.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewMachine creates a machine in the Idle state.
func NewMachine(b *bus.Bus, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{current: StateIdle, bus: b, logger: logger}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is in the given state.
func (m *Machine) Is(s State) bool {
	return m.Current() == s
}

// Transition moves the machine to the given state, failing if the move is
// not allowed from the current state.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.current
	if !validTransitions[from][to] {
		m.mu.Unlock()
		return fmt.Errorf("invalid sync state transition %s -> %s", from, to)
	}
	m.current = to
	m.mu.Unlock()

	m.logger.Info("sync state changed",
		zap.String("from", string(from)), zap.String("to", string(to)))
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindSyncStateChanged,
			Timestamp: time.Now(),
			Payload:   StateChange{From: from, To: to},
		})
	}
	return nil
}
