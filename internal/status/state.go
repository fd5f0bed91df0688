package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/zapcrm/internal/bus"
)

// State represents a tenant session's connection state.
type State string

const (
	Disconnected State = "DISCONNECTED"
	QRPending    State = "QR_PENDING"
	Connected    State = "CONNECTED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected: {QRPending, Connected},
	QRPending:    {Connected, Disconnected},
	Connected:    {Disconnected},
}

// Machine tracks and enforces one tenant's connection state. While in
// QR_PENDING the current pairing code is held for the connection surface.
type Machine struct {
	mu       sync.RWMutex
	tenantID string
	current  State
	qr       string
	bus      *bus.Bus
}

// NewMachine creates a state machine for a tenant, starting Disconnected.
func NewMachine(tenantID string, b *bus.Bus) *Machine {
	return &Machine{
		tenantID: tenantID,
		current:  Disconnected,
		bus:      b,
	}
}

// Snapshot is the connection surface payload, also published on the bus.
type Snapshot struct {
	TenantID string `json:"tenant_id"`
	Status   State  `json:"status"`
	QR       string `json:"qr,omitempty"`
}

// Current returns the current state and, while QR_PENDING, the QR code.
func (m *Machine) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{TenantID: m.tenantID, Status: m.current, QR: m.qr}
}

// Transition attempts to move to a new state. Returns error if the
// transition is invalid. Leaving QR_PENDING clears the held code.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	if to == m.current {
		m.mu.Unlock()
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	m.current = to
	if to != QRPending {
		m.qr = ""
	}
	snap := Snapshot{TenantID: m.tenantID, Status: m.current, QR: m.qr}
	m.mu.Unlock()

	m.publish(snap)
	return nil
}

// SetQR stores a fresh pairing code and moves to QR_PENDING.
func (m *Machine) SetQR(code string) error {
	m.mu.Lock()
	if m.current != QRPending {
		if !slices.Contains(validTransitions[m.current], QRPending) {
			from := m.current
			m.mu.Unlock()
			return fmt.Errorf("invalid transition from %s to %s", from, QRPending)
		}
		m.current = QRPending
	}
	m.qr = code
	snap := Snapshot{TenantID: m.tenantID, Status: m.current, QR: m.qr}
	m.mu.Unlock()

	m.publish(snap)
	return nil
}

func (m *Machine) publish(snap Snapshot) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{
		Kind:      bus.KindConnection,
		TenantID:  m.tenantID,
		Timestamp: time.Now(),
		Payload:   snap,
	})
}
