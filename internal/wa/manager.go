package wa

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/home"
	"github.com/matheus3301/zapcrm/internal/status"
	"go.uber.org/zap"
)

// Manager owns one Adapter and one connection state machine per tenant.
// Adapters are created lazily on the first Connect so a tenant that never
// links a device never opens a session store.
type Manager struct {
	baseDir string
	bus     *bus.Bus
	logger  *zap.Logger

	mu       sync.Mutex
	adapters map[string]*Adapter
	machines map[string]*status.Machine
}

// NewManager creates a manager for the configured tenants. Every tenant
// gets a state machine immediately so connection snapshots are always
// answerable.
func NewManager(baseDir string, tenantIDs []string, b *bus.Bus, logger *zap.Logger) *Manager {
	m := &Manager{
		baseDir:  baseDir,
		bus:      b,
		logger:   logger,
		adapters: make(map[string]*Adapter),
		machines: make(map[string]*status.Machine),
	}
	for _, id := range tenantIDs {
		m.machines[id] = status.NewMachine(id, b)
	}
	return m
}

// Machine returns the connection state machine for a tenant.
func (m *Manager) Machine(tenantID string) (*status.Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	machine, ok := m.machines[tenantID]
	if !ok {
		return nil, fmt.Errorf("unknown tenant %q", tenantID)
	}
	return machine, nil
}

// Get returns the tenant's adapter, creating it if needed.
func (m *Manager) Get(ctx context.Context, tenantID string) (*Adapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(ctx, tenantID)
}

func (m *Manager) getLocked(ctx context.Context, tenantID string) (*Adapter, error) {
	machine, ok := m.machines[tenantID]
	if !ok {
		return nil, fmt.Errorf("unknown tenant %q", tenantID)
	}
	if a, ok := m.adapters[tenantID]; ok {
		return a, nil
	}
	if err := home.EnsureDirs(m.baseDir, []string{tenantID}); err != nil {
		return nil, err
	}
	a, err := NewAdapter(ctx, tenantID, home.SessionDBPath(m.baseDir, tenantID), m.bus, machine, m.logger)
	if err != nil {
		return nil, err
	}
	m.adapters[tenantID] = a
	return a, nil
}

// Connect establishes or resumes a tenant's session.
func (m *Manager) Connect(ctx context.Context, tenantID string) (status.Snapshot, error) {
	m.mu.Lock()
	a, err := m.getLocked(ctx, tenantID)
	m.mu.Unlock()
	if err != nil {
		return status.Snapshot{}, err
	}
	return a.Connect(ctx)
}

// SendText sends a text message through a tenant's session and returns
// the provider message id.
func (m *Manager) SendText(ctx context.Context, tenantID, contactID, body string) (string, error) {
	m.mu.Lock()
	a, ok := m.adapters[tenantID]
	m.mu.Unlock()
	if !ok {
		if _, err := m.Machine(tenantID); err != nil {
			return "", err
		}
		return "", ErrNotConnected
	}
	return a.SendText(ctx, contactID, body)
}

// Snapshot reports a tenant's current connection state.
func (m *Manager) Snapshot(tenantID string) (status.Snapshot, error) {
	machine, err := m.Machine(tenantID)
	if err != nil {
		return status.Snapshot{}, err
	}
	return machine.Current(), nil
}

// DisconnectAll tears down every live session, for daemon shutdown.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.adapters {
		a.Disconnect()
	}
}
