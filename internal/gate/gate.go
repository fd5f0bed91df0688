// Package gate holds the per-tenant automation pause flag. It is injected
// into the responder's decision path as a handle value, never ambient
// process-global state.
package gate

import (
	"fmt"
	"sync"

	"github.com/matheus3301/zapcrm/internal/store"
)

// Gate is the per-tenant automation switch. Reads hit an in-memory map;
// writes go through to the tenants table so the flag survives restarts.
//
// The responder reads the flag immediately before deciding to reply. One
// stray automated reply right at the toggle boundary is a documented
// tolerance: pausing guarantees no new automated response starts after the
// write returns, without retroactively cancelling one already in flight.
type Gate struct {
	db *store.DB

	mu     sync.RWMutex
	paused map[string]bool
}

// New creates a gate with every configured tenant loaded from the store.
func New(db *store.DB) (*Gate, error) {
	g := &Gate{db: db, paused: make(map[string]bool)}
	tenants, err := db.ListTenants()
	if err != nil {
		return nil, fmt.Errorf("load tenants: %w", err)
	}
	for _, t := range tenants {
		g.paused[t.ID] = t.AutomationPaused
	}
	return g, nil
}

// SetPaused flips the flag for every contact of the tenant at once.
func (g *Gate) SetPaused(tenantID string, paused bool) error {
	if err := g.db.SetAutomationPaused(tenantID, paused); err != nil {
		return fmt.Errorf("persist automation flag: %w", err)
	}
	g.mu.Lock()
	g.paused[tenantID] = paused
	g.mu.Unlock()
	return nil
}

// IsPaused reports whether automation is paused for the tenant.
// Unknown tenants default to unpaused.
func (g *Gate) IsPaused(tenantID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused[tenantID]
}
