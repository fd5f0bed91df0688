package store

import (
	"database/sql"
	"time"
)

// EnsureTenant creates a tenant row if missing. automationPaused defaults
// to false and is only ever changed by explicit operator action.
func (db *DB) EnsureTenant(id, name string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO tenants (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE tenants.name END,
			updated_at = excluded.updated_at`,
		id, name, now, now)
	return err
}

// GetTenant returns a tenant, or nil if unknown.
func (db *DB) GetTenant(id string) (*Tenant, error) {
	var t Tenant
	err := db.QueryRow(`SELECT id, name, automation_paused FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.AutomationPaused)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetAutomationPaused persists the per-tenant automation pause flag.
func (db *DB) SetAutomationPaused(id string, paused bool) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE tenants SET automation_paused = ?, updated_at = ? WHERE id = ?`, paused, now, id)
	return err
}

// ListTenants returns all tenants.
func (db *DB) ListTenants() ([]Tenant, error) {
	rows, err := db.Query(`SELECT id, name, automation_paused FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.AutomationPaused); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
