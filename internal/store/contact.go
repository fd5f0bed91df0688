package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EnsureContact creates a contact on first sight (stage NEW) or updates
// its name and unresolved flag if it already exists. Empty names never
// overwrite a known name.
func (db *DB) EnsureContact(c *Contact) error {
	now := time.Now().UnixMilli()
	stage := c.Stage
	if stage == "" {
		stage = StageNew
	}
	_, err := db.Exec(`
		INSERT INTO contacts (tenant_id, contact_id, name, unresolved, stage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, contact_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			unresolved = excluded.unresolved,
			updated_at = excluded.updated_at`,
		c.TenantID, c.ContactID, c.Name, c.Unresolved, stage, now, now)
	return err
}

// TouchContact records a new last message on the contact, bumping the
// unread counter when asked (inbound messages only; the viewer-side reset
// happens via ResetUnread when the conversation is opened).
func (db *DB) TouchContact(tenantID, contactID string, lastMessageAt int64, preview string, bumpUnread bool) error {
	now := time.Now().UnixMilli()
	bump := 0
	if bumpUnread {
		bump = 1
	}
	_, err := db.Exec(`
		UPDATE contacts SET
			unread_count = unread_count + ?,
			last_message_at = MAX(last_message_at, ?),
			last_message_preview = CASE WHEN ? >= last_message_at THEN ? ELSE last_message_preview END,
			updated_at = ?
		WHERE tenant_id = ? AND contact_id = ?`,
		bump, lastMessageAt, lastMessageAt, preview, now, tenantID, contactID)
	return err
}

// ResetUnread zeroes the unread counter for a contact.
func (db *DB) ResetUnread(tenantID, contactID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE contacts SET unread_count = 0, updated_at = ?
		WHERE tenant_id = ? AND contact_id = ?`, now, tenantID, contactID)
	return err
}

// SetStage moves a lead through the pipeline, enforcing forward-only
// transitions with ARCHIVED as a terminal stage reachable from anywhere.
func (db *DB) SetStage(tenantID, contactID string, next Stage) error {
	c, err := db.GetContact(tenantID, contactID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("set stage: contact %s/%s not found", tenantID, contactID)
	}
	if !c.Stage.CanTransition(next) {
		return fmt.Errorf("set stage: invalid transition %s -> %s", c.Stage, next)
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		UPDATE contacts SET stage = ?, updated_at = ?
		WHERE tenant_id = ? AND contact_id = ?`, next, now, tenantID, contactID)
	return err
}

// GetContact returns a contact, or nil if unknown.
func (db *DB) GetContact(tenantID, contactID string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`
		SELECT tenant_id, contact_id, name, unresolved, stage, unread_count, last_message_at, last_message_preview
		FROM contacts WHERE tenant_id = ? AND contact_id = ?`, tenantID, contactID).
		Scan(&c.TenantID, &c.ContactID, &c.Name, &c.Unresolved, &c.Stage, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns a tenant's contacts sorted by last message time
// descending. Contacts without a name fall back to their contact id.
func (db *DB) ListContacts(tenantID string, limit, offset int) ([]Contact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT tenant_id, contact_id,
			COALESCE(NULLIF(name, ''), contact_id) AS display_name,
			unresolved, stage, unread_count, last_message_at, last_message_preview
		FROM contacts
		WHERE tenant_id = ?
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.TenantID, &c.ContactID, &c.Name, &c.Unresolved, &c.Stage, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// ContactCount returns the number of contacts for a tenant.
func (db *DB) ContactCount(tenantID string) (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts WHERE tenant_id = ?`, tenantID).Scan(&count)
	return count, err
}
