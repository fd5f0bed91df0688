package store

import (
	"fmt"
	"time"
)

// AppendMessage persists a message exactly once per (tenant, provider msg
// id). The returned id is store-assigned and monotonic within the tenant;
// it is the ordering tiebreaker for same-millisecond messages. When the
// provider msg id was already appended, the existing row's id is returned
// with created=false and nothing is written; duplicates from the live
// echo and a concurrent history query collapse here.
func (db *DB) AppendMessage(m *Message) (id int64, created bool, err error) {
	if m.TenantID == "" || m.ContactID == "" || m.ProviderMsgID == "" {
		return 0, false, fmt.Errorf("append message: tenant, contact and provider msg id are required")
	}
	createdAt := m.CreatedAt
	if createdAt <= 0 {
		createdAt = time.Now().UnixMilli()
	}

	res, err := db.Exec(`
		INSERT INTO messages (tenant_id, contact_id, provider_msg_id, direction, author, body, delivery_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, provider_msg_id) DO NOTHING`,
		m.TenantID, m.ContactID, m.ProviderMsgID, m.Direction, m.Author, m.Body, m.DeliveryState, createdAt)
	if err != nil {
		return 0, false, fmt.Errorf("append message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 1 {
		id, err = res.LastInsertId()
		if err != nil {
			return 0, false, err
		}
		m.ID = id
		m.CreatedAt = createdAt
		return id, true, nil
	}

	// Duplicate append: the first writer's row wins.
	err = db.QueryRow(`
		SELECT id, created_at FROM messages WHERE tenant_id = ? AND provider_msg_id = ?`,
		m.TenantID, m.ProviderMsgID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return 0, false, fmt.Errorf("lookup duplicate message: %w", err)
	}
	return m.ID, false, nil
}

// ListMessages returns a contact's messages ordered by (created_at, id)
// ascending. sinceID is an exclusive cursor on the store id; pass 0 to
// start from the beginning. The result is finite and restartable: resume
// by passing the last returned id.
func (db *DB) ListMessages(tenantID, contactID string, sinceID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT id, tenant_id, contact_id, provider_msg_id, direction, author, body, delivery_state, created_at
		FROM messages
		WHERE tenant_id = ? AND contact_id = ? AND id > ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, tenantID, contactID, sinceID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ContactID, &m.ProviderMsgID, &m.Direction, &m.Author, &m.Body, &m.DeliveryState, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MessageCount returns the number of messages for a tenant.
func (db *DB) MessageCount(tenantID string) (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE tenant_id = ?`, tenantID).Scan(&count)
	return count, err
}
