package store

import "time"

// RecordSendAttempt registers an outbound send in 'sending' state before
// the provider is called, so a crash mid-send leaves a visible trace.
func (db *DB) RecordSendAttempt(clientSendID, tenantID, contactID, body string, author Author) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (client_send_id, tenant_id, contact_id, body, author, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'sending', ?, ?)`,
		clientSendID, tenantID, contactID, body, author, now, now)
	return err
}

// MarkSendSent records the store message id assigned to a successful send.
func (db *DB) MarkSendSent(clientSendID string, messageID int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', message_id = ?, updated_at = ? WHERE client_send_id = ?`,
		messageID, now, clientSendID)
	return err
}

// MarkSendFailed records a failed send with the provider error. The entry
// stays queryable so the operator can re-issue the send.
func (db *DB) MarkSendFailed(clientSendID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_send_id = ?`,
		errMsg, now, clientSendID)
	return err
}

// ListFailedSends returns a tenant's failed sends, oldest first.
func (db *DB) ListFailedSends(tenantID string, limit int) ([]SendAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, client_send_id, tenant_id, contact_id, body, author, status, error_message, message_id
		FROM outbox WHERE tenant_id = ? AND status = 'failed'
		ORDER BY created_at ASC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var attempts []SendAttempt
	for rows.Next() {
		var a SendAttempt
		if err := rows.Scan(&a.ID, &a.ClientSendID, &a.TenantID, &a.ContactID, &a.Body, &a.Author, &a.Status, &a.ErrorMessage, &a.MessageID); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
