package history

import "time"

// UpsertMessage inserts or updates a message (idempotent on session_id + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (session_id, msg_id, role, body, status, confidence, source_count, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, msg_id) DO UPDATE SET
			body = excluded.body,
			status = excluded.status,
			confidence = excluded.confidence,
			source_count = excluded.source_count`,
		m.SessionID, m.MsgID, m.Role, m.Body, m.Status, m.Confidence, m.SourceCount, m.Timestamp, now)
	return err
}

// ListMessages returns archived messages for a session using keyset
// pagination by timestamp.
func (db *DB) ListMessages(sessionID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, session_id, msg_id, role, body, status, confidence, source_count, timestamp
		FROM messages
		WHERE session_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, sessionID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.MsgID, &m.Role, &m.Body, &m.Status, &m.Confidence, &m.SourceCount, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
