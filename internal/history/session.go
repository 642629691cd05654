package history

import (
	"database/sql"
	"time"
)

// UpsertSession inserts or updates an archived session record.
func (db *DB) UpsertSession(s *Session) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO sessions (id, title, persona, response_style, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			persona = excluded.persona,
			response_style = excluded.response_style,
			updated_at = excluded.updated_at`,
		s.ID, s.Title, s.Persona, s.ResponseStyle, s.CreatedAt, now)
	return err
}

// ListSessions returns archived sessions sorted by last update descending.
func (db *DB) ListSessions(limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, title, persona, response_style, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Persona, &s.ResponseStyle, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSession returns a single archived session by id, or nil when absent.
func (db *DB) GetSession(id string) (*Session, error) {
	var s Session
	err := db.QueryRow(`
		SELECT id, title, persona, response_style, created_at, updated_at
		FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.Title, &s.Persona, &s.ResponseStyle, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession removes an archived session and its transcript.
func (db *DB) DeleteSession(id string) error {
	if _, err := db.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	_, err := db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}
