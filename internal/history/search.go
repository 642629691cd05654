package history

import "strings"

const defaultSearchLimit = 50

// SearchMessages runs an FTS5 match over archived message bodies,
// optionally scoped to one session, ranked by relevance. Snippets
// mark the matched terms with << >>.
func (db *DB) SearchMessages(query, sessionID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var q strings.Builder
	q.WriteString(`
		SELECT m.id, m.session_id, m.msg_id, m.role, m.body,
		       m.status, m.confidence, m.source_count, m.timestamp,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?`)
	args := []any{query}
	if sessionID != "" {
		q.WriteString(" AND m.session_id = ?")
		args = append(args, sessionID)
	}
	q.WriteString(" ORDER BY rank LIMIT ?")
	args = append(args, limit)

	rows, err := db.Query(q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		m := &r.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.MsgID, &m.Role, &m.Body,
			&m.Status, &m.Confidence, &m.SourceCount, &m.Timestamp, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
