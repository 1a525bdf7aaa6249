package postgres

import (
	"context"
	"fmt"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/store"
)

func (s *Store) SaveMessage(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO session_messages (id, session_id, user_id, type, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, query,
		m.ID, m.SessionID, m.UserID, m.Type, m.Content, metaOrEmpty(m.Metadata), m.Timestamp)
	return err
}

// ListMessages pages newest-first with a (created_at, id) keyset cursor.
func (s *Store) ListMessages(ctx context.Context, sessionID, cursor string, limit int) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const baseQuery = `
		SELECT id, session_id, user_id, type, content, metadata, created_at
		FROM session_messages
		WHERE session_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := s.db.Query(ctx, baseQuery, sessionID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Type, &m.Content, &m.Metadata, &m.Timestamp); err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := store.EncodeCursor(store.Cursor{CreatedAt: last.Timestamp, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}
