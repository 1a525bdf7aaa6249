package postgres

import (
	"context"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/store"
)

// RecordJoin upserts the participation audit row: a rejoin reopens the
// existing record instead of duplicating it.
func (s *Store) RecordJoin(ctx context.Context, sessionID, userID string, role domain.Role, at time.Time) error {
	query := `
		INSERT INTO session_participants (session_id, user_id, role, joined_at, left_at)
		VALUES ($1, $2, $3, $4, NULL)
		ON CONFLICT (session_id, user_id) DO UPDATE
		SET role=EXCLUDED.role, joined_at=EXCLUDED.joined_at, left_at=NULL`
	_, err := s.db.Exec(ctx, query, sessionID, userID, role, at)
	return err
}

// RecordLeave stamps left_at on the open row. Zero rows affected is not an
// error: disconnects are not guaranteed to pair with a join record.
func (s *Store) RecordLeave(ctx context.Context, sessionID, userID string, at time.Time) error {
	query := `
		UPDATE session_participants SET left_at=$3
		WHERE session_id=$1 AND user_id=$2 AND left_at IS NULL`
	_, err := s.db.Exec(ctx, query, sessionID, userID, at)
	return err
}

func (s *Store) CollaborationStats(ctx context.Context, userID string) (store.Stats, error) {
	stats := make(store.Stats)

	sessionQuery := `
		SELECT s.type,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN s.status=$2 AND s.actual_start IS NOT NULL AND s.end_time IS NOT NULL
		                         THEN EXTRACT(EPOCH FROM (s.end_time - s.actual_start))
		                         ELSE 0 END), 0)
		FROM collaboration_sessions s
		WHERE ($1 = '' OR EXISTS (
			SELECT 1 FROM session_participants p
			WHERE p.session_id = s.id AND p.user_id = $1))
		GROUP BY s.type`

	rows, err := s.db.Query(ctx, sessionQuery, userID, domain.StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			typ     domain.SessionType
			count   int
			seconds float64
		)
		if err := rows.Scan(&typ, &count, &seconds); err != nil {
			return nil, err
		}
		ts := stats[typ]
		ts.Sessions = count
		ts.TotalDuration = time.Duration(seconds * float64(time.Second))
		stats[typ] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	messageQuery := `
		SELECT s.type, COUNT(*)
		FROM session_messages m
		JOIN collaboration_sessions s ON s.id = m.session_id
		WHERE ($1 = '' OR m.user_id = $1)
		GROUP BY s.type`

	mrows, err := s.db.Query(ctx, messageQuery, userID)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()

	for mrows.Next() {
		var (
			typ   domain.SessionType
			count int
		)
		if err := mrows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		ts := stats[typ]
		ts.Messages = count
		stats[typ] = ts
	}
	return stats, mrows.Err()
}
