package postgres

import (
	"context"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateSession(ctx context.Context, cs *domain.CollaborationSession) error {
	query := `
		INSERT INTO collaboration_sessions
			(id, type, status, room_id, scheduled_start, actual_start, end_time, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.Exec(ctx, query,
		cs.ID, cs.Type, cs.Status, cs.RoomID,
		cs.ScheduledStart, cs.ActualStart, cs.EndTime, metaOrEmpty(cs.Metadata), cs.CreatedAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.CollaborationSession, error) {
	query := `
		SELECT id, type, status, room_id, scheduled_start, actual_start, end_time, metadata, created_at
		FROM collaboration_sessions WHERE id=$1`
	var cs domain.CollaborationSession
	err := s.db.QueryRow(ctx, query, id).Scan(
		&cs.ID, &cs.Type, &cs.Status, &cs.RoomID,
		&cs.ScheduledStart, &cs.ActualStart, &cs.EndTime, &cs.Metadata, &cs.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &cs, nil
}

func (s *Store) UpdateSession(ctx context.Context, cs *domain.CollaborationSession) error {
	query := `
		UPDATE collaboration_sessions
		SET status=$2, actual_start=$3, end_time=$4, metadata=$5
		WHERE id=$1`
	cmd, err := s.db.Exec(ctx, query, cs.ID, cs.Status, cs.ActualStart, cs.EndTime, metaOrEmpty(cs.Metadata))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) ListActiveSessions(ctx context.Context) ([]domain.CollaborationSession, error) {
	query := `
		SELECT id, type, status, room_id, scheduled_start, actual_start, end_time, metadata, created_at
		FROM collaboration_sessions
		WHERE status=$1
		ORDER BY created_at ASC`
	return s.querySessions(ctx, query, domain.StatusActive)
}

func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]domain.CollaborationSession, error) {
	query := `
		SELECT s.id, s.type, s.status, s.room_id, s.scheduled_start, s.actual_start, s.end_time, s.metadata, s.created_at
		FROM collaboration_sessions s
		JOIN session_participants p ON p.session_id = s.id
		WHERE p.user_id=$1
		ORDER BY s.created_at ASC`
	return s.querySessions(ctx, query, userID)
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]domain.CollaborationSession, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CollaborationSession
	for rows.Next() {
		var cs domain.CollaborationSession
		if err := rows.Scan(
			&cs.ID, &cs.Type, &cs.Status, &cs.RoomID,
			&cs.ScheduledStart, &cs.ActualStart, &cs.EndTime, &cs.Metadata, &cs.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// metaOrEmpty keeps the jsonb column NOT NULL friendly.
func metaOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
