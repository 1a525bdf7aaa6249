package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the durable implementation of the persistence port. Session,
// message and participation methods live in their respective *_repo.go
// files.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// InitSchema creates the collaboration tables when they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collaboration_sessions (
			id UUID PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			room_id UUID NOT NULL UNIQUE,
			scheduled_start TIMESTAMPTZ NULL,
			actual_start TIMESTAMPTZ NULL,
			end_time TIMESTAMPTZ NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_collab_sessions_status ON collaboration_sessions (status);`,
		`CREATE TABLE IF NOT EXISTS session_participants (
			session_id UUID NOT NULL REFERENCES collaboration_sessions(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL,
			left_at TIMESTAMPTZ NULL,
			PRIMARY KEY (session_id, user_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_participants_user ON session_participants (user_id);`,
		`CREATE TABLE IF NOT EXISTS session_messages (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES collaboration_sessions(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_messages_session_created ON session_messages (session_id, created_at DESC, id DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ping(ctx, s.db)
}

func (s *Store) Close() {
	s.db.Close()
}
