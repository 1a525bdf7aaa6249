package store

import (
	"context"
	"errors"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
)

// TypeStats aggregates collaboration activity for one session type.
type TypeStats struct {
	Sessions      int           `json:"sessions"`
	Messages      int           `json:"messages"`
	TotalDuration time.Duration `json:"totalDuration"`
}

type Stats map[domain.SessionType]TypeStats

// Store is the persistence port for sessions, participation audit rows and
/// messages. Two implementations exist: the pgx-backed durable store and the
// in-memory fallback; Failover selects between them with a liveness probe.
type Store interface {
	CreateSession(ctx context.Context, s *domain.CollaborationSession) error
	GetSession(ctx context.Context, id string) (*domain.CollaborationSession, error)
	// UpdateSession rewrites the mutable fields (status, actual_start,
	// end_time, metadata) of an existing session.
	UpdateSession(ctx context.Context, s *domain.CollaborationSession) error
	ListActiveSessions(ctx context.Context) ([]domain.CollaborationSession, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]domain.CollaborationSession, error)

	SaveMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, sessionID, cursor string, limit int) ([]domain.Message, string, error)

	// RecordJoin / RecordLeave keep the participation audit trail; live
	// membership itself is owned by the presence tracker.
	RecordJoin(ctx context.Context, sessionID, userID string, role domain.Role, at time.Time) error
	RecordLeave(ctx context.Context, sessionID, userID string, at time.Time) error

	// CollaborationStats aggregates counts and durations by session type,
	// scoped to one user when userID is non-empty.
	CollaborationStats(ctx context.Context, userID string) (Stats, error)

	Ping(ctx context.Context) error
	Close()
}

// IsUnavailable reports whether err looks like a store-connectivity failure
// rather than a domain outcome. Domain sentinels and caller cancellation
// pass through the failover untouched.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, ErrInvalidCursor) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
