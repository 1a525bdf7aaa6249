package domain

import "time"

type SessionType string

const (
	TypeLiveTutoring SessionType = "live_tutoring"
	TypePeerLearning SessionType = "peer_learning"
	TypeGroupStudy   SessionType = "group_study"
)

func ParseSessionType(s string) (SessionType, error) {
	switch SessionType(s) {
	case TypeLiveTutoring, TypePeerLearning, TypeGroupStudy:
		return SessionType(s), nil
	}
	return "", ErrInvalidSessionType
}

type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// legalTransitions: terminal states (completed, cancelled) are sticky.
var legalTransitions = map[SessionStatus][]SessionStatus{
	StatusScheduled: {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to SessionStatus) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CollaborationSession is the durable record of a scheduled or in-progress
// collaborative activity. RoomID is a stable 1:1 projection of ID used as
// the transport-level broadcast group; presence and message operations
// resolve through it so transports never touch persistence details.
type CollaborationSession struct {
	ID             string            `db:"id" json:"id"`
	Type           SessionType       `db:"type" json:"type"`
	Status         SessionStatus     `db:"status" json:"status"`
	RoomID         string            `db:"room_id" json:"roomId"`
	ScheduledStart *time.Time        `db:"scheduled_start" json:"scheduledStart,omitempty"`
	ActualStart    *time.Time        `db:"actual_start" json:"actualStart,omitempty"`
	EndTime        *time.Time        `db:"end_time" json:"endTime,omitempty"`
	Metadata       map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
}

func (s *CollaborationSession) Closed() bool {
	return s.Status == StatusCompleted || s.Status == StatusCancelled
}
