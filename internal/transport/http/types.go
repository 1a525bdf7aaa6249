package http

import (
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateSessionRequest struct {
	Type           string            `json:"type"`
	ScheduledStart *time.Time        `json:"scheduledStart,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CancelSessionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type SessionsListResponse struct {
	Items []domain.CollaborationSession `json:"items"`
}

type ParticipantsResponse struct {
	Items []domain.Participant `json:"items"`
}

type MessagesResponse struct {
	Items      []domain.Message `json:"items"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

type StatsResponse struct {
	UserID string      `json:"userId"`
	Stats  store.Stats `json:"stats"`
}
