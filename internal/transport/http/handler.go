package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/registry"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/store"
	httpmw "github.com/Tanner-Eischen/Socrates-sub000/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	reg *registry.Registry
}

func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{reg: reg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session not found"})
	case errors.Is(err, domain.ErrInvalidSessionType),
		errors.Is(err, domain.ErrInvalidMessageType),
		errors.Is(err, store.ErrInvalidCursor):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("handler."+op+":", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	identity, ok := httpmw.IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
		return
	}

	cs, err := h.reg.CreateSession(r.Context(), identity.UserID, domain.SessionType(req.Type), req.ScheduledStart, req.Metadata)
	if err != nil {
		writeErr(w, "CreateSession", err)
		return
	}

	writeJSON(w, http.StatusCreated, cs)
}

// GET /sessions?user_id=
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	var (
		items []domain.CollaborationSession
		err   error
	)
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		items, err = h.reg.SessionsByUser(r.Context(), userID)
	} else {
		items, err = h.reg.ActiveSessions(r.Context())
	}
	if err != nil {
		writeErr(w, "ListSessions", err)
		return
	}
	if items == nil {
		items = []domain.CollaborationSession{}
	}

	writeJSON(w, http.StatusOK, SessionsListResponse{Items: items})
}

// GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	cs, err := h.reg.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, "GetSession", err)
		return
	}

	writeJSON(w, http.StatusOK, cs)
}

// POST /sessions/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	cs, err := h.reg.UpdateStatus(r.Context(), chi.URLParam(r, "id"), domain.SessionStatus(req.Status))
	if err != nil {
		writeErr(w, "UpdateStatus", err)
		return
	}

	writeJSON(w, http.StatusOK, cs)
}

// POST /sessions/{id}/cancel
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	var req CancelSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
			return
		}
	}

	cs, err := h.reg.CancelSession(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeErr(w, "CancelSession", err)
		return
	}

	writeJSON(w, http.StatusOK, cs)
}

// GET /sessions/{id}/participants
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.reg.GetSession(r.Context(), id); err != nil {
		writeErr(w, "GetParticipants", err)
		return
	}

	items := h.reg.ActiveParticipants(id)
	if items == nil {
		items = []domain.Participant{}
	}

	writeJSON(w, http.StatusOK, ParticipantsResponse{Items: items})
}

// GET /sessions/{id}/messages?cursor=&limit=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	items, next, err := h.reg.MessageHistory(r.Context(), chi.URLParam(r, "id"), cursor, limit)
	if err != nil {
		writeErr(w, "GetMessages", err)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}

	writeJSON(w, http.StatusOK, MessagesResponse{Items: items, NextCursor: next})
}

// GET /stats?user_id=
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		identity, ok := httpmw.IdentityFromCtx(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
			return
		}
		userID = identity.UserID
	}

	stats, err := h.reg.Stats(r.Context(), userID)
	if err != nil {
		writeErr(w, "GetStats", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{UserID: userID, Stats: stats})
}
