package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/analytics"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/presence"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/store"

	"github.com/google/uuid"
)

// Registry owns the CollaborationSession lifecycle, membership records and
// message persistence. It is constructed explicitly and injected into the
// transports; there is no package-level instance.
type Registry struct {
	store    store.Store
	presence *presence.Tracker
	sink     analytics.Sink

	maxMessageChars int
	now             func() time.Time
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithMaxMessageChars(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxMessageChars = n
		}
	}
}

func WithAnalytics(sink analytics.Sink) Option {
	return func(r *Registry) {
		if sink != nil {
			r.sink = sink
		}
	}
}

func New(st store.Store, tracker *presence.Tracker, opts ...Option) *Registry {
	r := &Registry{
		store:           st,
		presence:        tracker,
		sink:            analytics.SlogSink{},
		maxMessageChars: 4000,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSession allocates the session and its room id. With a future
// scheduledStart the session starts out scheduled; otherwise it is active
// immediately.
func (r *Registry) CreateSession(ctx context.Context, ownerID string, typ domain.SessionType, scheduledStart *time.Time, metadata map[string]string) (*domain.CollaborationSession, error) {
	if _, err := domain.ParseSessionType(string(typ)); err != nil {
		return nil, err
	}

	now := r.now()
	meta := map[string]string{"owner_id": ownerID}
	for k, v := range metadata {
		meta[k] = v
	}

	id := uuid.NewString()
	cs := &domain.CollaborationSession{
		ID:        id,
		Type:      typ,
		Status:    domain.StatusActive,
		RoomID:    id, // room id is a stable 1:1 projection of the session id
		Metadata:  meta,
		CreatedAt: now,
	}
	if scheduledStart != nil && scheduledStart.After(now) {
		cs.Status = domain.StatusScheduled
		t := *scheduledStart
		cs.ScheduledStart = &t
	} else {
		t := now
		cs.ActualStart = &t
	}

	if err := r.store.CreateSession(ctx, cs); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	r.sink.Track(analytics.Event{Name: "session_created", UserID: ownerID, SessionID: cs.ID,
		Props: map[string]string{"type": string(typ), "status": string(cs.Status)}})
	return cs, nil
}

// ScheduleSession is the explicit scheduled-in-advance wrapper.
func (r *Registry) ScheduleSession(ctx context.Context, ownerID string, typ domain.SessionType, start time.Time, metadata map[string]string) (*domain.CollaborationSession, error) {
	return r.CreateSession(ctx, ownerID, typ, &start, metadata)
}

// Join makes userID an active participant of the room. Rejoining replaces
// the stale record rather than duplicating it, which is what reconciles
// concurrent join/leave interleavings without mutual exclusion. The first
// join flips a scheduled session to active.
func (r *Registry) Join(ctx context.Context, roomID, userID string, role domain.Role) (*domain.CollaborationSession, []domain.Participant, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, nil, err
	}

	cs, err := r.store.GetSession(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if cs.Closed() {
		return nil, nil, domain.ErrSessionClosed
	}

	now := r.now()
	if cs.Status == domain.StatusScheduled {
		cs.Status = domain.StatusActive
		t := now
		cs.ActualStart = &t
		if err := r.store.UpdateSession(ctx, cs); err != nil {
			return nil, nil, fmt.Errorf("activate session: %w", err)
		}
	}

	if err := r.store.RecordJoin(ctx, cs.ID, userID, role, now); err != nil {
		return nil, nil, fmt.Errorf("record join: %w", err)
	}

	r.presence.Add(cs.RoomID, domain.Participant{
		UserID:   userID,
		Role:     role,
		JoinedAt: now,
		IsActive: true,
	})

	r.sink.Track(analytics.Event{Name: "room_joined", UserID: userID, SessionID: cs.ID,
		Props: map[string]string{"role": string(role)}})
	return cs, r.presence.Participants(cs.RoomID), nil
}

// Leave marks the participant inactive. Leaving a room the user is not in
// is a no-op, not an error: disconnects are not guaranteed to pair with a
// join record under all failure modes.
func (r *Registry) Leave(ctx context.Context, roomID, userID string) error {
	removed := r.presence.Remove(roomID, userID)

	if err := r.store.RecordLeave(ctx, roomID, userID, r.now()); err != nil {
		return fmt.Errorf("record leave: %w", err)
	}
	if removed {
		r.sink.Track(analytics.Event{Name: "room_left", UserID: userID, SessionID: roomID})
	}
	return nil
}

// SendMessage authorizes against live presence, persists, then returns the
// message for the caller to broadcast. Persistence happens before any
// broadcast is acknowledged.
func (r *Registry) SendMessage(ctx context.Context, roomID, userID string, typ domain.MessageType, content string, metadata map[string]string) (*domain.Message, error) {
	if _, err := domain.ParseMessageType(string(typ)); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", domain.ErrInvalidMessageType)
	}
	if len(content) > r.maxMessageChars {
		return nil, fmt.Errorf("message too long: %d chars, limit %d", len(content), r.maxMessageChars)
	}

	p, active := r.presence.IsActive(roomID, userID)
	if !active {
		return nil, domain.ErrNotMember
	}
	switch p.Role {
	case domain.RoleTutor, domain.RoleStudent:
		// may post
	case domain.RoleObserver:
		return nil, domain.ErrNotAuthorized
	default:
		return nil, domain.ErrInvalidRole
	}

	m := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: roomID,
		UserID:    userID,
		Type:      typ,
		Content:   content,
		Metadata:  metadata,
		Timestamp: r.now(),
	}
	if err := r.store.SaveMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	r.sink.Track(analytics.Event{Name: "message_sent", UserID: userID, SessionID: roomID,
		Props: map[string]string{"type": string(typ)}})
	return m, nil
}

// UpdateStatus applies a legal status transition; anything else fails with
// ErrInvalidTransition. No silent clamping.
func (r *Registry) UpdateStatus(ctx context.Context, sessionID string, newStatus domain.SessionStatus) (*domain.CollaborationSession, error) {
	cs, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(cs.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cs.Status, newStatus)
	}

	now := r.now()
	cs.Status = newStatus
	switch newStatus {
	case domain.StatusActive:
		if cs.ActualStart == nil {
			t := now
			cs.ActualStart = &t
		}
	case domain.StatusCompleted, domain.StatusCancelled:
		t := now
		cs.EndTime = &t
	}

	if err := r.store.UpdateSession(ctx, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// CancelSession cancels a scheduled or active session, keeping the record.
func (r *Registry) CancelSession(ctx context.Context, sessionID, reason string) (*domain.CollaborationSession, error) {
	cs, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(cs.Status, domain.StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cs.Status, domain.StatusCancelled)
	}
	cs.Status = domain.StatusCancelled
	t := r.now()
	cs.EndTime = &t
	if reason != "" {
		if cs.Metadata == nil {
			cs.Metadata = map[string]string{}
		}
		cs.Metadata["cancel_reason"] = reason
	}
	if err := r.store.UpdateSession(ctx, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (r *Registry) GetSession(ctx context.Context, sessionID string) (*domain.CollaborationSession, error) {
	return r.store.GetSession(ctx, sessionID)
}

// ActiveParticipants answers from the presence cache, never the store.
func (r *Registry) ActiveParticipants(roomID string) []domain.Participant {
	return r.presence.Participants(roomID)
}

func (r *Registry) ActiveSessions(ctx context.Context) ([]domain.CollaborationSession, error) {
	return r.store.ListActiveSessions(ctx)
}

func (r *Registry) SessionsByUser(ctx context.Context, userID string) ([]domain.CollaborationSession, error) {
	return r.store.ListSessionsByUser(ctx, userID)
}

func (r *Registry) MessageHistory(ctx context.Context, roomID, cursor string, limit int) ([]domain.Message, string, error) {
	return r.store.ListMessages(ctx, roomID, cursor, limit)
}

// Stats aggregates counts and durations by session type; userID narrows the
// aggregate to one user's activity.
func (r *Registry) Stats(ctx context.Context, userID string) (store.Stats, error) {
	return r.store.CollaborationStats(ctx, userID)
}
