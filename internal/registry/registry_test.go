package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/analytics"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/presence"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(store.NewMemory(), presence.NewTracker(), WithAnalytics(analytics.NopSink{}))
}

func mustCreate(t *testing.T, r *Registry, typ domain.SessionType) *domain.CollaborationSession {
	t.Helper()
	cs, err := r.CreateSession(context.Background(), "owner-1", typ, nil, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return cs
}

func TestCreateSessionImmediateIsActive(t *testing.T) {
	r := newTestRegistry(t)
	cs := mustCreate(t, r, domain.TypeLiveTutoring)

	if cs.Status != domain.StatusActive {
		t.Fatalf("Status = %q, want %q", cs.Status, domain.StatusActive)
	}
	if cs.RoomID != cs.ID {
		t.Fatalf("RoomID = %q, want session id %q", cs.RoomID, cs.ID)
	}
	if cs.ActualStart == nil {
		t.Fatalf("ActualStart should be set for an immediate session")
	}
}

func TestCreateSessionFutureStartIsScheduled(t *testing.T) {
	r := newTestRegistry(t)
	start := time.Now().Add(time.Hour)
	cs, err := r.CreateSession(context.Background(), "owner-1", domain.TypeGroupStudy, &start, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if cs.Status != domain.StatusScheduled {
		t.Fatalf("Status = %q, want %q", cs.Status, domain.StatusScheduled)
	}
	if cs.ScheduledStart == nil {
		t.Fatalf("ScheduledStart should be set")
	}
}

func TestCreateSessionUnknownType(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.CreateSession(context.Background(), "owner-1", "speed_dating", nil, nil)
	if !errors.Is(err, domain.ErrInvalidSessionType) {
		t.Fatalf("CreateSession() error = %v, want ErrInvalidSessionType", err)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	r := newTestRegistry(t)
	_, _, err := r.Join(context.Background(), "no-such-room", "u1", domain.RoleStudent)
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("Join() error = %v, want ErrSessionNotFound", err)
	}
}

func TestJoinActivatesScheduledSession(t *testing.T) {
	r := newTestRegistry(t)
	start := time.Now().Add(time.Hour)
	cs, err := r.CreateSession(context.Background(), "owner-1", domain.TypeLiveTutoring, &start, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	joined, parts, err := r.Join(context.Background(), cs.RoomID, "tutor-1", domain.RoleTutor)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if joined.Status != domain.StatusActive {
		t.Fatalf("Status after first join = %q, want %q", joined.Status, domain.StatusActive)
	}
	if len(parts) != 1 || parts[0].UserID != "tutor-1" {
		t.Fatalf("participants = %+v, want just tutor-1", parts)
	}
}

func TestJoinIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	cs := mustCreate(t, r, domain.TypePeerLearning)

	if _, _, err := r.Join(context.Background(), cs.RoomID, "u1", domain.RoleStudent); err != nil {
		t.Fatalf("first Join() error = %v", err)
	}
	_, parts, err := r.Join(context.Background(), cs.RoomID, "u1", domain.RoleStudent)
	if err != nil {
		t.Fatalf("second Join() error = %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("participants after rejoin = %d, want 1", len(parts))
	}
}

func TestJoinClosedSession(t *testing.T) {
	r := newTestRegistry(t)
	cs := mustCreate(t, r, domain.TypeLiveTutoring)
	if _, err := r.UpdateStatus(context.Background(), cs.ID, domain.StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	_, _, err := r.Join(context.Background(), cs.RoomID, "u1", domain.RoleStudent)
	if !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("Join() error = %v, want ErrSessionClosed", err)
	}
}

func TestLeaveWithoutJoinIsNoop(t *testing.T) {
	r := newTestRegistry(t)
	cs := mustCreate(t, r, domain.TypeGroupStudy)

	if err := r.Leave(context.Background(), cs.RoomID, "never-joined"); err != nil {
		t.Fatalf("Leave() error = %v, want nil", err)
	}
}

func TestJoinLeaveInterleavingCount(t *testing.T) {
	r := newTestRegistry(t)
	cs := mustCreate(t, r, domain.TypeGroupStudy)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "c"} {
		if _, _, err := r.Join(ctx, cs.RoomID, u, domain.RoleStudent); err != nil {
			t.Fatalf("Join(%s) error = %v", u, err)
		}
	}
	_, _, _ = r.Join(ctx, cs.RoomID, "a", domain.RoleStudent) // rejoin
	_ = r.Leave(ctx, cs.RoomID, "b")
	_ = r.Leave(ctx, cs.RoomID, "b") // double leave

	parts := r.ActiveParticipants(cs.RoomID)
	if len(parts) != 2 {
		t.Fatalf("ActiveParticipants() len = %d, want 2", len(parts))
	}
}

func TestSendMessageRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	cs := mustCreate(t, r, domain.TypeLiveTutoring)
	ctx := context.Background()
	if _, _, err := r.Join(ctx, cs.RoomID, "u1", domain.RoleStudent); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	meta := map[string]string{"client": "web"}
	sent, err := r.SendMessage(ctx, cs.RoomID, "u1", domain.MessageText, "hello", meta)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	msgs, _, err := r.MessageHistory(ctx, cs.RoomID, "", 10)
	if err != nil {
		t.Fatalf("MessageHistory() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("history len = %d, want 1", len(msgs))
	}
	got := msgs[0]
	if got.Content != sent.Content || got.Type != sent.Type || got.Metadata["client"] != "web" {
		t.Fatalf("round-trip mismatch: got %+v, sent %+v", got, sent)
	}
}

func TestSendMessageNotMember(t *testing.T) {
	r := newTestRegistry(t)
	cs := mustCreate(t, r, domain.TypeLiveTutoring)

	_, err := r.SendMessage(context.Background(), cs.RoomID, "outsider", domain.MessageText, "hi", nil)
	if !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("SendMessage() error = %v, want ErrNotMember", err)
	}
	msgs, _, _ := r.MessageHistory(context.Background(), cs.RoomID, "", 10)
	if len(msgs) != 0 {
		t.Fatalf("history len = %d, want 0 after rejected send", len(msgs))
	}
}

func TestObserverCannotPost(t *testing.T) {
	r := newTestRegistry(t)
	cs := mustCreate(t, r, domain.TypeGroupStudy)
	ctx := context.Background()
	if _, _, err := r.Join(ctx, cs.RoomID, "watcher", domain.RoleObserver); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	_, err := r.SendMessage(ctx, cs.RoomID, "watcher", domain.MessageText, "hi", nil)
	if !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("SendMessage() error = %v, want ErrNotAuthorized", err)
	}
}

func TestTerminalStatesAreSticky(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	completed := mustCreate(t, r, domain.TypeLiveTutoring)
	if _, err := r.UpdateStatus(ctx, completed.ID, domain.StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus(completed) error = %v", err)
	}
	if _, err := r.UpdateStatus(ctx, completed.ID, domain.StatusActive); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("completed -> active error = %v, want ErrInvalidTransition", err)
	}

	cancelled := mustCreate(t, r, domain.TypePeerLearning)
	if _, err := r.CancelSession(ctx, cancelled.ID, "tutor unavailable"); err != nil {
		t.Fatalf("CancelSession() error = %v", err)
	}
	for _, to := range []domain.SessionStatus{domain.StatusActive, domain.StatusCompleted, domain.StatusScheduled} {
		if _, err := r.UpdateStatus(ctx, cancelled.ID, to); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("cancelled -> %s error = %v, want ErrInvalidTransition", to, err)
		}
	}
}

func TestCancelKeepsRecordWithReason(t *testing.T) {
	r := newTestRegistry(t)
	cs := mustCreate(t, r, domain.TypeGroupStudy)

	got, err := r.CancelSession(context.Background(), cs.ID, "low attendance")
	if err != nil {
		t.Fatalf("CancelSession() error = %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("Status = %q, want cancelled", got.Status)
	}
	if got.Metadata["cancel_reason"] != "low attendance" {
		t.Fatalf("cancel_reason = %q, want recorded reason", got.Metadata["cancel_reason"])
	}

	// cancelled sessions remain readable records
	if _, err := r.GetSession(context.Background(), cs.ID); err != nil {
		t.Fatalf("GetSession() after cancel error = %v", err)
	}
}

func TestStatsByType(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	cs := mustCreate(t, r, domain.TypeLiveTutoring)
	if _, _, err := r.Join(ctx, cs.RoomID, "u1", domain.RoleStudent); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, err := r.SendMessage(ctx, cs.RoomID, "u1", domain.MessageText, "hello", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	mustCreate(t, r, domain.TypeGroupStudy)

	stats, err := r.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	ts := stats[domain.TypeLiveTutoring]
	if ts.Sessions != 1 || ts.Messages != 1 {
		t.Fatalf("live_tutoring stats = %+v, want 1 session / 1 message", ts)
	}
	if _, ok := stats[domain.TypeGroupStudy]; ok {
		t.Fatalf("group_study should not appear for u1")
	}
}

func TestSessionsByUser(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a := mustCreate(t, r, domain.TypeLiveTutoring)
	mustCreate(t, r, domain.TypePeerLearning)
	if _, _, err := r.Join(ctx, a.RoomID, "u9", domain.RoleStudent); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	list, err := r.SessionsByUser(ctx, "u9")
	if err != nil {
		t.Fatalf("SessionsByUser() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("SessionsByUser() = %+v, want only session %s", list, a.ID)
	}
}
