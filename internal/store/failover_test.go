package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"

	"github.com/google/uuid"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

// flaky wraps a Memory store and fails every call while down is set,
// standing in for an unreachable durable store.
type flaky struct {
	*Memory
	down bool
}

func (f *flaky) fail() error {
	if f.down {
		return errConnRefused
	}
	return nil
}

func (f *flaky) CreateSession(ctx context.Context, s *domain.CollaborationSession) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Memory.CreateSession(ctx, s)
}

func (f *flaky) GetSession(ctx context.Context, id string) (*domain.CollaborationSession, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Memory.GetSession(ctx, id)
}

func (f *flaky) SaveMessage(ctx context.Context, m *domain.Message) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Memory.SaveMessage(ctx, m)
}

func (f *flaky) Ping(ctx context.Context) error {
	return f.fail()
}

func testSession() *domain.CollaborationSession {
	id := uuid.NewString()
	now := time.Now()
	return &domain.CollaborationSession{
		ID:        id,
		Type:      domain.TypeLiveTutoring,
		Status:    domain.StatusActive,
		RoomID:    id,
		ActualStart: &now,
		CreatedAt: now,
	}
}

func TestFailoverServesPrimaryWhenHealthy(t *testing.T) {
	primary := &flaky{Memory: NewMemory()}
	f := NewFailover(primary, NewMemory(), time.Second, nil)

	s := testSession()
	if err := f.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := primary.Memory.GetSession(context.Background(), s.ID); err != nil {
		t.Fatalf("session should live in the primary store: %v", err)
	}
}

func TestFailoverFlipsOnWriteFailure(t *testing.T) {
	primary := &flaky{Memory: NewMemory(), down: true}
	var flips []bool
	f := NewFailover(primary, NewMemory(), time.Second, func(d bool) { flips = append(flips, d) })

	s := testSession()
	if err := f.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession() during outage error = %v, want transparent fallback", err)
	}

	// read-your-writes while degraded
	got, err := f.GetSession(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.ID != s.ID {
		t.Fatalf("GetSession() = %+v, want the session written to the fallback", got)
	}
	if len(flips) != 1 || !flips[0] {
		t.Fatalf("onFlip calls = %v, want one degraded flip", flips)
	}
}

func TestFailoverOwnedSessionSurvivesRecovery(t *testing.T) {
	primary := &flaky{Memory: NewMemory(), down: true}
	f := NewFailover(primary, NewMemory(), time.Second, nil)
	ctx := context.Background()

	s := testSession()
	if err := f.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	primary.down = false
	f.probe(ctx)

	// the id was adopted by the fallback; it keeps resolving post-recovery
	if _, err := f.GetSession(ctx, s.ID); err != nil {
		t.Fatalf("GetSession() after recovery error = %v", err)
	}
	msg := &domain.Message{
		ID: uuid.NewString(), SessionID: s.ID, UserID: "u1",
		Type: domain.MessageText, Content: "still here", Timestamp: time.Now(),
	}
	if err := f.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("SaveMessage() to adopted session error = %v", err)
	}
}

func TestFailoverDomainErrorsPassThrough(t *testing.T) {
	primary := &flaky{Memory: NewMemory()}
	f := NewFailover(primary, NewMemory(), time.Second, nil)

	_, err := f.GetSession(context.Background(), uuid.NewString())
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("GetSession() error = %v, want ErrSessionNotFound untouched", err)
	}
	if f.isDegraded() {
		t.Fatalf("a domain error must not flip the failover")
	}
}

func TestProbeRecoversDegradedStore(t *testing.T) {
	primary := &flaky{Memory: NewMemory(), down: true}
	f := NewFailover(primary, NewMemory(), time.Second, nil)
	ctx := context.Background()

	f.probe(ctx)
	if !f.isDegraded() {
		t.Fatalf("probe should mark the store degraded while down")
	}

	primary.down = false
	f.probe(ctx)
	if f.isDegraded() {
		t.Fatalf("probe should clear degraded once the store answers")
	}
}
