package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"

	"github.com/google/uuid"
)

func seedSession(t *testing.T, m *Memory) *domain.CollaborationSession {
	t.Helper()
	s := testSession()
	if err := m.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return s
}

func TestMemoryGetUnknownSession(t *testing.T) {
	m := NewMemory()
	_, err := m.GetSession(context.Background(), uuid.NewString())
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("GetSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryReadsAreIsolated(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m)

	got, err := m.GetSession(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	got.Status = domain.StatusCancelled
	if got.Metadata == nil {
		got.Metadata = map[string]string{}
	}
	got.Metadata["tampered"] = "yes"

	again, _ := m.GetSession(context.Background(), s.ID)
	if again.Status != domain.StatusActive || again.Metadata["tampered"] != "" {
		t.Fatalf("mutating a returned session leaked into the store: %+v", again)
	}
}

func TestMemoryMessagePagingNewestFirst(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		msg := &domain.Message{
			ID:        uuid.NewString(),
			SessionID: s.ID,
			UserID:    "u1",
			Type:      domain.MessageText,
			Content:   fmt.Sprintf("msg-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := m.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}

	first, next, err := m.ListMessages(ctx, s.ID, "", 3)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(first) != 3 || first[0].Content != "msg-4" {
		t.Fatalf("first page = %+v, want newest-first starting at msg-4", first)
	}
	if next == "" {
		t.Fatalf("next cursor should be set on a full page")
	}

	rest, _, err := m.ListMessages(ctx, s.ID, next, 3)
	if err != nil {
		t.Fatalf("ListMessages(cursor) error = %v", err)
	}
	if len(rest) != 2 || rest[0].Content != "msg-1" || rest[1].Content != "msg-0" {
		t.Fatalf("second page = %+v, want msg-1 then msg-0", rest)
	}
}

func TestMemoryListMessagesRejectsBadCursor(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m)

	_, _, err := m.ListMessages(context.Background(), s.ID, "!!not-base64!!", 10)
	if !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("ListMessages() error = %v, want ErrInvalidCursor", err)
	}
}

func TestMemorySaveMessageUnknownSession(t *testing.T) {
	m := NewMemory()
	msg := &domain.Message{
		ID: uuid.NewString(), SessionID: uuid.NewString(), UserID: "u1",
		Type: domain.MessageText, Content: "orphan", Timestamp: time.Now(),
	}
	err := m.SaveMessage(context.Background(), msg)
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("SaveMessage() error = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryRejoinReopensAuditRow(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m)
	ctx := context.Background()

	at := time.Now()
	if err := m.RecordJoin(ctx, s.ID, "u1", domain.RoleStudent, at); err != nil {
		t.Fatalf("RecordJoin() error = %v", err)
	}
	if err := m.RecordLeave(ctx, s.ID, "u1", at.Add(time.Minute)); err != nil {
		t.Fatalf("RecordLeave() error = %v", err)
	}
	if err := m.RecordJoin(ctx, s.ID, "u1", domain.RoleTutor, at.Add(2*time.Minute)); err != nil {
		t.Fatalf("RecordJoin() rejoin error = %v", err)
	}

	list, err := m.ListSessionsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSessionsByUser() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListSessionsByUser() len = %d, want 1 despite rejoin", len(list))
	}
}

func TestMemoryStatsDurationForCompleted(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m)
	ctx := context.Background()

	end := s.ActualStart.Add(45 * time.Minute)
	s.Status = domain.StatusCompleted
	s.EndTime = &end
	if err := m.UpdateSession(ctx, s); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}

	stats, err := m.CollaborationStats(ctx, "")
	if err != nil {
		t.Fatalf("CollaborationStats() error = %v", err)
	}
	ts := stats[domain.TypeLiveTutoring]
	if ts.Sessions != 1 || ts.TotalDuration != 45*time.Minute {
		t.Fatalf("stats = %+v, want 1 session / 45m", ts)
	}
}
