package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
)

type auditRow struct {
	userID   string
	role     domain.Role
	joinedAt time.Time
	leftAt   *time.Time
}

// Memory is the in-memory fallback implementation of Store. All reads
// return clones so callers can never alias internal state.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CollaborationSession
	messages map[string][]domain.Message
	audit    map[string][]auditRow
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*domain.CollaborationSession),
		messages: make(map[string][]domain.Message),
		audit:    make(map[string][]auditRow),
	}
}

func (m *Memory) CreateSession(_ context.Context, s *domain.CollaborationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*domain.CollaborationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *Memory) UpdateSession(_ context.Context, s *domain.CollaborationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *Memory) ListActiveSessions(_ context.Context) ([]domain.CollaborationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CollaborationSession
	for _, s := range m.sessions {
		if s.Status == domain.StatusActive {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListSessionsByUser(_ context.Context, userID string) ([]domain.CollaborationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CollaborationSession
	for id, rows := range m.audit {
		for _, r := range rows {
			if r.userID != userID {
				continue
			}
			if s, ok := m.sessions[id]; ok {
				out = append(out, *cloneSession(s))
			}
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveMessage(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[msg.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *cloneMessage(msg))
	return nil
}

// ListMessages pages newest-first with the shared keyset cursor, matching
// the durable store's (created_at, id) DESC ordering.
func (m *Memory) ListMessages(_ context.Context, sessionID, cursor string, limit int) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.messages[sessionID]
	ordered := make([]domain.Message, len(all))
	copy(ordered, all)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.After(ordered[j].Timestamp)
		}
		return ordered[i].ID > ordered[j].ID
	})

	var out []domain.Message
	for _, msg := range ordered {
		if cur != nil {
			if msg.Timestamp.After(cur.CreatedAt) {
				continue
			}
			if msg.Timestamp.Equal(cur.CreatedAt) && msg.ID >= cur.ID {
				continue
			}
		}
		out = append(out, *cloneMessage(&msg))
		if len(out) == limit {
			break
		}
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		next, _ = EncodeCursor(Cursor{CreatedAt: last.Timestamp, ID: last.ID})
	}
	return out, next, nil
}

func (m *Memory) RecordJoin(_ context.Context, sessionID, userID string, role domain.Role, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.audit[sessionID]
	// a rejoin reopens the existing row rather than duplicating it
	for i := range rows {
		if rows[i].userID == userID {
			rows[i].role = role
			rows[i].joinedAt = at
			rows[i].leftAt = nil
			return nil
		}
	}
	m.audit[sessionID] = append(rows, auditRow{userID: userID, role: role, joinedAt: at})
	return nil
}

func (m *Memory) RecordLeave(_ context.Context, sessionID, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.audit[sessionID]
	for i := range rows {
		if rows[i].userID == userID && rows[i].leftAt == nil {
			t := at
			rows[i].leftAt = &t
		}
	}
	return nil
}

func (m *Memory) CollaborationStats(_ context.Context, userID string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(Stats)
	for id, s := range m.sessions {
		if userID != "" && !m.participated(id, userID) {
			continue
		}
		ts := stats[s.Type]
		ts.Sessions++
		for _, msg := range m.messages[id] {
			if userID == "" || msg.UserID == userID {
				ts.Messages++
			}
		}
		if s.Status == domain.StatusCompleted && s.ActualStart != nil && s.EndTime != nil {
			ts.TotalDuration += s.EndTime.Sub(*s.ActualStart)
		}
		stats[s.Type] = ts
	}
	return stats, nil
}

func (m *Memory) participated(sessionID, userID string) bool {
	for _, r := range m.audit[sessionID] {
		if r.userID == userID {
			return true
		}
	}
	return false
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() {}

func cloneSession(s *domain.CollaborationSession) *domain.CollaborationSession {
	c := *s
	c.ScheduledStart = cloneTime(s.ScheduledStart)
	c.ActualStart = cloneTime(s.ActualStart)
	c.EndTime = cloneTime(s.EndTime)
	c.Metadata = cloneMeta(s.Metadata)
	return &c
}

func cloneMessage(m *domain.Message) *domain.Message {
	c := *m
	c.Metadata = cloneMeta(m.Metadata)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	c := make(map[string]string, len(meta))
	for k, v := range meta {
		c[k] = v
	}
	return c
}
