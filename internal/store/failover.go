package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
)

// Failover serves from the durable store while it is reachable and flips to
// the in-memory fallback when it is not, so a store outage never surfaces
// as a user-visible failure. While degraded, both reads and writes go to
// the fallback (read-your-writes holds); sessions created during an outage
// stay owned by the fallback for their whole lifetime, so their ids keep
// resolving after the durable store recovers.
type Failover struct {
	primary       Store
	fallback      *Memory
	probeInterval time.Duration
	onFlip        func(degraded bool) // metrics hook, may be nil

	mu       sync.RWMutex
	degraded bool
	owned    map[string]struct{} // session ids living in the fallback
}

func NewFailover(primary Store, fallback *Memory, probeInterval time.Duration, onFlip func(bool)) *Failover {
	if probeInterval <= 0 {
		probeInterval = 10 * time.Second
	}
	return &Failover{
		primary:       primary,
		fallback:      fallback,
		probeInterval: probeInterval,
		onFlip:        onFlip,
		owned:         make(map[string]struct{}),
	}
}

// StartProbe runs the liveness probe until ctx is cancelled.
func (f *Failover) StartProbe(ctx context.Context) {
	ticker := time.NewTicker(f.probeInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.probe(ctx)
			}
		}
	}()
}

func (f *Failover) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := f.primary.Ping(pctx)
	cancel()

	f.mu.Lock()
	was := f.degraded
	f.degraded = err != nil
	now := f.degraded
	f.mu.Unlock()

	if was != now {
		if now {
			slog.Warn("durable store unreachable, serving from memory", "err", err)
		} else {
			slog.Info("durable store recovered")
		}
		if f.onFlip != nil {
			f.onFlip(now)
		}
	}
}

func (f *Failover) markDown(err error) {
	f.mu.Lock()
	was := f.degraded
	f.degraded = true
	f.mu.Unlock()

	if !was {
		slog.Warn("durable store call failed, flipping to memory", "err", err)
		if f.onFlip != nil {
			f.onFlip(true)
		}
	}
}

func (f *Failover) isDegraded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.degraded
}

func (f *Failover) owns(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.owned[id]
	return ok
}

func (f *Failover) adopt(id string) {
	f.mu.Lock()
	f.owned[id] = struct{}{}
	f.mu.Unlock()
}

func (f *Failover) CreateSession(ctx context.Context, s *domain.CollaborationSession) error {
	if !f.isDegraded() {
		err := f.primary.CreateSession(ctx, s)
		if err == nil || !IsUnavailable(err) {
			return err
		}
		f.markDown(err)
	}
	if err := f.fallback.CreateSession(ctx, s); err != nil {
		return err
	}
	f.adopt(s.ID)
	return nil
}

func (f *Failover) GetSession(ctx context.Context, id string) (*domain.CollaborationSession, error) {
	if f.owns(id) {
		return f.fallback.GetSession(ctx, id)
	}
	if f.isDegraded() {
		return f.fallback.GetSession(ctx, id)
	}
	s, err := f.primary.GetSession(ctx, id)
	if err != nil && IsUnavailable(err) {
		f.markDown(err)
		return f.fallback.GetSession(ctx, id)
	}
	return s, err
}

func (f *Failover) UpdateSession(ctx context.Context, s *domain.CollaborationSession) error {
	if f.owns(s.ID) || f.isDegraded() {
		return f.fallback.UpdateSession(ctx, s)
	}
	err := f.primary.UpdateSession(ctx, s)
	if err != nil && IsUnavailable(err) {
		f.markDown(err)
		// mirror the record into memory so later reads keep working
		if werr := f.fallback.CreateSession(ctx, s); werr == nil {
			f.adopt(s.ID)
		}
		return nil
	}
	return err
}

func (f *Failover) ListActiveSessions(ctx context.Context) ([]domain.CollaborationSession, error) {
	if f.isDegraded() {
		return f.fallback.ListActiveSessions(ctx)
	}
	out, err := f.primary.ListActiveSessions(ctx)
	if err != nil {
		if IsUnavailable(err) {
			f.markDown(err)
			return f.fallback.ListActiveSessions(ctx)
		}
		return nil, err
	}
	// sessions adopted during a past outage are invisible to the durable store
	mem, _ := f.fallback.ListActiveSessions(ctx)
	for _, s := range mem {
		if f.owns(s.ID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *Failover) ListSessionsByUser(ctx context.Context, userID string) ([]domain.CollaborationSession, error) {
	if f.isDegraded() {
		return f.fallback.ListSessionsByUser(ctx, userID)
	}
	out, err := f.primary.ListSessionsByUser(ctx, userID)
	if err != nil {
		if IsUnavailable(err) {
			f.markDown(err)
			return f.fallback.ListSessionsByUser(ctx, userID)
		}
		return nil, err
	}
	mem, _ := f.fallback.ListSessionsByUser(ctx, userID)
	for _, s := range mem {
		if f.owns(s.ID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *Failover) SaveMessage(ctx context.Context, m *domain.Message) error {
	if f.owns(m.SessionID) || f.isDegraded() {
		return f.fallback.SaveMessage(ctx, m)
	}
	err := f.primary.SaveMessage(ctx, m)
	if err != nil && IsUnavailable(err) {
		f.markDown(err)
		return f.fallback.SaveMessage(ctx, m)
	}
	return err
}

func (f *Failover) ListMessages(ctx context.Context, sessionID, cursor string, limit int) ([]domain.Message, string, error) {
	if f.owns(sessionID) || f.isDegraded() {
		return f.fallback.ListMessages(ctx, sessionID, cursor, limit)
	}
	out, next, err := f.primary.ListMessages(ctx, sessionID, cursor, limit)
	if err != nil && IsUnavailable(err) {
		f.markDown(err)
		return f.fallback.ListMessages(ctx, sessionID, cursor, limit)
	}
	return out, next, err
}

func (f *Failover) RecordJoin(ctx context.Context, sessionID, userID string, role domain.Role, at time.Time) error {
	if f.owns(sessionID) || f.isDegraded() {
		return f.fallback.RecordJoin(ctx, sessionID, userID, role, at)
	}
	err := f.primary.RecordJoin(ctx, sessionID, userID, role, at)
	if err != nil && IsUnavailable(err) {
		f.markDown(err)
		return f.fallback.RecordJoin(ctx, sessionID, userID, role, at)
	}
	return err
}

func (f *Failover) RecordLeave(ctx context.Context, sessionID, userID string, at time.Time) error {
	if f.owns(sessionID) || f.isDegraded() {
		return f.fallback.RecordLeave(ctx, sessionID, userID, at)
	}
	err := f.primary.RecordLeave(ctx, sessionID, userID, at)
	if err != nil && IsUnavailable(err) {
		f.markDown(err)
		return f.fallback.RecordLeave(ctx, sessionID, userID, at)
	}
	return err
}

func (f *Failover) CollaborationStats(ctx context.Context, userID string) (Stats, error) {
	if f.isDegraded() {
		return f.fallback.CollaborationStats(ctx, userID)
	}
	stats, err := f.primary.CollaborationStats(ctx, userID)
	if err != nil && IsUnavailable(err) {
		f.markDown(err)
		return f.fallback.CollaborationStats(ctx, userID)
	}
	return stats, err
}

func (f *Failover) Ping(ctx context.Context) error {
	if f.isDegraded() {
		return f.fallback.Ping(ctx)
	}
	return f.primary.Ping(ctx)
}

func (f *Failover) Close() {
	f.primary.Close()
	f.fallback.Close()
}
