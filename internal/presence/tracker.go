package presence

import (
	"sync"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
)

// Tracker is the in-memory registry of active participants per room. It is
// the fast source of truth for membership decisions (who may post, who is
// here) while the store's audit records stay eventually consistent with it.
// It is a cache: rebuildable, never the source of truth for billing.
type Tracker struct {
	mu       sync.RWMutex
	rooms    map[string][]domain.Participant // join order preserved
	userRoom map[string]string               // userID -> roomID
}

func NewTracker() *Tracker {
	return &Tracker{
		rooms:    make(map[string][]domain.Participant),
		userRoom: make(map[string]string),
	}
}

// Add registers p as active in roomID. A second add for the same user in
// the same room replaces the entry in place; an add for a user active in a
// different room evicts the stale entry first, so one-room-per-user holds
// by construction.
func (t *Tracker) Add(roomID string, p domain.Participant) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.userRoom[p.UserID]; ok && prev != roomID {
		t.removeLocked(prev, p.UserID)
	}

	list := t.rooms[roomID]
	for i := range list {
		if list[i].UserID == p.UserID {
			list[i] = p
			t.userRoom[p.UserID] = roomID
			return
		}
	}
	t.rooms[roomID] = append(list, p)
	t.userRoom[p.UserID] = roomID
}

// Remove drops the user's entry. Removing an absent user is a no-op;
// disconnect cleanup and explicit leave may both run for one membership.
func (t *Tracker) Remove(roomID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(roomID, userID)
}

func (t *Tracker) removeLocked(roomID, userID string) bool {
	list := t.rooms[roomID]
	for i := range list {
		if list[i].UserID == userID {
			t.rooms[roomID] = append(list[:i], list[i+1:]...)
			if len(t.rooms[roomID]) == 0 {
				delete(t.rooms, roomID)
			}
			if t.userRoom[userID] == roomID {
				delete(t.userRoom, userID)
			}
			return true
		}
	}
	return false
}

func (t *Tracker) Count(roomID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[roomID])
}

// Participants returns the active set in join order.
func (t *Tracker) Participants(roomID string) []domain.Participant {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.rooms[roomID]
	out := make([]domain.Participant, len(list))
	copy(out, list)
	return out
}

// IsActive reports whether the user is currently active in the room.
func (t *Tracker) IsActive(roomID, userID string) (domain.Participant, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, p := range t.rooms[roomID] {
		if p.UserID == userID {
			return p, true
		}
	}
	return domain.Participant{}, false
}

// RoomForUser returns the single room the user is active in, if any.
func (t *Tracker) RoomForUser(userID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	roomID, ok := t.userRoom[userID]
	return roomID, ok
}

func (t *Tracker) Rooms() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.rooms))
	for id := range t.rooms {
		out = append(out, id)
	}
	return out
}
