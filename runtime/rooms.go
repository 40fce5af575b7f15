package runtime

import (
	"log/slog"
	"sync"

	"notify-lab/domain/chat"
)

type sessionSet map[*chat.Session]struct{}

// RoomRegistry maps room ids to the participant sessions of the local
// process. Used only by the chat fan-out path.
type RoomRegistry struct {
	mu      sync.RWMutex
	log     *slog.Logger
	members map[string]sessionSet
}

func NewRoomRegistry(log *slog.Logger) *RoomRegistry {
	return &RoomRegistry{log: log, members: make(map[string]sessionSet)}
}

// Join adds a session to a room, creating the room entry on the fly.
func (r *RoomRegistry) Join(roomID string, s *chat.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[roomID]; !ok {
		r.members[roomID] = make(sessionSet)
	}
	r.members[roomID][s] = struct{}{}
}

// Leave removes a session from a room and reports whether it was a
// member. An empty room entry is removed to avoid leaking keys.
func (r *RoomRegistry) Leave(roomID string, s *chat.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remove(roomID, s)
}

// RemoveEverywhere removes a session from every room it could be in and
// returns the rooms it was actually a member of. A session should only
// ever be in one room; sweeping all of them is deliberate defensiveness
// on the disconnect path.
func (r *RoomRegistry) RemoveEverywhere(s *chat.Session) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for roomID := range r.members {
		if r.remove(roomID, s) {
			left = append(left, roomID)
		}
	}
	return left
}

// remove requires r.mu to be held.
func (r *RoomRegistry) remove(roomID string, s *chat.Session) bool {
	members, ok := r.members[roomID]
	if !ok {
		return false
	}
	if _, member := members[s]; !member {
		return false
	}
	delete(members, s)
	if len(members) == 0 {
		delete(r.members, roomID)
	}
	return true
}

// Snapshot returns the current participants of a room. Enumeration
// during a broadcast works on this copy, so concurrent joins and leaves
// never disturb an in-flight delivery pass.
func (r *RoomRegistry) Snapshot(roomID string) []*chat.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.members[roomID]
	if !ok {
		return nil
	}
	sessions := make([]*chat.Session, 0, len(members))
	for s := range members {
		sessions = append(sessions, s)
	}
	return sessions
}

// Participants returns the current member count of a room.
func (r *RoomRegistry) Participants(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[roomID])
}
