// Package chat implements the room-scoped chat path: the fan-out
// dispatcher and the room directory. Fan-out is strictly in-process;
// this path never touches the cross-instance relay.
package chat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"notify-lab/domain/chat"
)

type roomMeta struct {
	name       string
	createdAt  time.Time
	lastActive time.Time
}

// Directory tracks the rooms known to this process: explicit creation
// time and last activity, so idle rooms can be evicted instead of
// living forever in memory. Persistent room storage is out of scope;
// the directory is seeded with sample rooms at startup.
type Directory struct {
	mu    sync.Mutex
	log   *slog.Logger
	now   func() time.Time
	rooms map[string]*roomMeta
}

func NewDirectory(log *slog.Logger) *Directory {
	d := &Directory{log: log, now: time.Now, rooms: make(map[string]*roomMeta)}
	// Sample data standing in for a persistent room service.
	d.seed("room1", "Apple group buy")
	d.seed("room2", "Strawberry group buy")
	return d
}

func (d *Directory) seed(id, name string) {
	now := d.now()
	d.rooms[id] = &roomMeta{name: name, createdAt: now, lastActive: now}
}

// CreateRoom registers a new room under a generated id.
func (d *Directory) CreateRoom(name string) chat.Room {
	id := "room_" + uuid.NewString()

	d.mu.Lock()
	now := d.now()
	d.rooms[id] = &roomMeta{name: name, createdAt: now, lastActive: now}
	d.mu.Unlock()

	d.log.Info("room created", "room_id", id, "name", name)
	return chat.Room{ID: id, Name: name}
}

// EnsureRoom registers a room on first contact, keeping JOINs to rooms
// nobody created explicitly working. The id doubles as the name.
func (d *Directory) EnsureRoom(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rooms[id]; ok {
		return
	}
	now := d.now()
	d.rooms[id] = &roomMeta{name: id, createdAt: now, lastActive: now}
}

// Touch records activity on a room.
func (d *Directory) Touch(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if meta, ok := d.rooms[id]; ok {
		meta.lastActive = d.now()
	}
}

// List returns every known room; participants resolves the live member
// count per room.
func (d *Directory) List(participants func(roomID string) int) []chat.Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	rooms := make([]chat.Room, 0, len(d.rooms))
	for id, meta := range d.rooms {
		rooms = append(rooms, chat.Room{
			ID:           id,
			Name:         meta.name,
			Participants: participants(id),
		})
	}
	return rooms
}

// EvictIdle removes rooms that have been inactive longer than maxIdle
// and currently have no participants, and returns their ids.
func (d *Directory) EvictIdle(maxIdle time.Duration, participants func(roomID string) int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var evicted []string
	cutoff := d.now().Add(-maxIdle)
	for id, meta := range d.rooms {
		if meta.lastActive.After(cutoff) {
			continue
		}
		if participants(id) > 0 {
			continue
		}
		delete(d.rooms, id)
		evicted = append(evicted, id)
	}

	if len(evicted) > 0 {
		d.log.Info("idle rooms evicted", "count", len(evicted), "room_ids", evicted)
	}
	return evicted
}
