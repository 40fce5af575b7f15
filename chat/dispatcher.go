package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"notify-lab/domain/chat"
	"notify-lab/runtime"
)

// Dispatcher fans inbound room messages out to every open session of
// the room. Per-session failures are absorbed: one broken socket never
// blocks delivery to the rest.
type Dispatcher struct {
	log       *slog.Logger
	rooms     *runtime.RoomRegistry
	directory *Directory
}

func NewDispatcher(log *slog.Logger, rooms *runtime.RoomRegistry, directory *Directory) *Dispatcher {
	return &Dispatcher{log: log, rooms: rooms, directory: directory}
}

// HandleRaw decodes one inbound wire message from a session and applies
// it. Malformed payloads are dropped.
func (d *Dispatcher) HandleRaw(s *chat.Session, payload []byte) {
	var m chat.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		d.log.Warn("dropping malformed chat message",
			"session_id", s.ID, "error", err)
		return
	}

	switch m.Type {
	case chat.MessageJoin:
		d.join(s, m.RoomID, m.Sender)
	case chat.MessageChat:
		d.chat(m)
	case chat.MessageLeave:
		d.Disconnect(s)
	}
}

// join adds the session to the room and announces it. A session already
// bound to another room leaves it first (with the usual departure
// broadcast); membership is exclusive.
func (d *Dispatcher) join(s *chat.Session, roomID, sender string) {
	if current := s.RoomID(); current != "" && current != roomID {
		d.Disconnect(s)
	}

	d.directory.EnsureRoom(roomID)
	d.directory.Touch(roomID)
	d.rooms.Join(roomID, s)
	s.Bind(roomID, sender)

	d.log.Info("session joined room",
		"session_id", s.ID, "room_id", roomID, "sender", sender)

	d.broadcast(roomID, chat.Message{
		Type:      chat.MessageJoin,
		RoomID:    roomID,
		Sender:    sender,
		Message:   fmt.Sprintf("%s joined the room", sender),
		Timestamp: time.Now().UTC().Format(chat.TimeLayout),
	})
}

// chat stamps a server timestamp and broadcasts the message verbatim.
func (d *Dispatcher) chat(m chat.Message) {
	m.Timestamp = time.Now().UTC().Format(chat.TimeLayout)
	d.directory.Touch(m.RoomID)
	d.broadcast(m.RoomID, m)
}

// Disconnect removes the session from every room it could be in and, if
// it was actually a member somewhere, announces the departure. LEAVE
// messages and transport close both land here, so the cleanup runs
// exactly once per binding.
func (d *Dispatcher) Disconnect(s *chat.Session) {
	left := d.rooms.RemoveEverywhere(s)
	sender := s.DisplayName()
	s.ClearRoom()

	for _, roomID := range left {
		d.log.Info("session left room", "session_id", s.ID, "room_id", roomID)
		d.broadcast(roomID, chat.Message{
			Type:      chat.MessageLeave,
			RoomID:    roomID,
			Sender:    sender,
			Message:   fmt.Sprintf("%s left the room", sender),
			Timestamp: time.Now().UTC().Format(chat.TimeLayout),
		})
	}
}

// broadcast sends m to every open session of the room, pruning sessions
// that are no longer open.
func (d *Dispatcher) broadcast(roomID string, m chat.Message) {
	for _, session := range d.rooms.Snapshot(roomID) {
		if !session.Open() {
			d.rooms.RemoveEverywhere(session)
			continue
		}
		if err := session.Send(m); err != nil {
			d.log.Warn("room send failed",
				"session_id", session.ID, "room_id", roomID, "error", err)
			d.rooms.RemoveEverywhere(session)
		}
	}
}

// Participants exposes the live member count for the directory listing.
func (d *Dispatcher) Participants(roomID string) int {
	return d.rooms.Participants(roomID)
}
