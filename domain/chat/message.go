// Package chat contains the room messaging concepts: wire messages,
// rooms and transport sessions. Room fan-out is in-process only.
package chat

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "notify-lab/errors"
)

// TimeLayout is the wire format for message timestamps.
const TimeLayout = time.RFC3339

// MessageType drives the room state machine.
type MessageType uint8

const (
	MessageJoin MessageType = iota
	MessageChat
	MessageLeave
)

func (t MessageType) String() string {
	switch t {
	case MessageJoin:
		return "JOIN"
	case MessageChat:
		return "CHAT"
	case MessageLeave:
		return "LEAVE"
	}
	return fmt.Sprintf("MessageType(%d)", uint8(t))
}

func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *MessageType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "JOIN":
		*t = MessageJoin
	case "CHAT":
		*t = MessageChat
	case "LEAVE":
		*t = MessageLeave
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownMessageType, raw)
	}
	return nil
}

// Message is a room-scoped wire message.
type Message struct {
	Type      MessageType `json:"type"`
	RoomID    string      `json:"roomId"`
	Sender    string      `json:"sender"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
}
