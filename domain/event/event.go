// Package event contains the core notification concepts.
// An Event is created once by the publish relay and never mutated afterwards;
// every downstream consumer (subscribe relay, mailbox, poll read path) only
// reads it.
package event

import (
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the wire format for the timestamp field.
const TimeLayout = time.RFC3339

// eventTimeLayout is a human-oriented duplicate of the timestamp,
// kept for wire compatibility with existing consumers.
const eventTimeLayout = "2006-01-02 15:04:05"

// UserInfo identifies a user on the wire.
type UserInfo struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Event is an immutable notification record.
type Event struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Target        Target   `json:"targetUserId"`
	Message       string   `json:"message"`
	PublisherID   string   `json:"publisherId"`
	Timestamp     string   `json:"timestamp"`
	EventTime     string   `json:"eventTime"`
	Priority      Priority `json:"priority"`
	Category      Category `json:"category"`
	Broadcast     bool     `json:"broadcast"`
	UserInfo      UserInfo `json:"userInfo"`
	PublisherInfo UserInfo `json:"publisherInfo"`
	Urgent        bool     `json:"urgent,omitempty"`
	Title         string   `json:"title,omitempty"`
	System        bool     `json:"system,omitempty"`
}

// Resolver maps a user id to a display name. Account lookup is an
// external collaborator, consumed through this narrow interface.
type Resolver interface {
	DisplayName(userID string) string
}

// New builds an Event with a fresh collision-resistant id and both time
// fields stamped from the same instant.
func New(target Target, eventType, message, publisherID string, names Resolver) Event {
	now := time.Now().UTC()
	return Event{
		ID:          NewID(),
		Type:        eventType,
		Target:      target,
		Message:     message,
		PublisherID: publisherID,
		Timestamp:   now.Format(TimeLayout),
		EventTime:   now.Format(eventTimeLayout),
		Priority:    PriorityNormal,
		Category:    CategoryGeneral,
		Broadcast:   target.IsBroadcast(),
		UserInfo: UserInfo{
			UserID:      target.String(),
			DisplayName: names.DisplayName(target.String()),
		},
		PublisherInfo: UserInfo{
			UserID:      publisherID,
			DisplayName: names.DisplayName(publisherID),
		},
	}
}

// NewID returns a collision-resistant event id.
func NewID() string {
	return "evt_" + uuid.NewString()
}
