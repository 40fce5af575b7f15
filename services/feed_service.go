// Package services contains the application services composed on top of
// the registries, the relay and the repositories.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"notify-lab/contract"
	"notify-lab/domain/event"
)

// Notification is an event as rendered in a poll response, with the
// caller's read status attached.
type Notification struct {
	event.Event
	Read bool `json:"read"`
}

// FeedResponse is the poll response envelope.
type FeedResponse struct {
	Notifications []Notification `json:"notifications"`
	UserID        string         `json:"userId"`
	Timestamp     string         `json:"timestamp"`
	HasMore       bool           `json:"hasMore"`
	Count         int            `json:"count"`
}

// FeedService assembles poll responses from the mailbox and the
// read-state tracker. Individual entry failures are skipped and logged;
// they never abort the whole response.
type FeedService struct {
	log          *slog.Logger
	mailbox      contract.IMailbox
	reads        contract.IReadTracker
	defaultLimit int
}

func NewFeedService(log *slog.Logger, mailbox contract.IMailbox,
	reads contract.IReadTracker, defaultLimit int) *FeedService {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &FeedService{log: log, mailbox: mailbox, reads: reads, defaultLimit: defaultLimit}
}

// Poll gathers up to limit notifications for userID: personal entries
// first, topped up from the broadcast list when short. Entries not
// strictly after since are filtered out when since parses; entries
// whose own timestamp does not parse are conservatively kept.
func (s *FeedService) Poll(ctx context.Context, userID, since string, limit int) (FeedResponse, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}

	personal, personalErr := s.mailbox.Range(ctx, userID, limit)
	if personalErr != nil {
		s.log.Error("personal mailbox fetch failed", "user_id", userID, "error", personalErr)
	}
	notifications := s.decode(personal)

	var broadcastErr error
	if len(notifications) < limit {
		var broadcast []string
		broadcast, broadcastErr = s.mailbox.RangeBroadcast(ctx, limit-len(notifications))
		if broadcastErr != nil {
			s.log.Error("broadcast mailbox fetch failed", "user_id", userID, "error", broadcastErr)
		}
		notifications = append(notifications, s.decode(broadcast)...)
	}

	if personalErr != nil && broadcastErr != nil {
		return FeedResponse{}, fmt.Errorf("poll for %s: %w", userID, personalErr)
	}

	notifications = filterSince(notifications, since)
	s.attachReadState(ctx, userID, notifications)

	// RFC 3339 timestamps in UTC sort lexicographically.
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].Timestamp > notifications[j].Timestamp
	})
	if len(notifications) > limit {
		notifications = notifications[:limit]
	}

	return FeedResponse{
		Notifications: notifications,
		UserID:        userID,
		Timestamp:     time.Now().UTC().Format(event.TimeLayout),
		HasMore:       len(notifications) == limit,
		Count:         len(notifications),
	}, nil
}

// Detail fetches one notification's persisted detail record.
func (s *FeedService) Detail(ctx context.Context, userID, eventID string) (Notification, error) {
	payload, err := s.mailbox.Detail(ctx, userID, eventID)
	if err != nil {
		return Notification{}, err
	}

	var n Notification
	if err := json.Unmarshal([]byte(payload), &n.Event); err != nil {
		return Notification{}, fmt.Errorf("decode detail %s: %w", eventID, err)
	}

	read, err := s.reads.IsRead(ctx, userID, eventID)
	if err != nil {
		s.log.Warn("read status lookup failed", "user_id", userID, "event_id", eventID, "error", err)
	}
	n.Read = read
	return n, nil
}

// MarkRead records an acknowledgement.
func (s *FeedService) MarkRead(ctx context.Context, userID, eventID string) error {
	return s.reads.MarkRead(ctx, userID, eventID)
}

// decode unmarshals mailbox entries, skipping the ones that fail.
func (s *FeedService) decode(entries []string) []Notification {
	notifications := make([]Notification, 0, len(entries))
	for _, entry := range entries {
		var n Notification
		if err := json.Unmarshal([]byte(entry), &n.Event); err != nil {
			s.log.Warn("skipping undecodable mailbox entry", "error", err)
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications
}

// attachReadState flags acknowledged notifications. On lookup failure
// everything stays unread; rendering must not fail over read status.
func (s *FeedService) attachReadState(ctx context.Context, userID string, notifications []Notification) {
	readSet, err := s.reads.ReadSet(ctx, userID)
	if err != nil {
		s.log.Warn("read set fetch failed", "user_id", userID, "error", err)
		return
	}
	for i := range notifications {
		_, notifications[i].Read = readSet[notifications[i].ID]
	}
}

// filterSince drops notifications not strictly after since. An
// unparseable since disables the filter; an unparseable entry timestamp
// keeps the entry.
func filterSince(notifications []Notification, since string) []Notification {
	if since == "" {
		return notifications
	}
	sinceTime, err := time.Parse(event.TimeLayout, since)
	if err != nil {
		return notifications
	}

	kept := notifications[:0]
	for _, n := range notifications {
		ts, err := time.Parse(event.TimeLayout, n.Timestamp)
		if err != nil || ts.After(sinceTime) {
			kept = append(kept, n)
		}
	}
	return kept
}
