package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"notify-lab/domain/event"
	apperrors "notify-lab/errors"
)

const (
	userMailboxKeyFormat = "user:%s:notifications"
	broadcastMailboxKey  = "broadcast:notifications"
	detailKeyFormat      = "notification:%s:%s"
)

// Mailbox is the durable polling fallback: a bounded, TTL-bounded list
// of recent serialized events per user, a shared broadcast list of the
// same shape, and a per-(user, event) detail record.
type Mailbox struct {
	client   *redis.Client
	log      *slog.Logger
	capacity int64
	ttl      time.Duration
}

func NewMailbox(client *redis.Client, log *slog.Logger, capacity int64, ttl time.Duration) *Mailbox {
	return &Mailbox{client: client, log: log, capacity: capacity, ttl: ttl}
}

// Append pushes a serialized event to the front of the target's list,
// trims the list back to capacity (dropping the oldest entries) and
// re-applies the TTL. Personal events additionally get a detail record
// with its own TTL.
func (m *Mailbox) Append(ctx context.Context, target event.Target, eventID string, payload []byte) error {
	if target.IsBroadcast() {
		_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, broadcastMailboxKey, payload)
			pipe.LTrim(ctx, broadcastMailboxKey, 0, m.capacity-1)
			pipe.Expire(ctx, broadcastMailboxKey, m.ttl)
			return nil
		})
		if err != nil {
			return fmt.Errorf("append broadcast mailbox: %w", err)
		}
		return nil
	}

	userKey := fmt.Sprintf(userMailboxKeyFormat, target.UserID())
	detailKey := fmt.Sprintf(detailKeyFormat, target.UserID(), eventID)

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, userKey, payload)
		pipe.LTrim(ctx, userKey, 0, m.capacity-1)
		pipe.Expire(ctx, userKey, m.ttl)
		pipe.Set(ctx, detailKey, payload, m.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append mailbox for %s: %w", target.UserID(), err)
	}
	return nil
}

// Range returns up to limit most-recent personal entries for userID.
func (m *Mailbox) Range(ctx context.Context, userID string, limit int) ([]string, error) {
	key := fmt.Sprintf(userMailboxKeyFormat, userID)
	return m.lrange(ctx, key, limit)
}

// RangeBroadcast returns up to limit most-recent broadcast entries.
func (m *Mailbox) RangeBroadcast(ctx context.Context, limit int) ([]string, error) {
	return m.lrange(ctx, broadcastMailboxKey, limit)
}

func (m *Mailbox) lrange(ctx context.Context, key string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	entries, err := m.client.LRange(ctx, key, 0, int64(limit)-1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	return entries, nil
}

// Detail returns the serialized detail record of one event, or
// ErrNotificationGone when it expired or never existed.
func (m *Mailbox) Detail(ctx context.Context, userID, eventID string) (string, error) {
	key := fmt.Sprintf(detailKeyFormat, userID, eventID)
	payload, err := m.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrNotificationGone
	}
	if err != nil {
		return "", fmt.Errorf("detail %s: %w", key, err)
	}
	return payload, nil
}
