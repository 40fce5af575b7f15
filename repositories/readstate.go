package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const readSetKeyFormat = "user:%s:read"

// ReadState tracks the event ids a user has acknowledged, as a per-user
// set with a long TTL. It only ever affects how poll responses are
// rendered, never delivery.
type ReadState struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

func NewReadState(client *redis.Client, log *slog.Logger, ttl time.Duration) *ReadState {
	return &ReadState{client: client, log: log, ttl: ttl}
}

// MarkRead adds the event id to the user's acknowledged set and
// refreshes the set's TTL.
func (r *ReadState) MarkRead(ctx context.Context, userID, eventID string) error {
	key := fmt.Sprintf(readSetKeyFormat, userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, eventID)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark read %s for %s: %w", eventID, userID, err)
	}
	return nil
}

// ReadSet returns every acknowledged event id of the user.
func (r *ReadState) ReadSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	key := fmt.Sprintf(readSetKeyFormat, userID)
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read set for %s: %w", userID, err)
	}
	return lo.SliceToMap(members, func(id string) (string, struct{}) {
		return id, struct{}{}
	}), nil
}

// IsRead reports whether the user acknowledged one event.
func (r *ReadState) IsRead(ctx context.Context, userID, eventID string) (bool, error) {
	key := fmt.Sprintf(readSetKeyFormat, userID)
	isMember, err := r.client.SIsMember(ctx, key, eventID).Result()
	if err != nil {
		return false, fmt.Errorf("is read %s for %s: %w", eventID, userID, err)
	}
	return isMember, nil
}
