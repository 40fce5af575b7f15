// Package repositories contains the Redis-backed adapters: the pub/sub
// broker behind the relay and the TTL-bounded mailbox and read-state
// stores. No client-side locking anywhere; correctness relies on the
// server's atomic list/set operations.
package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"notify-lab/contract"
	"notify-lab/domain/event"
)

// Broker relays event payloads across instances over Redis pub/sub.
type Broker struct {
	client *redis.Client
	log    *slog.Logger
}

func NewBroker(client *redis.Client, log *slog.Logger) *Broker {
	return &Broker{client: client, log: log}
}

func (b *Broker) Publish(ctx context.Context, channel event.Channel, payload []byte) error {
	if err := b.client.Publish(ctx, channel.Name(), payload).Err(); err != nil {
		return fmt.Errorf("publish on %s: %w", channel.Name(), err)
	}
	return nil
}

// Subscribe opens a subscription on the given channels. The first
// confirmation is awaited so a dead broker surfaces here, not on the
// first Receive.
func (b *Broker) Subscribe(ctx context.Context, channels ...event.Channel) (contract.ISubscription, error) {
	names := lo.Map(channels, func(c event.Channel, _ int) string { return c.Name() })

	ps := b.client.Subscribe(ctx, names...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", names, err)
	}

	b.log.Info("subscribed to relay channels", "channels", names)
	return &subscription{ps: ps, log: b.log}, nil
}

func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

type subscription struct {
	ps  *redis.PubSub
	log *slog.Logger
}

func (s *subscription) Receive(ctx context.Context) (contract.InboundMessage, error) {
	for {
		m, err := s.ps.ReceiveMessage(ctx)
		if err != nil {
			return contract.InboundMessage{}, err
		}
		channel, ok := event.ChannelByName(m.Channel)
		if !ok {
			// Can only happen if the subscription set and the channel
			// enum drift apart.
			s.log.Warn("message from unknown channel", "channel", m.Channel)
			continue
		}
		return contract.InboundMessage{Channel: channel, Payload: []byte(m.Payload)}, nil
	}
}

func (s *subscription) Close() error {
	return s.ps.Close()
}
