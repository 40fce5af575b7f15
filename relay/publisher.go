// Package relay implements the cross-instance event relay: the publish
// side (serialize, persist for polling, broadcast on the selected
// channels) and the subscribe side (one supervised listener per process
// driving local delivery).
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"notify-lab/contract"
	"notify-lab/domain/event"
)

// Event types emitted by the convenience entry points.
const (
	TypePersonalMessage    = "personal-message"
	TypeBroadcast          = "broadcast"
	TypeUrgentNotification = "urgent-notification"
	TypeSystemNotification = "system-notification"
)

// Publisher accepts new events and pushes them into the relay.
type Publisher struct {
	log          *slog.Logger
	broker       contract.IBroker
	mailbox      contract.IMailbox
	names        event.Resolver
	limiter      *rate.Limiter
	storeTimeout time.Duration
}

// NewPublisher builds a publisher. perSecond/burst bound the pacing of
// bulk sends; storeTimeout bounds every blocking broker/store call.
func NewPublisher(log *slog.Logger, broker contract.IBroker, mailbox contract.IMailbox,
	names event.Resolver, perSecond float64, burst int, storeTimeout time.Duration) *Publisher {
	return &Publisher{
		log:          log,
		broker:       broker,
		mailbox:      mailbox,
		names:        names,
		limiter:      rate.NewLimiter(rate.Limit(perSecond), burst),
		storeTimeout: storeTimeout,
	}
}

// Publish serializes e, persists it for poll consumers and broadcasts
// it on the channels its priority and category select. A serialization
// failure aborts before any side effect. A persistence failure is
// logged and does not stop the channel publish (the mailbox is
// best-effort); the returned error reflects the channel publish alone.
func (p *Publisher) Publish(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("serialize event %s: %w", e.ID, err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	if err := p.mailbox.Append(storeCtx, e.Target, e.ID, payload); err != nil {
		p.log.Error("mailbox append failed, poll consumers will miss this event",
			"event_id", e.ID, "target", e.Target.String(), "error", err)
	}
	cancel()

	var publishErr error
	for _, channel := range event.Channels(e) {
		channelCtx, cancel := context.WithTimeout(ctx, p.storeTimeout)
		err := p.broker.Publish(channelCtx, channel, payload)
		cancel()
		if err != nil {
			p.log.Error("channel publish failed",
				"event_id", e.ID, "channel", channel.Name(), "error", err)
			publishErr = errors.Join(publishErr, err)
		}
	}
	if publishErr != nil {
		return fmt.Errorf("publish event %s: %w", e.ID, publishErr)
	}

	p.log.Info("event published", "event_id", e.ID, "target", e.Target.String(), "type", e.Type)
	return nil
}

// PublishPersonal sends a normal-priority message to one user.
func (p *Publisher) PublishPersonal(ctx context.Context, targetUserID, message, publisherID string) error {
	e := event.New(event.UserTarget(targetUserID), TypePersonalMessage, message, publisherID, p.names)
	return p.Publish(ctx, e)
}

// PublishBroadcast sends a normal-priority message to everyone.
func (p *Publisher) PublishBroadcast(ctx context.Context, message, publisherID string) error {
	e := event.New(event.BroadcastTarget(), TypeBroadcast, message, publisherID, p.names)
	return p.Publish(ctx, e)
}

// PublishUrgent sends a high-priority message, which additionally goes
// out on the urgent channel.
func (p *Publisher) PublishUrgent(ctx context.Context, target event.Target, title, message, publisherID string) error {
	e := event.New(target, TypeUrgentNotification, message, publisherID, p.names)
	e.Priority = event.PriorityHigh
	e.Title = title
	e.Urgent = true
	return p.Publish(ctx, e)
}

// PublishSystem sends a system notification to everyone. System events
// stay on the base channel; the system flag carries the classification.
func (p *Publisher) PublishSystem(ctx context.Context, message, publisherID string) error {
	e := event.New(event.BroadcastTarget(), TypeSystemNotification, message, publisherID, p.names)
	e.Priority = event.PriorityHigh
	e.Category = event.CategorySystem
	e.System = true
	return p.Publish(ctx, e)
}

// PublishBulkPersonal sends one personal message per target user,
// paced by the token bucket so a large batch cannot overload the
// broker. One target's failure never aborts the remaining targets; the
// returned count is the number of successful publishes. Cancellation
// stops the run and returns the count so far.
func (p *Publisher) PublishBulkPersonal(ctx context.Context, targetUserIDs []string, message, publisherID string) (int, error) {
	success := 0
	for _, userID := range targetUserIDs {
		if err := p.limiter.Wait(ctx); err != nil {
			return success, err
		}
		if err := p.PublishPersonal(ctx, userID, message, publisherID); err != nil {
			p.log.Error("bulk publish failed for target", "user_id", userID, "error", err)
			continue
		}
		success++
	}

	p.log.Info("bulk personal publish done",
		"success", success, "total", len(targetUserIDs), "publisher_id", publisherID)
	return success, nil
}
