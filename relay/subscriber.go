package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"notify-lab/contract"
	"notify-lab/domain/event"
	"notify-lab/observability"
)

// Stats is a snapshot of the subscriber's processing counters.
type Stats struct {
	Processed   uint64  `json:"totalProcessed"`
	Succeeded   uint64  `json:"successful"`
	Failed      uint64  `json:"failed"`
	SuccessRate float64 `json:"successRate"`
}

// Subscriber is the per-process listener on the relay channels. It
// decodes incoming payloads and drives local delivery through the
// connection registry. Run under the supervisor it reconnects
// automatically with backoff after a broker failure.
type Subscriber struct {
	log         *slog.Logger
	broker      contract.IBroker
	connections contract.IConnectionRegistry
	metrics     *observability.RelayMetrics

	processed atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64

	mu  sync.Mutex
	sub contract.ISubscription
}

func NewSubscriber(log *slog.Logger, broker contract.IBroker,
	connections contract.IConnectionRegistry, metrics *observability.RelayMetrics) *Subscriber {
	return &Subscriber{log: log, broker: broker, connections: connections, metrics: metrics}
}

// Run subscribes to the normal, urgent and system channels and
// processes payloads in receipt order until the context ends or the
// broker connection breaks. A broker error is returned so the
// supervisor restarts the listener.
func (s *Subscriber) Run(ctx context.Context) error {
	sub, err := s.broker.Subscribe(ctx,
		event.ChannelNotifications, event.ChannelUrgent, event.ChannelSystem)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sub = nil
		s.mu.Unlock()
		_ = sub.Close()
	}()

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Debug("Context done, stopping relay listener")
				return nil
			}
			return err
		}
		s.handle(msg)
	}
}

// Restart tears down the live subscription. The supervisor observes the
// resulting receive error and brings the listener back up; this is the
// manual recovery hook for the admin surface.
func (s *Subscriber) Restart() {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()

	if sub != nil {
		s.log.Info("relay listener restart requested")
		_ = sub.Close()
	}
}

// handle decodes one payload and dispatches it. Undecodable payloads
// are dropped and counted; there is no redelivery.
func (s *Subscriber) handle(msg contract.InboundMessage) {
	s.processed.Add(1)
	if s.metrics != nil {
		s.metrics.Processed.Inc()
	}

	var e event.Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		s.failed.Add(1)
		if s.metrics != nil {
			s.metrics.Failed.Inc()
		}
		s.log.Warn("dropping undecodable relay payload",
			"channel", msg.Channel.Name(), "error", err)
		return
	}

	delivered := 0
	switch msg.Channel {
	case event.ChannelNotifications:
		delivered = s.deliver(e)
	case event.ChannelUrgent:
		e.Urgent = true
		e.Priority = event.PriorityHigh
		delivered = s.deliver(e)
	case event.ChannelSystem:
		// System messages always go to every local connection.
		e.System = true
		e.Category = event.CategorySystem
		delivered = s.connections.BroadcastToAllLocal(e)
	}

	s.succeeded.Add(1)
	if s.metrics != nil {
		s.metrics.Succeeded.Inc()
		s.metrics.Delivered.Add(float64(delivered))
	}

	s.log.Debug("relay payload handled",
		"event_id", e.ID, "channel", msg.Channel.Name(), "delivered", delivered)
}

// deliver applies the broadcast/targeted branching. A target with no
// local connections is not an error; the event silently falls through
// to the mailbox, which a later poll consults.
func (s *Subscriber) deliver(e event.Event) int {
	if e.Target.IsBroadcast() {
		return s.connections.BroadcastToAllLocal(e)
	}
	return s.connections.SendToUser(e.Target.UserID(), e)
}

// Stats snapshots the processing counters.
func (s *Subscriber) Stats() Stats {
	processed := s.processed.Load()
	succeeded := s.succeeded.Load()

	rate := 100.0
	if processed > 0 {
		rate = float64(succeeded) / float64(processed) * 100.0
	}

	return Stats{
		Processed:   processed,
		Succeeded:   succeeded,
		Failed:      s.failed.Load(),
		SuccessRate: rate,
	}
}
