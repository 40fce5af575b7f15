//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"notify-lab/domain/event"
)

// Outlet is the push side of a live notification connection (one SSE
// stream, one socket, ...). A failed Send is terminal for the outlet.
type Outlet interface {
	Send(e event.Event) error
}

// IConnectionRegistry tracks the live outlets of the local process.
type IConnectionRegistry interface {
	Register(userID, connectionID string, out Outlet)
	Unregister(userID, connectionID string)
	SendToUser(userID string, e event.Event) int
	BroadcastToAllLocal(e event.Event) int
}

// InboundMessage is a payload received from a relay channel.
type InboundMessage struct {
	Channel event.Channel
	Payload []byte
}

// ISubscription is a live multi-channel broker subscription.
type ISubscription interface {
	Receive(ctx context.Context) (InboundMessage, error)
	Close() error
}

// IBroker is the cross-instance relay backbone.
type IBroker interface {
	Publish(ctx context.Context, channel event.Channel, payload []byte) error
	Subscribe(ctx context.Context, channels ...event.Channel) (ISubscription, error)
	Ping(ctx context.Context) error
}

// IMailbox is the durable, TTL-bounded polling fallback store.
type IMailbox interface {
	Append(ctx context.Context, target event.Target, eventID string, payload []byte) error
	Range(ctx context.Context, userID string, limit int) ([]string, error)
	RangeBroadcast(ctx context.Context, limit int) ([]string, error)
	Detail(ctx context.Context, userID, eventID string) (string, error)
}

// IReadTracker records which event ids a user has acknowledged.
// It is consulted only when rendering poll responses.
type IReadTracker interface {
	MarkRead(ctx context.Context, userID, eventID string) error
	ReadSet(ctx context.Context, userID string) (map[string]struct{}, error)
	IsRead(ctx context.Context, userID, eventID string) (bool, error)
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
