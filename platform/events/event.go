// Package events is the in-process publish/subscribe layer modules use to
// react to each other's writes without importing each other.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName doubles as the
// subscription key.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the publish time. Embed it in concrete events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps the current UTC time.
func NewBaseEvent() BaseEvent { return NewBaseEventAt(time.Now()) }

// NewBaseEventAt stamps t, normalized to UTC. Callers with an injected
// clock use it so events agree with the rows they describe.
func NewBaseEventAt(t time.Time) BaseEvent { return BaseEvent{Timestamp: t.UTC()} }

// Handler reacts to one event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus routes events to the handlers subscribed under their name.
type Bus interface {
	// Publish returns immediately. Each handler runs on its own goroutine,
	// detached from ctx cancellation; failures are logged and dropped, so
	// delivery is at-most-once.
	Publish(ctx context.Context, event Event)

	// PublishSync runs every handler and joins their errors.
	PublishSync(ctx context.Context, event Event) error

	Subscribe(eventName string, handler Handler)
}
