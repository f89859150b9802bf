package shared

import "context"

// EventHandler consumes events from the bus.
//
// EventTypes lists the event types the handler wants when it is subscribed
// without explicit types; nil means every event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher publishes domain events.
//
// Publishers used by the document pipeline are fire-and-forget: Publish must
// not block the caller on handler work, and handler failures are never
// reported back to the publisher.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent)
}

// EventSubscriber registers handlers
type EventSubscriber interface {
	Subscribe(handler EventHandler, eventTypes ...string)
}

// EventBus is the publisher side used by services plus the lifecycle the
// server drives: Start before serving, Stop to drain on shutdown.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher
func (NopPublisher) Publish(context.Context, ...DomainEvent) {}
