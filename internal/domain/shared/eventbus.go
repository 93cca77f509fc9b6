package shared

import "context"

// EventHandler consumes domain events, the recompute scheduling path is
// the main implementer.
type EventHandler interface {
	// Handle processes a single domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler wants.
	// An empty slice subscribes the handler to every event.
	EventTypes() []string
}

// EventPublisher is the write side of the bus. Recorders and dispatchers
// hold this interface so they can emit without seeing subscribers.
type EventPublisher interface {
	// Publish delivers one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber is the read side of the bus.
type EventSubscriber interface {
	// Subscribe registers a handler for the given event types, or for
	// all events when none are named
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a previously registered handler
	Unsubscribe(handler EventHandler)
}

// EventBus combines both sides with lifecycle control over the worker
// goroutines doing the delivery.
type EventBus interface {
	EventPublisher
	EventSubscriber
	// Start begins background delivery
	Start(ctx context.Context) error
	// Stop drains in-flight events and shuts delivery down
	Stop(ctx context.Context) error
}
