package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact the domain announces after a state change, such as
// a recorded transaction batch or a finished compute pass. Events are
// dispatched in-process and never cross a serialization boundary.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// EventBase carries the identity every event shares. Concrete events embed
// it by value and obtain one through NewEventBase; the fields never change
// after construction.
type EventBase struct {
	id            uuid.UUID
	eventType     string
	occurredAt    time.Time
	aggregateID   uuid.UUID
	aggregateType string
	tenantID      uuid.UUID
}

// NewEventBase stamps a fresh event identity for the given aggregate.
func NewEventBase(eventType, aggregateType string, aggregateID, tenantID uuid.UUID) EventBase {
	return EventBase{
		id:            uuid.New(),
		eventType:     eventType,
		occurredAt:    time.Now(),
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		tenantID:      tenantID,
	}
}

// EventID returns the unique identifier of this event instance.
func (e *EventBase) EventID() uuid.UUID {
	return e.id
}

// EventType returns the registered name of the event.
func (e *EventBase) EventType() string {
	return e.eventType
}

// OccurredAt returns when the event was raised.
func (e *EventBase) OccurredAt() time.Time {
	return e.occurredAt
}

// AggregateID returns the aggregate the event speaks about.
func (e *EventBase) AggregateID() uuid.UUID {
	return e.aggregateID
}

// AggregateType returns the kind of aggregate the event speaks about.
func (e *EventBase) AggregateType() string {
	return e.aggregateType
}

// TenantID returns the tenant the event belongs to.
func (e *EventBase) TenantID() uuid.UUID {
	return e.tenantID
}
