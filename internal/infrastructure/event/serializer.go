package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
)

// EventSerializer handles JSON serialization of domain events. Deserialization needs the event
// type registered with a constructor for its concrete Go type.
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]func() shared.DomainEvent
}

// NewEventSerializer creates an empty serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]func() shared.DomainEvent)}
}

// NewReservationEventSerializer creates a serializer that knows every reservation and stock event
func NewReservationEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register(reservation.EventTypeReservationCreated, func() shared.DomainEvent { return &reservation.ReservationCreatedEvent{} })
	s.Register(reservation.EventTypeReservationConfirmed, func() shared.DomainEvent { return &reservation.ReservationConfirmedEvent{} })
	s.Register(reservation.EventTypeReservationCancelled, func() shared.DomainEvent { return &reservation.ReservationCancelledEvent{} })
	s.Register(reservation.EventTypeReservationExpired, func() shared.DomainEvent { return &reservation.ReservationExpiredEvent{} })
	s.Register(reservation.EventTypeStockReceived, func() shared.DomainEvent { return &reservation.StockReceivedEvent{} })
	s.Register(reservation.EventTypeStockAdjusted, func() shared.DomainEvent { return &reservation.StockAdjustedEvent{} })
	return s
}

// Register associates eventType with a constructor for its concrete type
func (s *EventSerializer) Register(eventType string, factory func() shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[eventType] = factory
}

// Serialize serializes a domain event to JSON bytes
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes JSON bytes into the registered type for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}
