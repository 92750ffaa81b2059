package reservation

import (
	"time"

	"github.com/erp/reservation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeReservation = "Reservation"
	AggregateTypeStockLevel  = "StockLevel"
)

// Event type constants
const (
	EventTypeReservationCreated   = "ReservationCreated"
	EventTypeReservationConfirmed = "ReservationConfirmed"
	EventTypeReservationCancelled = "ReservationCancelled"
	EventTypeReservationExpired   = "ReservationExpired"
	EventTypeStockReceived        = "StockReceived"
	EventTypeStockAdjusted        = "StockAdjusted"
)

// ReservationEvent carries the reservation snapshot shared by every lifecycle event
type ReservationEvent struct {
	shared.BaseDomainEvent
	ReservationID uuid.UUID       `json:"reservation_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Status        Status          `json:"status"`
	Owner         OwnerRef        `json:"owner"`
	ExpiresAt     time.Time       `json:"expires_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

func newReservationEvent(eventType string, r *Reservation) ReservationEvent {
	at := r.UpdatedAt
	if r.ResolvedAt != nil {
		at = *r.ResolvedAt
	}
	return ReservationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeReservation, r.ID, at),
		ReservationID:   r.ID,
		ProductID:       r.ProductID,
		WarehouseID:     r.WarehouseID,
		Quantity:        r.Quantity,
		Status:          r.Status,
		Owner:           r.Owner,
		ExpiresAt:       r.ExpiresAt,
		ResolvedAt:      r.ResolvedAt,
	}
}

// ReservationCreatedEvent is raised when a hold is admitted
type ReservationCreatedEvent struct {
	ReservationEvent
}

// NewReservationCreatedEvent creates a new ReservationCreatedEvent
func NewReservationCreatedEvent(r *Reservation) *ReservationCreatedEvent {
	return &ReservationCreatedEvent{ReservationEvent: newReservationEvent(EventTypeReservationCreated, r)}
}

// ReservationConfirmedEvent is raised when a hold becomes a stock deduction
type ReservationConfirmedEvent struct {
	ReservationEvent
}

// NewReservationConfirmedEvent creates a new ReservationConfirmedEvent
func NewReservationConfirmedEvent(r *Reservation) *ReservationConfirmedEvent {
	return &ReservationConfirmedEvent{ReservationEvent: newReservationEvent(EventTypeReservationConfirmed, r)}
}

// ReservationCancelledEvent is raised when a hold is released early
type ReservationCancelledEvent struct {
	ReservationEvent
}

// NewReservationCancelledEvent creates a new ReservationCancelledEvent
func NewReservationCancelledEvent(r *Reservation) *ReservationCancelledEvent {
	return &ReservationCancelledEvent{ReservationEvent: newReservationEvent(EventTypeReservationCancelled, r)}
}

// ReservationExpiredEvent is raised by the sweeper
type ReservationExpiredEvent struct {
	ReservationEvent
}

// NewReservationExpiredEvent creates a new ReservationExpiredEvent
func NewReservationExpiredEvent(r *Reservation) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{ReservationEvent: newReservationEvent(EventTypeReservationExpired, r)}
}

// StockReceivedEvent is raised when inbound stock increases physical quantity
type StockReceivedEvent struct {
	shared.BaseDomainEvent
	ProductID        uuid.UUID       `json:"product_id"`
	WarehouseID      uuid.UUID       `json:"warehouse_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	PhysicalQuantity decimal.Decimal `json:"physical_quantity"`
}

// NewStockReceivedEvent creates a new StockReceivedEvent
func NewStockReceivedEvent(s *StockLevel, quantity decimal.Decimal) *StockReceivedEvent {
	return &StockReceivedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeStockReceived, AggregateTypeStockLevel, s.ID, s.UpdatedAt),
		ProductID:        s.ProductID,
		WarehouseID:      s.WarehouseID,
		Quantity:         quantity,
		PhysicalQuantity: s.PhysicalQuantity,
	}
}

// StockAdjustedEvent is raised when a count overrides physical quantity
type StockAdjustedEvent struct {
	shared.BaseDomainEvent
	ProductID        uuid.UUID       `json:"product_id"`
	WarehouseID      uuid.UUID       `json:"warehouse_id"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
	PhysicalQuantity decimal.Decimal `json:"physical_quantity"`
	Reason           string          `json:"reason,omitempty"`
}

// NewStockAdjustedEvent creates a new StockAdjustedEvent
func NewStockAdjustedEvent(s *StockLevel, previous decimal.Decimal, reason string) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeStockAdjusted, AggregateTypeStockLevel, s.ID, s.UpdatedAt),
		ProductID:        s.ProductID,
		WarehouseID:      s.WarehouseID,
		PreviousQuantity: previous,
		PhysicalQuantity: s.PhysicalQuantity,
		Reason:           reason,
	}
}
