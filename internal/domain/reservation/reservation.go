package reservation

import (
	"time"

	"github.com/erp/reservation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reservation is a time-bounded hold on a quantity of one product in one warehouse.
// Reservations are never deleted; once resolved they stay for audit.
type Reservation struct {
	shared.BaseAggregateRoot
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    decimal.Decimal
	Status      Status
	Owner       OwnerRef
	ExpiresAt   time.Time
	ResolvedAt  *time.Time
}

// NewReservation creates an ACTIVE reservation expiring ttl after now
func NewReservation(key StockKey, quantity decimal.Decimal, ttl time.Duration, owner OwnerRef, now time.Time) (*Reservation, error) {
	if key.IsZero() {
		return nil, shared.NewDomainError(CodeInvalidKey, "Product and warehouse are required")
	}
	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	if err := ValidateTTL(ttl); err != nil {
		return nil, err
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	r := &Reservation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		ProductID:         key.ProductID,
		WarehouseID:       key.WarehouseID,
		Quantity:          quantity,
		Status:            StatusActive,
		Owner:             owner,
		ExpiresAt:         now.Add(ttl),
	}
	r.AddDomainEvent(NewReservationCreatedEvent(r))
	return r, nil
}

// QuantityScale is the number of decimal places stored for every quantity column
const QuantityScale = 4

// ValidateQuantity requires a strictly positive quantity with at most QuantityScale decimal places
func ValidateQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return shared.NewDomainError(CodeInvalidQuantity, "Quantity must be greater than zero")
	}
	return validateScale(q)
}

func validateScale(q decimal.Decimal) error {
	if q.Exponent() < -QuantityScale && !q.Equal(q.Round(QuantityScale)) {
		return shared.NewDomainError(CodeInvalidQuantity, "Quantity supports at most 4 decimal places")
	}
	return nil
}

// ValidateTTL requires a strictly positive time to live
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return shared.NewDomainError(CodeInvalidTTL, "TTL must be greater than zero")
	}
	return nil
}

// Key returns the stock key this reservation holds quantity against
func (r *Reservation) Key() StockKey {
	return NewStockKey(r.ProductID, r.WarehouseID)
}

// IsActive returns true while the reservation counts against availability
func (r *Reservation) IsActive() bool {
	return r.Status == StatusActive
}

// IsDue returns true if the reservation is ACTIVE and its deadline is at or before now
func (r *Reservation) IsDue(now time.Time) bool {
	return r.IsActive() && !r.ExpiresAt.After(now)
}

// Confirm marks the hold as converted into a real stock deduction
func (r *Reservation) Confirm(at time.Time) error {
	if err := r.transition(StatusConfirmed, at); err != nil {
		return err
	}
	r.AddDomainEvent(NewReservationConfirmedEvent(r))
	return nil
}

// Cancel releases the hold early
func (r *Reservation) Cancel(at time.Time) error {
	if err := r.transition(StatusCancelled, at); err != nil {
		return err
	}
	r.AddDomainEvent(NewReservationCancelledEvent(r))
	return nil
}

// Expire releases the hold because its deadline passed
func (r *Reservation) Expire(at time.Time) error {
	if err := r.transition(StatusExpired, at); err != nil {
		return err
	}
	r.AddDomainEvent(NewReservationExpiredEvent(r))
	return nil
}

func (r *Reservation) transition(target Status, at time.Time) error {
	if !r.Status.CanTransitionTo(target) {
		return &InvalidStateError{ID: r.ID, Current: r.Status, Attempted: target}
	}
	r.Status = target
	resolved := at
	r.ResolvedAt = &resolved
	r.Touch(at)
	r.IncrementVersion()
	return nil
}
