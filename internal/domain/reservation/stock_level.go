package reservation

import (
	"time"

	"github.com/erp/reservation/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockLevel is the physical on-hand quantity for one product in one warehouse
type StockLevel struct {
	shared.BaseAggregateRoot
	StockKey
	PhysicalQuantity decimal.Decimal
}

// NewStockLevel creates an empty stock level
func NewStockLevel(key StockKey, now time.Time) (*StockLevel, error) {
	if key.IsZero() {
		return nil, shared.NewDomainError(CodeInvalidKey, "Product and warehouse are required")
	}
	return &StockLevel{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		StockKey:          key,
		PhysicalQuantity:  decimal.Zero,
	}, nil
}

// Available returns physical quantity minus the sum held by ACTIVE reservations
func (s *StockLevel) Available(activeReserved decimal.Decimal) decimal.Decimal {
	return s.PhysicalQuantity.Sub(activeReserved)
}

// Receive adds inbound quantity
func (s *StockLevel) Receive(quantity decimal.Decimal, at time.Time) error {
	if err := ValidateQuantity(quantity); err != nil {
		return err
	}
	s.PhysicalQuantity = s.PhysicalQuantity.Add(quantity)
	s.Touch(at)
	s.AddDomainEvent(NewStockReceivedEvent(s, quantity))
	return nil
}

// Deduct removes confirmed quantity. Physical quantity never goes below zero.
func (s *StockLevel) Deduct(quantity decimal.Decimal, at time.Time) error {
	if err := ValidateQuantity(quantity); err != nil {
		return err
	}
	if quantity.GreaterThan(s.PhysicalQuantity) {
		return &InsufficientStockError{Key: s.StockKey, Requested: quantity, Available: s.PhysicalQuantity}
	}
	s.PhysicalQuantity = s.PhysicalQuantity.Sub(quantity)
	s.Touch(at)
	return nil
}

// AdjustTo sets an absolute counted quantity. The new value may not drop below what ACTIVE
// reservations already hold.
func (s *StockLevel) AdjustTo(counted, activeReserved decimal.Decimal, reason string, at time.Time) error {
	if counted.IsNegative() {
		return shared.NewDomainError(CodeInvalidQuantity, "Counted quantity cannot be negative")
	}
	if err := validateScale(counted); err != nil {
		return err
	}
	if counted.LessThan(activeReserved) {
		return &InsufficientStockError{Key: s.StockKey, Requested: activeReserved, Available: counted}
	}
	previous := s.PhysicalQuantity
	s.PhysicalQuantity = counted
	s.Touch(at)
	s.AddDomainEvent(NewStockAdjustedEvent(s, previous, reason))
	return nil
}
