package reservation

import (
	"context"
	"time"

	"github.com/erp/reservation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationRepository persists reservations
type ReservationRepository interface {
	// FindByID returns the reservation or a *ReservationNotFoundError
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// FindByIDForUpdate reads the reservation and locks its row until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// FindAll returns a page of reservations matching the filter
	FindAll(ctx context.Context, filter ReservationFilter) ([]Reservation, int64, error)
	// SumActive returns the total quantity held by ACTIVE reservations for the key
	SumActive(ctx context.Context, key StockKey) (decimal.Decimal, error)
	// FindDue returns up to limit ACTIVE reservations with expires_at <= now that sort after
	// the cursor, ordered by (expires_at, id)
	FindDue(ctx context.Context, now time.Time, after *DueCursor, limit int) ([]Reservation, error)
	// FindResolvedBetween returns up to limit reservations resolved in [from, to) with id greater
	// than after, ordered by id
	FindResolvedBetween(ctx context.Context, from, to time.Time, after *uuid.UUID, limit int) ([]Reservation, error)
	// Create inserts a new reservation
	Create(ctx context.Context, r *Reservation) error
	// UpdateStatus persists a transition out of ACTIVE. It only succeeds if the stored row is still
	// ACTIVE and returns shared.ErrConcurrencyConflict otherwise.
	UpdateStatus(ctx context.Context, r *Reservation) error
}

// StockLevelRepository persists physical stock levels
type StockLevelRepository interface {
	// FindByKey returns the stock level or shared.ErrNotFound
	FindByKey(ctx context.Context, key StockKey) (*StockLevel, error)
	// FindByKeyForUpdate reads and locks the stock level row until the transaction ends
	FindByKeyForUpdate(ctx context.Context, key StockKey) (*StockLevel, error)
	// Create inserts a new stock level
	Create(ctx context.Context, s *StockLevel) error
	// SaveWithLock updates the row if its version matches, then increments the version
	SaveWithLock(ctx context.Context, s *StockLevel) error
}

// DueCursor is the keyset position of the last reservation a sweep looked at
type DueCursor struct {
	ExpiresAt time.Time
	ID        uuid.UUID
}

// ReservationFilter narrows reservation listings
type ReservationFilter struct {
	shared.Filter
	ProductID   *uuid.UUID
	WarehouseID *uuid.UUID
	Status      *Status
	OwnerType   string
	OwnerID     string
}

// DefaultReservationFilter returns a filter for the first page, newest first
func DefaultReservationFilter() ReservationFilter {
	return ReservationFilter{Filter: shared.DefaultFilter()}
}
