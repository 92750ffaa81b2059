package reservation

import (
	"context"

	"github.com/erp/reservation/internal/domain/reservation"
)

// TransactionScope provides transactional access to the reservation repositories.
// All repository operations inside fn share one database transaction and are
// committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to repositories bound to the current transaction.
// Lock ordering inside a transaction is always stock level row first, then reservation row.
type TransactionalRepositories interface {
	Reservations() reservation.ReservationRepository
	StockLevels() reservation.StockLevelRepository
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// It is only suitable for tests whose repositories are already atomic.
type NoOpTransactionScope struct {
	reservationRepo reservation.ReservationRepository
	stockRepo       reservation.StockLevelRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(reservationRepo reservation.ReservationRepository, stockRepo reservation.StockLevelRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{reservationRepo: reservationRepo, stockRepo: stockRepo}
}

// Execute calls fn directly.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Reservations returns the reservation repository.
func (s *NoOpTransactionScope) Reservations() reservation.ReservationRepository {
	return s.reservationRepo
}

// StockLevels returns the stock level repository.
func (s *NoOpTransactionScope) StockLevels() reservation.StockLevelRepository {
	return s.stockRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
