package persistence

import (
	"context"
	"fmt"
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/infrastructure/config"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Each transaction bounds row-lock waits with the configured lock timeout.
type GormTransactionScope struct {
	db          *gorm.DB
	driver      string
	lockTimeout time.Duration
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, driver string, lockTimeout time.Duration) *GormTransactionScope {
	return &GormTransactionScope{db: db, driver: driver, lockTimeout: lockTimeout}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appreservation.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyLockTimeout(tx); err != nil {
			return translateError("set lock timeout", "", 0, err)
		}
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

func (s *GormTransactionScope) applyLockTimeout(tx *gorm.DB) error {
	if s.lockTimeout <= 0 {
		return nil
	}
	switch s.driver {
	case config.DriverPostgres:
		return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())).Error
	case config.DriverMySQL:
		seconds := int(s.lockTimeout.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		return tx.Exec(fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)).Error
	default:
		// sqlite: busy_timeout is set once per connection
		return nil
	}
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Reservations returns the reservation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Reservations() reservation.ReservationRepository {
	return NewGormReservationRepository(r.tx)
}

// StockLevels returns the stock level repository scoped to the current transaction.
func (r *gormTransactionalRepositories) StockLevels() reservation.StockLevelRepository {
	return NewGormStockLevelRepository(r.tx)
}

var _ appreservation.TransactionScope = (*GormTransactionScope)(nil)
var _ appreservation.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
