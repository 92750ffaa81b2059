package lock

import (
	"context"

	appreservation "github.com/erp/reservation/internal/application/reservation"
)

// DatabaseKeyGuard leaves serialization to the database. Every mutation locks the stock level row
// with SELECT ... FOR UPDATE before touching reservations, so concurrent writers on one key queue
// on that row and the transaction lock_timeout bounds the wait. Keys without a stock level row
// cannot be reserved against, so there is nothing to serialize for them.
type DatabaseKeyGuard struct{}

// NewDatabaseKeyGuard creates a DatabaseKeyGuard
func NewDatabaseKeyGuard() DatabaseKeyGuard {
	return DatabaseKeyGuard{}
}

// Acquire returns immediately unless ctx is already done
func (DatabaseKeyGuard) Acquire(ctx context.Context, _ string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return func() {}, nil
}

var _ appreservation.KeyGuard = DatabaseKeyGuard{}
