package reservation

import (
	"context"
	"errors"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
)

// Availability is a consistent snapshot of one stock key
type Availability struct {
	Key       reservation.StockKey
	Physical  decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal
}

// AvailabilityCalculator derives available = physical - sum(ACTIVE) for a stock key
type AvailabilityCalculator struct {
	txScope TransactionScope
	guard   KeyGuard
}

// NewAvailabilityCalculator creates a new AvailabilityCalculator
func NewAvailabilityCalculator(txScope TransactionScope, guard KeyGuard) *AvailabilityCalculator {
	return &AvailabilityCalculator{txScope: txScope, guard: guard}
}

// Available reads the stock level and the ACTIVE reservations under the key guard and a row lock,
// so no concurrent mutation can be observed half applied.
func (c *AvailabilityCalculator) Available(ctx context.Context, key reservation.StockKey) (*Availability, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "availability", "get",
		telemetry.WithAttribute("stock.key", key.String()))
	defer span.End()

	if key.IsZero() {
		return nil, shared.NewDomainError(reservation.CodeInvalidKey, "Product and warehouse are required")
	}

	var snapshot *Availability
	err := WithGuard(ctx, c.guard, key, func(ctx context.Context) error {
		return c.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			snapshot, _, err = readAvailability(ctx, repos, key, true)
			return err
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return snapshot, nil
}

// readAvailability must run inside a transaction. The stock level row is returned when it exists
// so callers can mutate it without a second read.
func readAvailability(ctx context.Context, repos TransactionalRepositories, key reservation.StockKey, forUpdate bool) (*Availability, *reservation.StockLevel, error) {
	var (
		level *reservation.StockLevel
		err   error
	)
	if forUpdate {
		level, err = repos.StockLevels().FindByKeyForUpdate(ctx, key)
	} else {
		level, err = repos.StockLevels().FindByKey(ctx, key)
	}
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, nil, err
	}

	physical := decimal.Zero
	if level != nil {
		physical = level.PhysicalQuantity
	}

	reserved, err := repos.Reservations().SumActive(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	return &Availability{
		Key:       key,
		Physical:  physical,
		Reserved:  reserved,
		Available: physical.Sub(reserved),
	}, level, nil
}
