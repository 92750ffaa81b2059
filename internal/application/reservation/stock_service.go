package reservation

import (
	"context"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockLedgerService handles inbound stock and physical counts. It shares the key guard with
// the ReservationManager so ledger changes never interleave with a reservation decision.
type StockLedgerService struct {
	txScope  TransactionScope
	guard    KeyGuard
	clock    shared.Clock
	eventBus shared.EventBus
	logger   *zap.Logger
}

// NewStockLedgerService creates a new StockLedgerService
func NewStockLedgerService(txScope TransactionScope, guard KeyGuard, clock shared.Clock, logger *zap.Logger) *StockLedgerService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLedgerService{txScope: txScope, guard: guard, clock: clock, logger: logger}
}

// SetEventBus sets the event bus for stock events
func (s *StockLedgerService) SetEventBus(eventBus shared.EventBus) {
	s.eventBus = eventBus
}

// Receive adds inbound quantity, creating the stock level on first receipt
func (s *StockLedgerService) Receive(ctx context.Context, key reservation.StockKey, quantity decimal.Decimal) (*Availability, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "receive",
		telemetry.WithAttribute("stock.key", key.String()),
		telemetry.WithAttribute("stock.quantity", quantity.String()))
	defer span.End()

	if err := reservation.ValidateQuantity(quantity); err != nil {
		return nil, err
	}

	result, err := s.mutate(ctx, key, func(level *reservation.StockLevel, _ *Availability) error {
		return level.Receive(quantity, s.clock.Now())
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Stock received",
		zap.String("stock_key", key.String()),
		zap.String("quantity", quantity.String()),
		zap.String("physical", result.Physical.String()),
	)
	return result, nil
}

// Adjust overrides physical quantity with a counted value. The count may not fall below the
// quantity ACTIVE reservations already hold.
func (s *StockLedgerService) Adjust(ctx context.Context, key reservation.StockKey, counted decimal.Decimal, reason string) (*Availability, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "adjust",
		telemetry.WithAttribute("stock.key", key.String()),
		telemetry.WithAttribute("stock.counted", counted.String()))
	defer span.End()

	result, err := s.mutate(ctx, key, func(level *reservation.StockLevel, before *Availability) error {
		return level.AdjustTo(counted, before.Reserved, reason, s.clock.Now())
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Stock adjusted",
		zap.String("stock_key", key.String()),
		zap.String("physical", result.Physical.String()),
		zap.String("reason", reason),
	)
	return result, nil
}

func (s *StockLedgerService) mutate(ctx context.Context, key reservation.StockKey, fn func(level *reservation.StockLevel, before *Availability) error) (*Availability, error) {
	if key.IsZero() {
		return nil, shared.NewDomainError(reservation.CodeInvalidKey, "Product and warehouse are required")
	}

	var (
		result *Availability
		level  *reservation.StockLevel
	)
	err := WithGuard(ctx, s.guard, key, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			before, existing, err := readAvailability(ctx, repos, key, true)
			if err != nil {
				return err
			}

			isNew := existing == nil
			level = existing
			if isNew {
				if level, err = reservation.NewStockLevel(key, s.clock.Now()); err != nil {
					return err
				}
			}

			if err := fn(level, before); err != nil {
				return err
			}

			if isNew {
				err = repos.StockLevels().Create(ctx, level)
			} else {
				err = repos.StockLevels().SaveWithLock(ctx, level)
			}
			if err != nil {
				return err
			}

			result = &Availability{
				Key:       key,
				Physical:  level.PhysicalQuantity,
				Reserved:  before.Reserved,
				Available: level.Available(before.Reserved),
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	events := level.GetDomainEvents()
	level.ClearDomainEvents()
	if s.eventBus != nil && len(events) > 0 {
		if err := s.eventBus.Publish(ctx, events...); err != nil {
			s.logger.Warn("Failed to publish stock events", zap.Error(err))
		}
	}
	return result, nil
}
