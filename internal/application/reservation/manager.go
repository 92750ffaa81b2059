package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ManagerConfig holds the reservation policy knobs
type ManagerConfig struct {
	// MaxTTL caps the lifetime a caller may request. Zero means no cap.
	MaxTTL time.Duration
	// IdempotencyTTL is how long an idempotency key remembers its reservation
	IdempotencyTTL time.Duration
}

// ReservationManager admits, confirms and cancels stock holds. Every mutation runs under the
// per-key guard and inside a single transaction, so it either fully applies or leaves no trace.
type ReservationManager struct {
	reservationRepo reservation.ReservationRepository
	txScope         TransactionScope
	guard           KeyGuard
	clock           shared.Clock
	eventBus        shared.EventBus
	idempotency     shared.IdempotencyStore
	metrics         *telemetry.ReservationMetrics
	logger          *zap.Logger
	cfg             ManagerConfig
}

// NewReservationManager creates a new ReservationManager
func NewReservationManager(
	reservationRepo reservation.ReservationRepository,
	txScope TransactionScope,
	guard KeyGuard,
	clock shared.Clock,
	cfg ManagerConfig,
	logger *zap.Logger,
) *ReservationManager {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &ReservationManager{
		reservationRepo: reservationRepo,
		txScope:         txScope,
		guard:           guard,
		clock:           clock,
		logger:          logger,
		cfg:             cfg,
	}
}

// SetEventBus sets the event bus used to publish lifecycle events after commit
func (m *ReservationManager) SetEventBus(eventBus shared.EventBus) {
	m.eventBus = eventBus
}

// SetIdempotencyStore enables idempotency keys on Reserve
func (m *ReservationManager) SetIdempotencyStore(store shared.IdempotencyStore) {
	m.idempotency = store
}

// SetMetrics sets the business metrics recorder
func (m *ReservationManager) SetMetrics(metrics *telemetry.ReservationMetrics) {
	m.metrics = metrics
}

// Reserve places an ACTIVE hold of cmd.Quantity on cmd.Key expiring cmd.TTL from now.
// It fails with *reservation.InsufficientStockError, without any state change, when the
// quantity exceeds what is available at the moment the guard is held.
func (m *ReservationManager) Reserve(ctx context.Context, cmd ReserveCommand) (*ReservationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", "reserve",
		telemetry.WithAttribute("stock.key", cmd.Key.String()),
		telemetry.WithAttribute("reservation.quantity", cmd.Quantity.String()))
	defer span.End()

	if err := m.validateReserve(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		r   *reservation.Reservation
		err error
	)
	if cmd.IdempotencyKey != "" && m.idempotency != nil {
		r, err = m.reserveIdempotent(ctx, cmd)
	} else {
		r, err = m.reserve(ctx, cmd)
	}
	if err != nil {
		m.observeFailure(ctx, "reserve", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := ToReservationResponse(r)
	telemetry.SetAttribute(span, "reservation.id", r.ID.String())
	return &resp, nil
}

func (m *ReservationManager) validateReserve(cmd ReserveCommand) error {
	if cmd.Key.IsZero() {
		return shared.NewDomainError(reservation.CodeInvalidKey, "Product and warehouse are required")
	}
	if err := reservation.ValidateQuantity(cmd.Quantity); err != nil {
		return err
	}
	if err := reservation.ValidateTTL(cmd.TTL); err != nil {
		return err
	}
	if m.cfg.MaxTTL > 0 && cmd.TTL > m.cfg.MaxTTL {
		return shared.NewDomainError(reservation.CodeInvalidTTL, "TTL exceeds the maximum of "+m.cfg.MaxTTL.String())
	}
	return cmd.Owner.Validate()
}

func (m *ReservationManager) reserve(ctx context.Context, cmd ReserveCommand) (*reservation.Reservation, error) {
	var created *reservation.Reservation
	err := WithGuard(ctx, m.guard, cmd.Key, func(ctx context.Context) error {
		return m.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			snapshot, _, err := readAvailability(ctx, repos, cmd.Key, true)
			if err != nil {
				return err
			}
			if cmd.Quantity.GreaterThan(snapshot.Available) {
				return &reservation.InsufficientStockError{
					Key:       cmd.Key,
					Requested: cmd.Quantity,
					Available: snapshot.Available,
				}
			}

			r, err := reservation.NewReservation(cmd.Key, cmd.Quantity, cmd.TTL, cmd.Owner, m.clock.Now())
			if err != nil {
				return err
			}
			if err := repos.Reservations().Create(ctx, r); err != nil {
				return err
			}
			created = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.metrics.RecordReserved(ctx, created.WarehouseID, created.Quantity)
	m.publish(ctx, created)
	m.logger.Debug("Reservation created",
		zap.String("reservation_id", created.ID.String()),
		zap.String("stock_key", cmd.Key.String()),
		zap.String("quantity", created.Quantity.String()),
		zap.Time("expires_at", created.ExpiresAt),
		zap.String("owner", created.Owner.String()),
	)
	return created, nil
}

// reserveIdempotent claims the idempotency key before reserving. A completed key replays the
// reservation it produced; a failed attempt releases the key so the caller may retry.
func (m *ReservationManager) reserveIdempotent(ctx context.Context, cmd ReserveCommand) (*reservation.Reservation, error) {
	storeKey := "reserve:" + cmd.IdempotencyKey

	result, claimed, err := m.idempotency.Claim(ctx, storeKey, m.cfg.IdempotencyTTL)
	if err != nil {
		return nil, err
	}
	if !claimed {
		id, err := uuid.Parse(result)
		if err != nil {
			return nil, reservation.NewStorageError("read idempotency record", err)
		}
		m.logger.Debug("Replaying idempotent reservation",
			zap.String("idempotency_key", cmd.IdempotencyKey),
			zap.String("reservation_id", id.String()),
		)
		return m.reservationRepo.FindByID(ctx, id)
	}

	r, err := m.reserve(ctx, cmd)
	if err != nil {
		if releaseErr := m.idempotency.Release(context.WithoutCancel(ctx), storeKey); releaseErr != nil {
			m.logger.Warn("Failed to release idempotency key",
				zap.String("idempotency_key", cmd.IdempotencyKey),
				zap.Error(releaseErr),
			)
		}
		return nil, err
	}

	if err := m.idempotency.Complete(context.WithoutCancel(ctx), storeKey, r.ID.String(), m.cfg.IdempotencyTTL); err != nil {
		m.logger.Warn("Failed to record idempotency result",
			zap.String("idempotency_key", cmd.IdempotencyKey),
			zap.String("reservation_id", r.ID.String()),
			zap.Error(err),
		)
	}
	return r, nil
}

// Confirm converts an ACTIVE hold into a physical stock deduction. A reservation that is no
// longer ACTIVE, e.g. already swept to EXPIRED, fails with *reservation.InvalidStateError.
func (m *ReservationManager) Confirm(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	return m.resolveByID(ctx, "confirm", id, func(r *reservation.Reservation, level *reservation.StockLevel, now time.Time) error {
		if err := r.Confirm(now); err != nil {
			return err
		}
		if level == nil {
			return reservation.NewStorageError("confirm reservation",
				errors.New("stock level missing for "+r.Key().String()))
		}
		return level.Deduct(r.Quantity, now)
	})
}

// Cancel releases an ACTIVE hold early. Physical stock is untouched.
func (m *ReservationManager) Cancel(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	return m.resolveByID(ctx, "cancel", id, func(r *reservation.Reservation, _ *reservation.StockLevel, now time.Time) error {
		return r.Cancel(now)
	})
}

// ReleaseExpired expires a reservation the sweeper selected. It re-reads the row under the key
// guard and returns released=false without error when the reservation was already resolved or is
// not yet due.
func (m *ReservationManager) ReleaseExpired(ctx context.Context, candidate *reservation.Reservation, now time.Time) (bool, error) {
	_, err := m.resolve(ctx, "expire", candidate.ID, candidate.Key(), func(r *reservation.Reservation, _ *reservation.StockLevel, _ time.Time) error {
		if !r.IsDue(now) {
			return errNothingToDo
		}
		return r.Expire(now)
	})
	if errors.Is(err, errNothingToDo) {
		return false, nil
	}
	if err != nil {
		m.observeFailure(ctx, "expire", err)
		return false, err
	}
	return true, nil
}

// errNothingToDo rolls back a resolve transaction that found nothing to change
var errNothingToDo = errors.New("nothing to do")

type resolveFunc func(r *reservation.Reservation, level *reservation.StockLevel, now time.Time) error

func (m *ReservationManager) resolveByID(ctx context.Context, op string, id uuid.UUID, fn resolveFunc) (*ReservationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", op,
		telemetry.WithAttribute("reservation.id", id.String()))
	defer span.End()

	// The unguarded read only discovers the key; the status check happens again under the guard.
	existing, err := m.reservationRepo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	r, err := m.resolve(ctx, op, id, existing.Key(), fn)
	if err != nil {
		m.observeFailure(ctx, op, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToReservationResponse(r)
	return &resp, nil
}

func (m *ReservationManager) resolve(ctx context.Context, op string, id uuid.UUID, key reservation.StockKey, fn resolveFunc) (*reservation.Reservation, error) {
	var (
		resolved *reservation.Reservation
		level    *reservation.StockLevel
	)
	err := WithGuard(ctx, m.guard, key, func(ctx context.Context) error {
		return m.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			level, err = repos.StockLevels().FindByKeyForUpdate(ctx, key)
			if err != nil && !errors.Is(err, shared.ErrNotFound) {
				return err
			}
			if err != nil {
				level = nil
			}

			r, err := repos.Reservations().FindByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}

			before := decimal.Zero
			if level != nil {
				before = level.PhysicalQuantity
			}

			if err := fn(r, level, m.clock.Now()); err != nil {
				return err
			}
			if err := repos.Reservations().UpdateStatus(ctx, r); err != nil {
				return err
			}
			if level != nil && !level.PhysicalQuantity.Equal(before) {
				if err := repos.StockLevels().SaveWithLock(ctx, level); err != nil {
					return err
				}
			}
			resolved = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.metrics.RecordResolved(ctx, resolved.Status.String(), resolved.Quantity)
	m.publish(ctx, resolved)
	m.logger.Debug("Reservation resolved",
		zap.String("operation", op),
		zap.String("reservation_id", resolved.ID.String()),
		zap.String("status", resolved.Status.String()),
	)
	return resolved, nil
}

// Get returns one reservation
func (m *ReservationManager) Get(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	r, err := m.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToReservationResponse(r)
	return &resp, nil
}

// List returns a page of reservations
func (m *ReservationManager) List(ctx context.Context, filter reservation.ReservationFilter) (*shared.Paginated[ReservationResponse], error) {
	if filter.PageSize <= 0 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	items, total, err := m.reservationRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToReservationResponses(items), total, filter.Page, filter.PageSize)
	return &page, nil
}

func (m *ReservationManager) publish(ctx context.Context, aggregate shared.AggregateRoot) {
	events := aggregate.GetDomainEvents()
	aggregate.ClearDomainEvents()
	if m.eventBus == nil || len(events) == 0 {
		return
	}
	if err := m.eventBus.Publish(ctx, events...); err != nil {
		m.logger.Warn("Failed to publish reservation events",
			zap.String("aggregate_id", aggregate.GetID().String()),
			zap.Error(err),
		)
	}
}

func (m *ReservationManager) observeFailure(ctx context.Context, op string, err error) {
	var insufficient *reservation.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		m.metrics.RecordRejected(ctx, "insufficient_stock")
	case errors.Is(err, shared.ErrLockTimeout):
		m.metrics.RecordLockTimeout(ctx, op)
		m.logger.Warn("Lock timeout", zap.String("operation", op), zap.Error(err))
	case errors.Is(err, shared.ErrStorage):
		m.logger.Error("Storage failure", zap.String("operation", op), zap.Error(err))
	}
}
