package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics recorder is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// ReservationMetrics records reservation lifecycle activity. A nil *ReservationMetrics is valid
// and records nothing, so services work without metrics wired.
type ReservationMetrics struct {
	created          *Counter
	reservedQuantity *FloatCounter
	rejected         *Counter
	resolved         *Counter
	lockTimeouts     *Counter
	sweepReleased    *Counter
	sweepFailed      *Counter
	sweepDuration    *Histogram
}

// NewReservationMetrics creates the reservation instruments on meter.
func NewReservationMetrics(meter metric.Meter) (*ReservationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ReservationMetrics{}
	var err error
	if m.created, err = NewCounter(meter, "reservation_created_total",
		"Reservations admitted", "{reservation}"); err != nil {
		return nil, err
	}
	if m.reservedQuantity, err = NewFloatCounter(meter, "reservation_reserved_quantity_total",
		"Quantity placed on hold", "{unit}"); err != nil {
		return nil, err
	}
	if m.rejected, err = NewCounter(meter, "reservation_rejected_total",
		"Reservations rejected", "{reservation}"); err != nil {
		return nil, err
	}
	if m.resolved, err = NewCounter(meter, "reservation_resolved_total",
		"Reservations moved to a terminal status", "{reservation}"); err != nil {
		return nil, err
	}
	if m.lockTimeouts, err = NewCounter(meter, "reservation_lock_timeouts_total",
		"Operations that timed out waiting for a key lock", "{operation}"); err != nil {
		return nil, err
	}
	if m.sweepReleased, err = NewCounter(meter, "reservation_sweep_released_total",
		"Reservations expired by the sweeper", "{reservation}"); err != nil {
		return nil, err
	}
	if m.sweepFailed, err = NewCounter(meter, "reservation_sweep_failed_total",
		"Reservations the sweeper failed to expire", "{reservation}"); err != nil {
		return nil, err
	}
	if m.sweepDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "reservation_sweep_duration_seconds",
		Description: "Duration of expiration sweeps",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordReserved records an admitted hold.
func (m *ReservationMetrics) RecordReserved(ctx context.Context, warehouseID uuid.UUID, quantity decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrWarehouseID.String(warehouseID.String())}
	m.created.Inc(ctx, attrs...)
	m.reservedQuantity.Add(ctx, quantity.InexactFloat64(), attrs...)
}

// RecordRejected records a hold that was refused.
func (m *ReservationMetrics) RecordRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejected.Inc(ctx, AttrReason.String(reason))
}

// RecordResolved records a transition out of ACTIVE.
func (m *ReservationMetrics) RecordResolved(ctx context.Context, status string, _ decimal.Decimal) {
	if m == nil {
		return
	}
	m.resolved.Inc(ctx, AttrStatus.String(status))
}

// RecordLockTimeout records an operation that gave up waiting for a key lock.
func (m *ReservationMetrics) RecordLockTimeout(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.lockTimeouts.Inc(ctx, AttrOperation.String(operation))
}

// RecordSweep records the outcome of one sweep run.
func (m *ReservationMetrics) RecordSweep(ctx context.Context, released, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.sweepReleased.Add(ctx, int64(released))
	m.sweepFailed.Add(ctx, int64(failed))
	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	m.sweepDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}
