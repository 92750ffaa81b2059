package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestReservationMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewReservationMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordReserved(ctx, uuid.New(), decimal.NewFromInt(6))
	m.RecordReserved(ctx, uuid.New(), decimal.NewFromInt(4))
	m.RecordRejected(ctx, "insufficient_stock")
	m.RecordResolved(ctx, "CONFIRMED", decimal.NewFromInt(4))
	m.RecordLockTimeout(ctx, "reserve")
	m.RecordSweep(ctx, 3, 1, 120*time.Millisecond)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics["reservation_created_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["reservation_rejected_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["reservation_resolved_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["reservation_lock_timeouts_total"]))
	assert.Equal(t, int64(3), sumOf(t, metrics["reservation_sweep_released_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["reservation_sweep_failed_total"]))

	quantity, ok := metrics["reservation_reserved_quantity_total"].Data.(metricdata.Sum[float64])
	require.True(t, ok)
	var held float64
	for _, dp := range quantity.DataPoints {
		held += dp.Value
	}
	assert.InDelta(t, 10.0, held, 0.0001)

	_, ok = metrics["reservation_sweep_duration_seconds"].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestReservationMetrics_NilIsNoop(t *testing.T) {
	var m *ReservationMetrics
	assert.NotPanics(t, func() {
		m.RecordReserved(context.Background(), uuid.New(), decimal.NewFromInt(1))
		m.RecordRejected(context.Background(), "x")
		m.RecordResolved(context.Background(), "EXPIRED", decimal.Zero)
		m.RecordLockTimeout(context.Background(), "confirm")
		m.RecordSweep(context.Background(), 0, 0, time.Second)
	})

	_, err := NewReservationMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}
