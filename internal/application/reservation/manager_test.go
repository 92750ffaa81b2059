package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/cache"
	"github.com/erp/reservation/internal/infrastructure/config"
	"github.com/erp/reservation/internal/infrastructure/event"
	"github.com/erp/reservation/internal/infrastructure/lock"
	"github.com/erp/reservation/internal/infrastructure/persistence"
	"github.com/erp/reservation/tests/testutil"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	db           *persistence.Database
	clock        *testutil.ManualClock
	repo         *persistence.GormReservationRepository
	manager      *appreservation.ReservationManager
	sweeper      *appreservation.ExpirationSweeper
	ledger       *appreservation.StockLedgerService
	availability *appreservation.AvailabilityCalculator
	events       *testutil.RecordingEventHandler
	bus          *event.InMemoryEventBus
}

func newFixture(t *testing.T, guard appreservation.KeyGuard) *fixture {
	t.Helper()
	if guard == nil {
		guard = lock.NewLocalKeyGuard(5 * time.Second)
	}

	db := testutil.NewSQLiteDatabase(t)
	clock := testutil.NewManualClock(testutil.BaseTime)
	repo := persistence.NewGormReservationRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB, config.DriverSQLite, time.Second)

	events := testutil.NewRecordingEventHandler(
		reservation.EventTypeReservationCreated,
		reservation.EventTypeReservationConfirmed,
		reservation.EventTypeReservationCancelled,
		reservation.EventTypeReservationExpired,
		reservation.EventTypeStockReceived,
		reservation.EventTypeStockAdjusted,
	)
	bus := event.NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(events)
	require.NoError(t, bus.Start(context.Background()))

	manager := appreservation.NewReservationManager(repo, txScope, guard, clock, appreservation.ManagerConfig{
		MaxTTL:         24 * time.Hour,
		IdempotencyTTL: time.Hour,
	}, zap.NewNop())
	manager.SetEventBus(bus)
	manager.SetIdempotencyStore(cache.NewInMemoryIdempotencyStore(100, time.Hour))

	ledger := appreservation.NewStockLedgerService(txScope, guard, clock, zap.NewNop())
	ledger.SetEventBus(bus)

	return &fixture{
		db:           db,
		clock:        clock,
		repo:         repo,
		manager:      manager,
		sweeper:      appreservation.NewExpirationSweeper(repo, manager, clock, 2, zap.NewNop()),
		ledger:       ledger,
		availability: appreservation.NewAvailabilityCalculator(txScope, guard),
		events:       events,
		bus:          bus,
	}
}

func (f *fixture) receive(t *testing.T, key reservation.StockKey, qty int64) {
	t.Helper()
	_, err := f.ledger.Receive(context.Background(), key, decimal.NewFromInt(qty))
	require.NoError(t, err)
}

func (f *fixture) reserve(key reservation.StockKey, qty int64, ttl time.Duration) (*appreservation.ReservationResponse, error) {
	return f.manager.Reserve(context.Background(), appreservation.ReserveCommand{
		Key:      key,
		Quantity: decimal.NewFromInt(qty),
		TTL:      ttl,
		Owner:    reservation.OwnerRef{Type: "quote", ID: "Q-1"},
	})
}

func (f *fixture) available(t *testing.T, key reservation.StockKey) *appreservation.Availability {
	t.Helper()
	a, err := f.availability.Available(context.Background(), key)
	require.NoError(t, err)
	return a
}

func assertDecimal(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(want).Equal(got), append([]interface{}{"want %d, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestReservationLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	key := testutil.NewTestKey("widget", "main")
	f.receive(t, key, 10)

	first, err := f.reserve(key, 6, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusActive, first.Status)
	assert.Equal(t, testutil.BaseTime.Add(30*time.Minute), first.ExpiresAt.UTC())
	assertDecimal(t, 4, f.available(t, key).Available)

	_, err = f.reserve(key, 5, 30*time.Minute)
	var insufficient *reservation.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assertDecimal(t, 5, insufficient.Requested)
	assertDecimal(t, 4, insufficient.Available)
	assertDecimal(t, 4, f.available(t, key).Available)

	f.clock.Advance(time.Minute)
	third, err := f.reserve(key, 4, 30*time.Minute)
	require.NoError(t, err)
	assertDecimal(t, 0, f.available(t, key).Available)

	f.clock.Advance(29 * time.Minute)
	stats, err := f.sweeper.SweepNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Released)

	got, err := f.manager.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusExpired, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assertDecimal(t, 6, f.available(t, key).Available)

	confirmed, err := f.manager.Confirm(ctx, third.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, confirmed.Status)
	snapshot := f.available(t, key)
	assertDecimal(t, 6, snapshot.Physical)
	assertDecimal(t, 0, snapshot.Reserved)
	assertDecimal(t, 6, snapshot.Available)

	assert.Equal(t, []string{
		reservation.EventTypeStockReceived,
		reservation.EventTypeReservationCreated,
		reservation.EventTypeReservationCreated,
		reservation.EventTypeReservationExpired,
		reservation.EventTypeReservationConfirmed,
	}, f.events.TypesHandled())
}

func TestReserve_ConcurrentCallsNeverOversell(t *testing.T) {
	tests := []struct {
		name     string
		stock    int64
		qty      int64
		callers  int
		wantWins int
	}{
		{name: "two callers for the last five", stock: 5, qty: 5, callers: 2, wantWins: 1},
		{name: "floor of stock over quantity", stock: 20, qty: 3, callers: 16, wantWins: 6},
		{name: "more stock than demand", stock: 100, qty: 4, callers: 10, wantWins: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			key := testutil.NewTestKey("widget", tt.name)
			f.receive(t, key, tt.stock)

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				wins     int
				failures []error
			)
			for i := 0; i < tt.callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := f.reserve(key, tt.qty, time.Hour)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						wins++
					} else {
						failures = append(failures, err)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, tt.wantWins, wins)
			for _, err := range failures {
				assert.ErrorIs(t, err, shared.ErrInsufficientStock)
			}
			assertDecimal(t, tt.stock-tt.qty*int64(tt.wantWins), f.available(t, key).Available)
		})
	}
}

func TestReserve_Validation(t *testing.T) {
	f := newFixture(t, nil)
	key := testutil.NewTestKey("widget", "main")
	f.receive(t, key, 10)

	tests := []struct {
		name string
		cmd  appreservation.ReserveCommand
		code string
	}{
		{
			name: "zero quantity",
			cmd:  appreservation.ReserveCommand{Key: key, Quantity: decimal.Zero, TTL: time.Minute, Owner: reservation.OwnerRef{Type: "quote", ID: "1"}},
			code: reservation.CodeInvalidQuantity,
		},
		{
			name: "negative ttl",
			cmd:  appreservation.ReserveCommand{Key: key, Quantity: decimal.NewFromInt(1), TTL: -time.Minute, Owner: reservation.OwnerRef{Type: "quote", ID: "1"}},
			code: reservation.CodeInvalidTTL,
		},
		{
			name: "ttl above maximum",
			cmd:  appreservation.ReserveCommand{Key: key, Quantity: decimal.NewFromInt(1), TTL: 48 * time.Hour, Owner: reservation.OwnerRef{Type: "quote", ID: "1"}},
			code: reservation.CodeInvalidTTL,
		},
		{
			name: "missing owner",
			cmd:  appreservation.ReserveCommand{Key: key, Quantity: decimal.NewFromInt(1), TTL: time.Minute},
			code: reservation.CodeInvalidOwner,
		},
		{
			name: "zero key",
			cmd:  appreservation.ReserveCommand{Quantity: decimal.NewFromInt(1), TTL: time.Minute, Owner: reservation.OwnerRef{Type: "quote", ID: "1"}},
			code: reservation.CodeInvalidKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Reserve(context.Background(), tt.cmd)
			var domainErr *shared.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tt.code, domainErr.Code)
		})
	}
	assertDecimal(t, 10, f.available(t, key).Available)
}

func TestReserve_FractionalQuantitiesNeverGoNegative(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	key := testutil.NewTestKey("cable", "main")
	_, err := f.ledger.Receive(ctx, key, decimal.RequireFromString("0.3"))
	require.NoError(t, err)

	for _, q := range []string{"0.1", "0.2"} {
		_, err := f.manager.Reserve(ctx, appreservation.ReserveCommand{
			Key:      key,
			Quantity: decimal.RequireFromString(q),
			TTL:      time.Minute,
			Owner:    reservation.OwnerRef{Type: "quote", ID: "Q-7"},
		})
		require.NoError(t, err)
	}

	a := f.available(t, key)
	assert.Equal(t, "0.3", a.Reserved.String())
	assert.True(t, a.Available.IsZero(), "available %s", a.Available)
	assert.False(t, a.Available.IsNegative())

	_, err = f.manager.Reserve(ctx, appreservation.ReserveCommand{
		Key:      key,
		Quantity: decimal.RequireFromString("0.00001"),
		TTL:      time.Minute,
		Owner:    reservation.OwnerRef{Type: "quote", ID: "Q-8"},
	})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, reservation.CodeInvalidQuantity, domainErr.Code)
}

func TestReserve_MissingStockLevelHasNothingAvailable(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reserve(testutil.NewTestKey("ghost", "main"), 1, time.Minute)
	var insufficient *reservation.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assertDecimal(t, 0, insufficient.Available)
}

func TestResolve_SecondResolutionIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	key := testutil.NewTestKey("widget", "main")
	f.receive(t, key, 10)

	confirmed, err := f.reserve(key, 3, time.Hour)
	require.NoError(t, err)
	_, err = f.manager.Confirm(ctx, confirmed.ID)
	require.NoError(t, err)

	cancelled, err := f.reserve(key, 2, time.Hour)
	require.NoError(t, err)
	_, err = f.manager.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)
	before := f.available(t, key)

	for _, id := range []uuid.UUID{confirmed.ID, cancelled.ID} {
		_, err = f.manager.Confirm(ctx, id)
		var invalid *reservation.InvalidStateError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, reservation.StatusConfirmed, invalid.Attempted)

		_, err = f.manager.Cancel(ctx, id)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	}

	after := f.available(t, key)
	assertDecimal(t, 7, after.Physical)
	assert.True(t, before.Physical.Equal(after.Physical))
	assert.True(t, before.Available.Equal(after.Available))

	page, err := f.manager.List(ctx, reservation.DefaultReservationFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}

func TestResolve_UnknownReservation(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.manager.Confirm(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.manager.Get(context.Background(), uuid.New())
	var notFound *reservation.ReservationNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestConfirm_AfterDeadlineBeforeSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	key := testutil.NewTestKey("widget", "main")
	f.receive(t, key, 10)

	r, err := f.reserve(key, 4, time.Minute)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)

	confirmed, err := f.manager.Confirm(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, confirmed.Status)

	stats, err := f.sweeper.SweepNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Released)
	assertDecimal(t, 6, f.available(t, key).Physical)
}

func TestConfirmRacingSweep_ExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	key := testutil.NewTestKey("widget", "race")
	f.receive(t, key, 100)

	for i := 0; i < 10; i++ {
		r, err := f.reserve(key, 1, time.Minute)
		require.NoError(t, err)
		f.clock.Advance(2 * time.Minute)
		physicalBefore := f.available(t, key).Physical

		var (
			wg         sync.WaitGroup
			confirmErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, confirmErr = f.manager.Confirm(ctx, r.ID)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.sweeper.SweepNow(ctx)
		}()
		wg.Wait()

		got, err := f.manager.Get(ctx, r.ID)
		require.NoError(t, err)
		physicalAfter := f.available(t, key).Physical

		switch got.Status {
		case reservation.StatusConfirmed:
			require.NoError(t, confirmErr)
			assert.True(t, physicalBefore.Sub(decimal.NewFromInt(1)).Equal(physicalAfter))
		case reservation.StatusExpired:
			assert.ErrorIs(t, confirmErr, shared.ErrInvalidState)
			assert.True(t, physicalBefore.Equal(physicalAfter))
		default:
			t.Fatalf("unexpected final status %s", got.Status)
		}
	}
}

func TestReserve_LockTimeout(t *testing.T) {
	guard := lock.NewLocalKeyGuard(50 * time.Millisecond)
	f := newFixture(t, guard)
	key := testutil.NewTestKey("widget", "main")
	f.receive(t, key, 10)

	release, err := guard.Acquire(context.Background(), key.String())
	require.NoError(t, err)

	_, err = f.reserve(key, 1, time.Minute)
	var timeout *reservation.LockTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.ErrorIs(t, err, shared.ErrLockTimeout)

	release()
	assertDecimal(t, 10, f.available(t, key).Available)
}

func TestReserve_Idempotency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	key := testutil.NewTestKey("widget", "main")
	f.receive(t, key, 3)

	cmd := appreservation.ReserveCommand{
		Key:            key,
		Quantity:       decimal.NewFromInt(2),
		TTL:            time.Hour,
		Owner:          reservation.OwnerRef{Type: "quote", ID: "Q-9"},
		IdempotencyKey: "checkout-1",
	}
	first, err := f.manager.Reserve(ctx, cmd)
	require.NoError(t, err)
	replay, err := f.manager.Reserve(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)
	assertDecimal(t, 1, f.available(t, key).Available)

	// a failed attempt frees the key for a retry
	cmd.IdempotencyKey = "checkout-2"
	_, err = f.manager.Reserve(ctx, cmd)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	f.receive(t, key, 5)
	retried, err := f.manager.Reserve(ctx, cmd)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, retried.ID)
}

func TestStockLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	key := testutil.NewTestKey("widget", "main")
	f.receive(t, key, 10)

	_, err := f.reserve(key, 4, time.Hour)
	require.NoError(t, err)

	_, err = f.ledger.Adjust(ctx, key, decimal.NewFromInt(3), "cycle count")
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	adjusted, err := f.ledger.Adjust(ctx, key, decimal.NewFromInt(7), "cycle count")
	require.NoError(t, err)
	assertDecimal(t, 7, adjusted.Physical)
	assertDecimal(t, 4, adjusted.Reserved)
	assertDecimal(t, 3, adjusted.Available)

	_, err = f.ledger.Receive(ctx, key, decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestSweep_RunsTwiceReleasesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	key := testutil.NewTestKey("widget", "main")
	f.receive(t, key, 10)

	// more than one batch at batch size 2
	for i := 0; i < 5; i++ {
		_, err := f.reserve(key, 1, time.Minute)
		require.NoError(t, err)
	}
	_, err := f.reserve(key, 1, time.Hour)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	stats, err := f.sweeper.SweepNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Candidates)
	assert.Equal(t, 5, stats.Released)
	assert.GreaterOrEqual(t, stats.Batches, 3)

	stats, err = f.sweeper.SweepNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Candidates)
	assert.Zero(t, stats.Released)
	assertDecimal(t, 9, f.available(t, key).Available)
}

func TestSweep_Interrupted(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := f.sweeper.SweepNow(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.True(t, stats.Interrupted)
}

// flakyReleaser fails for one reservation and delegates the rest
type flakyReleaser struct {
	next   appreservation.ExpiredReleaser
	failID uuid.UUID
}

func (r *flakyReleaser) ReleaseExpired(ctx context.Context, candidate *reservation.Reservation, now time.Time) (bool, error) {
	if candidate.ID == r.failID {
		return false, errors.New("corrupt row")
	}
	return r.next.ReleaseExpired(ctx, candidate, now)
}

func TestSweep_OneFailureDoesNotStopTheBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	key := testutil.NewTestKey("widget", "main")
	f.receive(t, key, 10)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		r, err := f.reserve(key, 1, time.Minute)
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	f.clock.Advance(time.Hour)

	sweeper := appreservation.NewExpirationSweeper(f.repo, &flakyReleaser{next: f.manager, failID: ids[1]}, f.clock, 10, zap.NewNop())
	stats, err := sweeper.SweepNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Released)
	assert.Equal(t, 1, stats.Failed)

	stuck, err := f.manager.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusActive, stuck.Status)
}

type slowKafkaWriter struct {
	delay   time.Duration
	mu      sync.Mutex
	written int
}

func (w *slowKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	time.Sleep(w.delay)
	w.mu.Lock()
	w.written += len(msgs)
	w.mu.Unlock()
	return nil
}

func (w *slowKafkaWriter) Close() error { return nil }

func TestSweep_LatencyIndependentOfKafkaWriter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	writer := &slowKafkaWriter{delay: 300 * time.Millisecond}
	forwarder := event.NewKafkaEventForwarder(writer, event.NewReservationEventSerializer(), "rsv.events", zap.NewNop())
	f.bus.Subscribe(forwarder)

	key := testutil.NewTestKey("lamp", "main")
	f.receive(t, key, 10)
	for i := 0; i < 5; i++ {
		_, err := f.reserve(key, 1, time.Minute)
		require.NoError(t, err)
	}
	f.clock.Advance(2 * time.Minute)

	start := time.Now()
	stats, err := f.sweeper.SweepNow(ctx)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Released)
	assert.Less(t, elapsed, 700*time.Millisecond, "sweep waited on the kafka writer")

	require.NoError(t, forwarder.Close())
	writer.mu.Lock()
	defer writer.mu.Unlock()
	// 5 created + 5 expired; the receipt was published before the forwarder subscribed
	assert.Equal(t, 10, writer.written)
}
