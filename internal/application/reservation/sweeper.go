package reservation

import (
	"context"
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultSweepBatchSize bounds how many due reservations one query returns
const DefaultSweepBatchSize = 100

// ExpiredReleaser expires one selected reservation under its key guard
type ExpiredReleaser interface {
	ReleaseExpired(ctx context.Context, candidate *reservation.Reservation, now time.Time) (bool, error)
}

// SweepStats summarizes one sweep run
type SweepStats struct {
	Candidates  int       `json:"candidates"`
	Released    int       `json:"released"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Batches     int       `json:"batches"`
	Interrupted bool      `json:"interrupted"`
	Now         time.Time `json:"now"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// ExpirationSweeper releases ACTIVE reservations whose deadline has passed.
// Rows are processed one at a time, each under its own key guard, so the sweeper never holds
// one key while waiting for another. A failure on one row is logged and the sweep continues.
type ExpirationSweeper struct {
	reservationRepo reservation.ReservationRepository
	releaser        ExpiredReleaser
	clock           shared.Clock
	batchSize       int
	metrics         *telemetry.ReservationMetrics
	logger          *zap.Logger
}

// NewExpirationSweeper creates a new ExpirationSweeper
func NewExpirationSweeper(
	reservationRepo reservation.ReservationRepository,
	releaser ExpiredReleaser,
	clock shared.Clock,
	batchSize int,
	logger *zap.Logger,
) *ExpirationSweeper {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirationSweeper{
		reservationRepo: reservationRepo,
		releaser:        releaser,
		clock:           clock,
		batchSize:       batchSize,
		logger:          logger,
	}
}

// SetMetrics sets the business metrics recorder
func (s *ExpirationSweeper) SetMetrics(metrics *telemetry.ReservationMetrics) {
	s.metrics = metrics
}

// SweepNow sweeps using the current clock time
func (s *ExpirationSweeper) SweepNow(ctx context.Context) (*SweepStats, error) {
	return s.Sweep(ctx, s.clock.Now())
}

// Sweep expires every ACTIVE reservation with expires_at <= now. It returns an error only when
// the candidate query fails or ctx is cancelled; in both cases the stats describe the progress
// made so far, which is valid and safe to resume.
func (s *ExpirationSweeper) Sweep(ctx context.Context, now time.Time) (*SweepStats, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", "sweep",
		telemetry.WithAttribute("sweep.now", now.Format(time.RFC3339)))
	defer span.End()

	stats := &SweepStats{Now: now, StartedAt: s.clock.Now()}
	defer func() {
		stats.FinishedAt = s.clock.Now()
		s.metrics.RecordSweep(ctx, stats.Released, stats.Failed, stats.FinishedAt.Sub(stats.StartedAt))
		telemetry.SetAttributes(span,
			"sweep.released", stats.Released,
			"sweep.failed", stats.Failed,
			"sweep.skipped", stats.Skipped,
		)
	}()

	var cursor *reservation.DueCursor
	for {
		if err := ctx.Err(); err != nil {
			return s.interrupted(stats, err)
		}

		batch, err := s.reservationRepo.FindDue(ctx, now, cursor, s.batchSize)
		if err != nil {
			s.logger.Error("Failed to find due reservations", zap.Error(err))
			telemetry.RecordError(span, err)
			return stats, reservation.NewStorageError("find due reservations", err)
		}
		stats.Batches++
		stats.Candidates += len(batch)

		for i := range batch {
			if err := ctx.Err(); err != nil {
				return s.interrupted(stats, err)
			}
			s.releaseOne(ctx, &batch[i], now, stats)
		}

		if len(batch) < s.batchSize {
			break
		}
		last := batch[len(batch)-1]
		cursor = &reservation.DueCursor{ExpiresAt: last.ExpiresAt, ID: last.ID}
	}

	if stats.Candidates > 0 {
		s.logger.Info("Completed expiration sweep",
			zap.Int("candidates", stats.Candidates),
			zap.Int("released", stats.Released),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		)
	} else {
		s.logger.Debug("No due reservations found")
	}
	return stats, nil
}

func (s *ExpirationSweeper) releaseOne(ctx context.Context, candidate *reservation.Reservation, now time.Time, stats *SweepStats) {
	released, err := s.releaser.ReleaseExpired(ctx, candidate, now)
	switch {
	case err != nil:
		stats.Failed++
		s.logger.Error("Failed to expire reservation",
			zap.String("reservation_id", candidate.ID.String()),
			zap.String("stock_key", candidate.Key().String()),
			zap.Time("expires_at", candidate.ExpiresAt),
			zap.Error(err),
		)
	case released:
		stats.Released++
	default:
		stats.Skipped++
	}
}

func (s *ExpirationSweeper) interrupted(stats *SweepStats, err error) (*SweepStats, error) {
	stats.Interrupted = true
	s.logger.Warn("Expiration sweep interrupted",
		zap.Int("released", stats.Released),
		zap.Int("failed", stats.Failed),
		zap.Error(err),
	)
	return stats, err
}
