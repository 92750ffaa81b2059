// Package scheduler runs background jobs on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"go.uber.org/zap"
)

// Sweeper runs one expiration sweep at the current time
type Sweeper interface {
	SweepNow(ctx context.Context) (*appreservation.SweepStats, error)
}

// SweepTriggerConfig holds configuration for the sweep trigger
type SweepTriggerConfig struct {
	// Interval between scheduled sweeps
	Interval time.Duration

	// RunTimeout bounds a single sweep; zero means no bound
	RunTimeout time.Duration

	// RunOnStart sweeps immediately instead of waiting for the first tick
	RunOnStart bool
}

// DefaultSweepTriggerConfig returns default sweep trigger configuration
func DefaultSweepTriggerConfig() SweepTriggerConfig {
	return SweepTriggerConfig{
		Interval:   30 * time.Second,
		RunTimeout: 5 * time.Minute,
		RunOnStart: true,
	}
}

// SweepRun records the outcome of the last completed sweep
type SweepRun struct {
	Stats *appreservation.SweepStats
	Err   error
}

// SweepTrigger invokes the sweeper periodically and on demand.
// At most one sweep runs at a time; a tick that lands during a running sweep is skipped.
type SweepTrigger struct {
	config  SweepTriggerConfig
	sweeper Sweeper
	logger  *zap.Logger

	running atomic.Bool

	// cancel and done belong to the current loop; both are guarded by mu
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
	isRunning bool
	lastRun   *SweepRun
}

// NewSweepTrigger creates a new sweep trigger
func NewSweepTrigger(config SweepTriggerConfig, sweeper Sweeper, logger *zap.Logger) (*SweepTrigger, error) {
	if config.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepTrigger{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
	}, nil
}

// Start starts the periodic loop; calling it twice is a no-op
func (t *SweepTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	t.isRunning = true
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go t.runLoop(ctx, done)

	t.logger.Info("Sweep trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Duration("run_timeout", t.config.RunTimeout),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to observe cancellation
func (t *SweepTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	cancel()

	select {
	case <-done:
		t.logger.Info("Sweep trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the periodic loop is active
func (t *SweepTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

// TriggerNow runs a sweep synchronously. It returns ErrSweepInProgress if one is already running.
func (t *SweepTrigger) TriggerNow(ctx context.Context) (*appreservation.SweepStats, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer t.running.Store(false)

	return t.sweep(ctx, "manual")
}

// LastRun returns the outcome of the last completed sweep, or nil
func (t *SweepTrigger) LastRun() *SweepRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *SweepTrigger) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if t.config.RunOnStart {
		t.tick(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *SweepTrigger) tick(ctx context.Context) {
	if !t.running.CompareAndSwap(false, true) {
		t.logger.Debug("Skipping scheduled sweep, previous sweep still running")
		return
	}
	defer t.running.Store(false)

	_, _ = t.sweep(ctx, "scheduled")
}

func (t *SweepTrigger) sweep(ctx context.Context, reason string) (*appreservation.SweepStats, error) {
	if t.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.RunTimeout)
		defer cancel()
	}

	stats, err := t.sweeper.SweepNow(ctx)

	t.mu.Lock()
	t.lastRun = &SweepRun{Stats: stats, Err: err}
	t.mu.Unlock()

	fields := []zap.Field{zap.String("reason", reason)}
	if stats != nil {
		fields = append(fields,
			zap.Int("released", stats.Released),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		)
	}
	if err != nil {
		t.logger.Warn("Expiration sweep ended early", append(fields, zap.Error(err))...)
	} else if stats != nil && stats.Released > 0 {
		t.logger.Info("Expiration sweep completed", fields...)
	} else {
		t.logger.Debug("Expiration sweep completed", fields...)
	}
	return stats, err
}
