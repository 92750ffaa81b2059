package reservation

import (
	"context"

	"github.com/erp/reservation/internal/domain/reservation"
)

// KeyGuard serializes mutations per stock key. Different keys never block each other.
type KeyGuard interface {
	// Acquire blocks until the guard for key is held. It fails with *reservation.LockTimeoutError
	// when the wait exceeds the guard's timeout, or with ctx.Err() when ctx is done first.
	// The returned release func must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// WithGuard runs fn while holding the guard for key and releases it on every exit path.
func WithGuard(ctx context.Context, guard KeyGuard, key reservation.StockKey, fn func(ctx context.Context) error) error {
	release, err := guard.Acquire(ctx, key.String())
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
