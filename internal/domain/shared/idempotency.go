package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers the outcome of requests carrying a client supplied key
type IdempotencyStore interface {
	// Claim marks key as in flight. It returns claimed=true when the caller now owns the key,
	// the stored result when a previous request completed, and ErrIdempotencyInProgress when
	// another request still holds the key.
	Claim(ctx context.Context, key string, ttl time.Duration) (result string, claimed bool, err error)

	// Complete stores the result for a claimed key
	Complete(ctx context.Context, key, result string, ttl time.Duration) error

	// Release drops an in-flight claim so the request can be retried
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
