package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix    = "rsv:guard:"
	defaultLease        = 30 * time.Second
	defaultPollInterval = 20 * time.Millisecond
)

// releaseScript deletes the lease only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisKeyGuard serializes callers per key across processes sharing one Redis.
// A lease expires on its own if the holder dies; it must outlast the longest critical section.
type RedisKeyGuard struct {
	client       redis.UniversalClient
	timeout      time.Duration
	lease        time.Duration
	pollInterval time.Duration
	keyPrefix    string
	logger       *zap.Logger
}

// RedisKeyGuardOption configures a RedisKeyGuard
type RedisKeyGuardOption func(*RedisKeyGuard)

// WithLease sets how long a lease lives without release
func WithLease(d time.Duration) RedisKeyGuardOption {
	return func(g *RedisKeyGuard) { g.lease = d }
}

// WithPollInterval sets how often a waiter retries
func WithPollInterval(d time.Duration) RedisKeyGuardOption {
	return func(g *RedisKeyGuard) { g.pollInterval = d }
}

// WithKeyPrefix sets the Redis key namespace
func WithKeyPrefix(prefix string) RedisKeyGuardOption {
	return func(g *RedisKeyGuard) { g.keyPrefix = prefix }
}

// NewRedisKeyGuard creates a guard whose Acquire gives up after timeout
func NewRedisKeyGuard(client redis.UniversalClient, timeout time.Duration, logger *zap.Logger, opts ...RedisKeyGuardOption) *RedisKeyGuard {
	g := &RedisKeyGuard{
		client:       client,
		timeout:      timeout,
		lease:        defaultLease,
		pollInterval: defaultPollInterval,
		keyPrefix:    defaultKeyPrefix,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire polls SET NX until it wins the lease, the timeout passes, or ctx is done
func (g *RedisKeyGuard) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := g.keyPrefix + key
	token := uuid.NewString()
	start := time.Now()
	deadline := start.Add(g.timeout)

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := g.client.SetNX(ctx, redisKey, token, g.lease).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, reservation.NewStorageError("acquire redis guard", err)
		}
		if ok {
			return g.releaser(redisKey, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, &reservation.LockTimeoutError{Key: key, Waited: time.Since(start)}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *RedisKeyGuard) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			deleted, err := releaseScript.Run(ctx, g.client, []string{redisKey}, token).Int()
			if err != nil && !errors.Is(err, redis.Nil) {
				g.logger.Warn("Failed to release redis guard", zap.String("key", redisKey), zap.Error(err))
				return
			}
			if deleted == 0 {
				g.logger.Warn("Redis guard lease expired before release", zap.String("key", redisKey))
			}
		})
	}
}

var _ appreservation.KeyGuard = (*RedisKeyGuard)(nil)
