package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisGuard(t *testing.T, timeout time.Duration, opts ...RedisKeyGuardOption) (*RedisKeyGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	opts = append([]RedisKeyGuardOption{WithPollInterval(5 * time.Millisecond)}, opts...)
	return NewRedisKeyGuard(client, timeout, zap.NewNop(), opts...), mr
}

func TestRedisKeyGuard_AcquireRelease(t *testing.T) {
	guard, mr := newRedisGuard(t, time.Second)

	release, err := guard.Acquire(context.Background(), "p:w")
	require.NoError(t, err)
	assert.True(t, mr.Exists("rsv:guard:p:w"))
	assert.Equal(t, defaultLease, mr.TTL("rsv:guard:p:w"))

	release()
	assert.False(t, mr.Exists("rsv:guard:p:w"))
}

func TestRedisKeyGuard_TimeoutWhileHeld(t *testing.T) {
	guard, _ := newRedisGuard(t, 30*time.Millisecond)

	release, err := guard.Acquire(context.Background(), "p:w")
	require.NoError(t, err)
	defer release()

	_, err = guard.Acquire(context.Background(), "p:w")
	var lockErr *reservation.LockTimeoutError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, "p:w", lockErr.Key)
}

func TestRedisKeyGuard_WaiterGetsLeaseAfterRelease(t *testing.T) {
	guard, _ := newRedisGuard(t, time.Second)

	release, err := guard.Acquire(context.Background(), "p:w")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		r, err := guard.Acquire(context.Background(), "p:w")
		if err == nil {
			r()
		}
		acquired <- err
	}()

	time.Sleep(20 * time.Millisecond)
	release()

	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the guard")
	}
}

func TestRedisKeyGuard_ReleaseKeepsForeignLease(t *testing.T) {
	guard, mr := newRedisGuard(t, time.Second)

	release, err := guard.Acquire(context.Background(), "p:w")
	require.NoError(t, err)

	// lease expired and another holder took it over
	require.NoError(t, mr.Set("rsv:guard:p:w", "someone-else"))
	release()

	got, err := mr.Get("rsv:guard:p:w")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisKeyGuard_ContextCancelled(t *testing.T) {
	guard, _ := newRedisGuard(t, time.Second)

	release, err := guard.Acquire(context.Background(), "p:w")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = guard.Acquire(ctx, "p:w")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
