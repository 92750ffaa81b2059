package lock

import (
	"context"
	"sync"
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/domain/reservation"
	"golang.org/x/sync/semaphore"
)

// LocalKeyGuard serializes callers per key within one process
type LocalKeyGuard struct {
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// NewLocalKeyGuard creates a guard whose Acquire gives up after timeout
func NewLocalKeyGuard(timeout time.Duration) *LocalKeyGuard {
	return &LocalKeyGuard{timeout: timeout, slots: make(map[string]*slot)}
}

// Acquire blocks until key is free, the timeout passes, or ctx is done
func (g *LocalKeyGuard) Acquire(ctx context.Context, key string) (func(), error) {
	s := g.ref(key)

	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	if err := s.sem.Acquire(waitCtx, 1); err != nil {
		g.unref(key)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &reservation.LockTimeoutError{Key: key, Waited: time.Since(start)}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			g.unref(key)
		})
	}, nil
}

func (g *LocalKeyGuard) ref(key string) *slot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		g.slots[key] = s
	}
	s.refs++
	return s
}

func (g *LocalKeyGuard) unref(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(g.slots, key)
	}
}

// ActiveKeys returns how many keys currently have holders or waiters
func (g *LocalKeyGuard) ActiveKeys() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

var _ appreservation.KeyGuard = (*LocalKeyGuard)(nil)
