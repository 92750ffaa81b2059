package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/reservation/internal/domain/shared"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// record is one idempotency key. A pending record has no result yet.
type record struct {
	result    string
	done      bool
	expiresAt time.Time
}

// InMemoryIdempotencyStore implements IdempotencyStore on a bounded, expiring LRU.
// This is suitable for single-instance deployments and testing.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, record]
	now     func() time.Time
}

// NewInMemoryIdempotencyStore creates a store holding at most maxKeys keys, none longer than maxTTL
func NewInMemoryIdempotencyStore(maxKeys int, maxTTL time.Duration) *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		entries: expirable.NewLRU[string, record](maxKeys, nil, maxTTL),
		now:     time.Now,
	}
}

// Claim implements shared.IdempotencyStore
func (s *InMemoryIdempotencyStore) Claim(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.entries.Get(key); ok && now.Before(rec.expiresAt) {
		if !rec.done {
			return "", false, shared.ErrIdempotencyInProgress
		}
		return rec.result, false, nil
	}

	s.entries.Add(key, record{expiresAt: now.Add(ttl)})
	return "", true, nil
}

// Complete implements shared.IdempotencyStore
func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key, result string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Add(key, record{result: result, done: true, expiresAt: s.now().Add(ttl)})
	return nil
}

// Release implements shared.IdempotencyStore. Completed keys are kept.
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.entries.Peek(key); ok && !rec.done {
		s.entries.Remove(key)
	}
	return nil
}

// Close drops every entry
func (s *InMemoryIdempotencyStore) Close() error {
	s.entries.Purge()
	return nil
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryIdempotencyStore) Size() int {
	return s.entries.Len()
}

// Ensure InMemoryIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
