package middleware

import (
	"context"
	"time"

	"github.com/charlesng35/livecss/internal/cache"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

type storeRateStore struct {
	store cache.Store
}

// NewMemoryRateStore constructs a process-local rate store.
func NewMemoryRateStore() RateStore {
	return &storeRateStore{store: cache.NewMemoryStore()}
}

// NewCacheRateStore wraps any cache backend (Redis, SQL database, memory) in a RateStore.
func NewCacheRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
