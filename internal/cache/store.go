package cache

import (
	"context"
	"time"
)

// Store is the key-value contract shared by the snippet slot, the rate limiter
// and the maintenance jobs. Get reports absence with ok=false and a nil error.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Purger is implemented by stores that keep expired entries around until swept.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
