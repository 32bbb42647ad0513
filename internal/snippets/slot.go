package snippets

import (
	"context"
	"errors"
	"strings"

	"github.com/charlesng35/livecss/internal/cache"
)

// DefaultStorageKey is the key holding the serialized collection.
const DefaultStorageKey = "css-playground-snippets"

// Slot is the persisted key-value slot the Store reads and overwrites as a whole.
// Get reports absence with ok=false and a nil error.
type Slot interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, value []byte) error
}

// CacheSlot binds a cache.Store to a single fixed key.
type CacheSlot struct {
	store cache.Store
	key   string
}

// NewCacheSlot returns a slot over store. An empty key selects DefaultStorageKey.
func NewCacheSlot(store cache.Store, key string) (*CacheSlot, error) {
	if store == nil {
		return nil, errors.New("snippets: cache store is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultStorageKey
	}
	return &CacheSlot{store: store, key: key}, nil
}

// Key returns the bound storage key.
func (s *CacheSlot) Key() string {
	return s.key
}

// Get reads the slot.
func (s *CacheSlot) Get(ctx context.Context) ([]byte, bool, error) {
	return s.store.Get(ctx, s.key)
}

// Set overwrites the slot without expiry.
func (s *CacheSlot) Set(ctx context.Context, value []byte) error {
	return s.store.Set(ctx, s.key, value, 0)
}
