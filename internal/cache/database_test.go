package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/livecss/internal/database/testutil"
	"github.com/charlesng35/livecss/internal/models"
)

func newTestDatabaseStore(t *testing.T) (*DatabaseStore, *time.Time) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Unix(1_700_000_000, 0).UTC()
	store.now = func() time.Time { return now }
	return store, &now
}

func TestNewDatabaseStoreNil(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))

	var store *DatabaseStore
	_, _, err := store.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestDatabaseStoreSetGetOverwrite(t *testing.T) {
	store, _ := newTestDatabaseStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "css-playground-snippets")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "css-playground-snippets", []byte(`[]`), 0))
	require.NoError(t, store.Set(ctx, "css-playground-snippets", []byte(`[{"id":"a"}]`), 0))

	value, ok, err := store.Get(ctx, "css-playground-snippets")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[{"id":"a"}]`, string(value))
}

func TestDatabaseStoreExpiredValueIsAbsent(t *testing.T) {
	store, now := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "temp", []byte("x"), time.Second))
	*now = now.Add(time.Minute)

	_, ok, err := store.Get(ctx, "temp")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store, now := newTestDatabaseStore(t)
	ctx := context.Background()

	count, _, err := store.IncrementWithTTL(ctx, "rate:1", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, _, err = store.IncrementWithTTL(ctx, "rate:1", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	*now = now.Add(2 * time.Minute)
	count, _, err = store.IncrementWithTTL(ctx, "rate:1", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStoreDeleteAndPurge(t *testing.T) {
	store, now := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "keep", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "stale", []byte("2"), time.Second))
	require.NoError(t, store.Set(ctx, "gone", []byte("3"), 0))

	require.NoError(t, store.Delete(ctx, "gone", "never-existed"))
	_, ok, err := store.Get(ctx, "gone")
	require.NoError(t, err)
	require.False(t, ok)

	removed, err := store.PurgeExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok, err = store.Get(ctx, "keep")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDatabaseStoreWithoutTTLStoresNullExpiry(t *testing.T) {
	store, now := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "css-playground-snippets", []byte(`[]`), time.Second))
	require.NoError(t, store.Set(ctx, "css-playground-snippets", []byte(`[{"id":"a"}]`), 0))

	var entry models.CacheEntry
	require.NoError(t, store.db.Where("? = ?", keyColumn, "css-playground-snippets").Take(&entry).Error)
	require.Nil(t, entry.ExpiresAt)

	var nullRows int64
	require.NoError(t, store.db.Model(&models.CacheEntry{}).Where("expires_at IS NULL").Count(&nullRows).Error)
	require.EqualValues(t, 1, nullRows)

	removed, err := store.PurgeExpired(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, removed)

	value, ok, err := store.Get(ctx, "css-playground-snippets")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[{"id":"a"}]`, string(value))
}
