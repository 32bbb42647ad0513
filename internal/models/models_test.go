package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnippetJSONUsesCanonicalFieldNames(t *testing.T) {
	raw, err := json.Marshal(Snippet{ID: "a", Title: "t", HTML: "<p></p>", CSS: "", CreatedAt: 1, UpdatedAt: 2})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Len(t, fields, 6)
	for _, key := range []string{"id", "title", "html", "css", "createdAt", "updatedAt"} {
		require.Contains(t, fields, key)
	}
}

func TestSnippetTimeHelpers(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Snippet{CreatedAt: Millis(at), UpdatedAt: Millis(at.Add(time.Minute))}

	require.True(t, s.CreatedTime().Equal(at))
	require.True(t, s.UpdatedTime().Equal(at.Add(time.Minute)))
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now()
	require.False(t, CacheEntry{}.Expired(now))
	past, future := now.Add(-time.Second), now.Add(time.Second)
	require.True(t, CacheEntry{ExpiresAt: &past}.Expired(now))
	require.False(t, CacheEntry{ExpiresAt: &future}.Expired(now))
}
