package models

import "time"

// Snippet is a named pair of markup and stylesheet text plus identity and timestamps.
// Timestamps are Unix milliseconds. The JSON shape is both the persisted layout and the
// portable export format, so the six field names must not change.
type Snippet struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	HTML      string `json:"html"`
	CSS       string `json:"css"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Millis converts t into the Unix millisecond representation used by snippet timestamps.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// UpdatedTime returns UpdatedAt as a time.Time in UTC.
func (s Snippet) UpdatedTime() time.Time {
	return time.UnixMilli(s.UpdatedAt).UTC()
}

// CreatedTime returns CreatedAt as a time.Time in UTC.
func (s Snippet) CreatedTime() time.Time {
	return time.UnixMilli(s.CreatedAt).UTC()
}
