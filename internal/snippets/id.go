package snippets

import "github.com/oklog/ulid/v2"

// GenerateID returns a ULID string: a millisecond timestamp followed by 80 random bits.
// IDs sort lexically by creation time and need no coordination between processes.
func GenerateID() string {
	return ulid.Make().String()
}
