// Package ids provides ID primitives (ULID) used to correlate client requests with server logs.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable, so request IDs order by send time in server logs.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// RequestID returns a fresh ULID, falling back to the monotonic default entropy
// source if the system reader fails.
func RequestID() string {
	id, err := NewULID(time.Now().UTC())
	if err != nil {
		return ulid.Make().String()
	}
	return id
}
