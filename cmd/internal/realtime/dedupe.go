package realtime

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// seenIDs remembers new_message ids for a TTL, bounded in size.
type seenIDs struct {
	lru *expirable.LRU[int64, struct{}]
}

func newSeenIDs(size int, ttl time.Duration) *seenIDs {
	if size <= 0 {
		size = dedupeSize
	}
	if ttl <= 0 {
		ttl = dedupeTTL
	}
	return &seenIDs{lru: expirable.NewLRU[int64, struct{}](size, nil, ttl)}
}

// checkAndMark reports true when id was already seen within the TTL.
// Otherwise it records id and reports false. Dispatch runs on one goroutine,
// so the peek and the add are not raced.
func (s *seenIDs) checkAndMark(id int64) bool {
	// Peek honours the expiry; Contains only drops entries once the cleanup tick runs.
	if _, ok := s.lru.Peek(id); ok {
		return true
	}
	s.lru.Add(id, struct{}{})
	return false
}

func (s *seenIDs) len() int { return s.lru.Len() }
