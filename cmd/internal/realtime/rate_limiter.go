package realtime

import (
	"sync"
	"time"
)

// RateLimiter allows at most limit sends in any window-long span. It keeps the
// last limit send times in a ring; a send is allowed when the oldest of them
// has left the window.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	ring   []time.Time
	next   int
	filled int
}

// NewRateLimiter returns a limiter. Non-positive arguments take the defaults
// (20 sends per 10s).
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{window: window, ring: make([]time.Time, limit)}
}

// Allow records a send at now and reports whether it fits.
// A refused send is not recorded.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filled == len(r.ring) {
		// r.next is the oldest entry once the ring is full.
		if now.Sub(r.ring[r.next]) < r.window {
			return false
		}
	} else {
		r.filled++
	}
	r.ring[r.next] = now
	r.next = (r.next + 1) % len(r.ring)
	return true
}
