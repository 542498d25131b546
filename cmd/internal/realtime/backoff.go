package realtime

import "time"

// Backoff is the reconnect schedule.
type Backoff struct {
	Base       time.Duration
	Cap        time.Duration
	MaxRetries int
}

// DefaultBackoff is 1s, 2s, 4s, 8s, 16s and then give up.
func DefaultBackoff() Backoff {
	return Backoff{Base: backoffBase, Cap: backoffCap, MaxRetries: backoffMaxRetries}
}

func (b Backoff) normalized() Backoff {
	if b.Base <= 0 {
		b.Base = backoffBase
	}
	if b.Cap <= 0 {
		b.Cap = backoffCap
	}
	if b.Cap < b.Base {
		b.Cap = b.Base
	}
	if b.MaxRetries < 0 {
		b.MaxRetries = 0
	}
	return b
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		if d >= b.Cap/2 {
			return b.Cap
		}
		d *= 2
	}
	return min(d, b.Cap)
}

// Allows reports whether another retry fits the budget.
func (b Backoff) Allows(attempt int) bool { return attempt < b.MaxRetries }
