package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	writeTimeout     = 5 * time.Second
	handshakeTimeout = 10 * time.Second
)

const (
	// Reconnect policy: delay = min(base * 2^attempt, cap), at most maxAttempts retries.
	backoffBase       = time.Second
	backoffCap        = 30 * time.Second
	backoffMaxRetries = 5
)

const (
	// Per-connection outbound rate limit (messages per window).
	rateLimitEvents = 20
	rateLimitWindow = 10 * time.Second

	// Duplicate suppression for new_message frames.
	dedupeTTL  = 10 * time.Minute
	dedupeSize = 2048
)
