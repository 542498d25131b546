package realtime

import "errors"

var (
	// ErrNoAccessToken is returned by Connect when no access token is stored.
	ErrNoAccessToken = errors.New("realtime: no access token")
	// ErrClosed is returned by Connect after Disconnect.
	ErrClosed = errors.New("realtime: manager closed")
	// ErrRateLimited is returned by SendMessage when the outbound limit is hit.
	ErrRateLimited = errors.New("realtime: send rate limited")
)
