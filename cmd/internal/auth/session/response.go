package session

import (
	"net/http"
	"net/url"
)

// Request describes one API call. Body, when non-nil, is JSON-encoded once so
// a replay sends identical bytes.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// NoRefresh returns a 401 as-is instead of refreshing. Used by the
	// unauthenticated endpoints (login, register, refresh itself).
	NoRefresh bool
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// RequestID is the X-Request-ID the server echoed, else the one we sent.
	RequestID string

	// Retried is true when this response came from the replay after a refresh.
	Retried bool
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Decode unwraps the server envelope (if any) into v.
func (r *Response) Decode(v any) error { return decodeData(r.Body, v) }

// Message returns the envelope's human message, if any.
func (r *Response) Message() string { return envelopeMessage(r.Body) }

// Err returns nil for 2xx and an *APIError otherwise.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return errorFromResponse(r.StatusCode, r.Header, r.Body, r.RequestID)
}
