package session

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

var (
	// ErrSessionTerminated matches every terminal refresh failure. The store has
	// been cleared and a logout signal emitted by the time a caller sees it.
	ErrSessionTerminated = errors.New("session terminated")

	// ErrNoRefreshCredential is the cause when a refresh is needed but no refresh token is stored.
	ErrNoRefreshCredential = errors.New("no refresh credential")

	// ErrMalformedRefresh is the cause when the refresh response carries no access token.
	ErrMalformedRefresh = errors.New("malformed refresh response")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// Server error codes.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidRefresh     = "INVALID_REFRESH_TOKEN"
	CodeNotAuthenticated   = "NOT_AUTHENTICATED"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeServerError        = "SERVER_ERROR"
	CodeUnknown            = "UNKNOWN_ERROR"
)

// RefreshError is a terminal refresh failure.
type RefreshError struct {
	// Status is the refresh response status, or 0 when no response arrived.
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *RefreshError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: refresh failed (%d %s): %s", ErrSessionTerminated, e.Status, e.Code, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: refresh failed (%d)", ErrSessionTerminated, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: refresh failed: %v", ErrSessionTerminated, e.Err)
	default:
		return fmt.Sprintf("%s: refresh failed", ErrSessionTerminated)
	}
}

func (e *RefreshError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSessionTerminated}
	}
	return []error{ErrSessionTerminated, e.Err}
}

// IsTerminal reports whether err ended the session.
func IsTerminal(err error) bool { return errors.Is(err, ErrSessionTerminated) }

// APIError is a non-2xx response normalized into code, message and field errors.
type APIError struct {
	Status     int
	Code       string
	Message    string
	Fields     map[string][]string
	RequestID  string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error %d %s", e.Status, e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " [%s: %s]", k, strings.Join(e.Fields[k], "; "))
		}
	}
	return b.String()
}

// IsValidation reports whether the server rejected the input field by field.
func (e *APIError) IsValidation() bool {
	return e.Code == CodeValidation || len(e.Fields) > 0
}

// FirstMessage returns the message a UI would show: Message, else the first field error.
func (e *APIError) FirstMessage() string {
	if e.Message != "" {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(e.Fields[k]) > 0 {
			return e.Fields[k][0]
		}
	}
	return http.StatusText(e.Status)
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func codeForStatus(status int, hasFields bool) string {
	switch {
	case status == http.StatusBadRequest && hasFields:
		return CodeValidation
	case status == http.StatusUnauthorized:
		return CodeNotAuthenticated
	case status == http.StatusForbidden:
		return CodePermissionDenied
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= 500:
		return CodeServerError
	default:
		return CodeUnknown
	}
}
