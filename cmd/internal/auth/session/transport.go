package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mladen081/u-m/cmd/internal/metrics"
)

// NewLoggingTransport wraps next and logs every exchange. Authorization
// headers and bodies are never logged.
func NewLoggingTransport(next http.RoundTripper, log *slog.Logger, m *metrics.Collector) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if log == nil {
		log = slog.Default()
	}
	return &loggingTransport{next: next, log: log, metrics: m}
}

type loggingTransport struct {
	next    http.RoundTripper
	log     *slog.Logger
	metrics *metrics.Collector
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(r)
	if err != nil {
		t.metrics.ObserveRequest("error")
		t.log.Warn("http.request.fail",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Header.Get("X-Request-ID"),
			"err", err,
		)
		return nil, err
	}

	level, result := requestLogMeta(resp.StatusCode)
	class := statusClass(resp.StatusCode)
	t.metrics.ObserveRequest(class)

	t.log.Log(r.Context(), level, "http.request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"status_class", class,
		"duration_ms", time.Since(start).Milliseconds(),
		"result", result,
		"request_id", r.Header.Get("X-Request-ID"),
	)
	return resp, nil
}

// requestLogMeta picks a log level and result label for a status code.
// A 401 logs at info: it is the normal trigger for a refresh.
func requestLogMeta(status int) (slog.Level, string) {
	switch {
	case status >= 500:
		return slog.LevelError, "server_error"
	case status == http.StatusUnauthorized:
		return slog.LevelInfo, "client_error"
	case status >= 400:
		return slog.LevelWarn, "client_error"
	case status >= 300:
		return slog.LevelInfo, "redirect"
	default:
		return slog.LevelInfo, "success"
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
