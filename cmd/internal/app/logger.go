package app

import (
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

// NewLogger creates the client logger. Logs go to w (stderr in the CLI) so
// they never interleave with chat output on stdout.
//
// format is "json", "pretty" or "auto"; auto picks pretty on a color terminal.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "pretty":
		h = newPrettyHandler(w, opts, !color.NoColor)
	case "json":
		opts.AddSource = true
		h = slog.NewJSONHandler(w, opts)
	default:
		if color.NoColor {
			h = slog.NewJSONHandler(w, opts)
		} else {
			h = newPrettyHandler(w, opts, true)
		}
	}

	log := slog.New(h)
	slog.SetDefault(log)
	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
