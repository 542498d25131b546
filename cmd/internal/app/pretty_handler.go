package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// prettyHandler writes one key=value line per record, colored when color is on.
// Well-known keys (method, status, duration_ms, state, attempt, err) get their
// own rendering; see keyStyles.
type prettyHandler struct {
	out    io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	source bool
	color  bool

	prefix string // dotted group path, with trailing dot when non-empty
	pre    []byte // attrs added via WithAttrs, already rendered
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{out: w, mu: &sync.Mutex{}, level: slog.LevelInfo, color: color}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.source = opts.AddSource
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	buf := make([]byte, 0, 256)
	buf = fmt.Appendf(buf, "ts=%s lvl=%s msg=%s",
		paint(h.color, ts.Format("15:04:05.000"), color.Faint),
		levelTag(r.Level, h.color),
		paint(h.color, r.Message, color.Bold),
	)
	if h.source && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if f.File != "" {
			src := filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
			buf = fmt.Appendf(buf, " src=%s", paint(h.color, src, color.Faint))
		}
	}
	buf = append(buf, h.pre...)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.render(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.pre = append([]byte(nil), h.pre...)
	for _, a := range attrs {
		cp.pre = h.render(cp.pre, h.prefix, a)
	}
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

// render appends " key=value" for a, flattening groups into dotted keys.
func (h *prettyHandler) render(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)

	if a.Value.Kind() == slog.KindGroup {
		if key != "" {
			prefix += key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = h.render(buf, prefix, ga)
		}
		return buf
	}
	if key == "" {
		return buf
	}

	full := prefix + key
	label, val := full, ""
	if st, ok := keyStyles[key]; ok {
		if st.label != "" {
			label = prefix + st.label
		}
		val = st.format(a.Value, h.color)
	} else {
		val = quoteIfNeeded(valueToString(a.Value))
	}
	return fmt.Appendf(buf, " %s=%s", label, val)
}

// keyStyle renders one well-known attribute key.
type keyStyle struct {
	label  string // printed key; empty keeps the original
	format func(v slog.Value, on bool) string
}

var keyStyles = map[string]keyStyle{
	"method":       {format: formatMethod},
	"path":         {format: cyan},
	"conn_id":      {format: cyan},
	"request_id":   {format: cyan},
	"status":       {format: formatStatus},
	"status_class": {label: "class", format: formatClass},
	"duration_ms":  {label: "duration", format: formatDurationMS},
	"state":        {format: formatState},
	"attempt":      {format: formatAttempt},
	"err":          {format: formatErr},
}

func cyan(v slog.Value, on bool) string {
	return paint(on, strings.TrimSpace(v.String()), color.FgCyan)
}

var methodColors = map[string]color.Attribute{
	"GET":    color.FgGreen,
	"POST":   color.FgYellow,
	"DELETE": color.FgRed,
}

func formatMethod(v slog.Value, on bool) string {
	m := strings.ToUpper(strings.TrimSpace(v.String()))
	attr, ok := methodColors[m]
	if !ok {
		attr = color.FgWhite
	}
	return paint(on, m, attr)
}

func formatStatus(v slog.Value, on bool) string {
	code, ok := valueToInt64(v)
	if !ok {
		return quoteIfNeeded(valueToString(v))
	}
	s := strconv.FormatInt(code, 10)
	switch code / 100 {
	case 5:
		return paint(on, s, color.FgRed, color.Bold)
	case 4:
		return paint(on, s, color.FgYellow)
	case 3:
		return paint(on, s, color.FgCyan)
	default:
		return paint(on, s, color.FgGreen)
	}
}

func formatClass(v slog.Value, on bool) string {
	class := strings.TrimSpace(v.String())
	switch class {
	case "5xx", "error":
		return paint(on, class, color.FgRed)
	case "4xx":
		return paint(on, class, color.FgYellow)
	default:
		return paint(on, class, color.FgGreen)
	}
}

func formatDurationMS(v slog.Value, on bool) string {
	ms, ok := valueToInt64(v)
	if !ok {
		return quoteIfNeeded(valueToString(v))
	}
	s := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 1000:
		return paint(on, s, color.FgRed)
	case ms >= 250:
		return paint(on, s, color.FgYellow)
	default:
		return paint(on, s, color.FgGreen)
	}
}

func formatState(v slog.Value, on bool) string {
	return colorizeState(strings.ToLower(strings.TrimSpace(v.String())), on)
}

// formatAttempt highlights reconnect attempts once the backoff gets long.
func formatAttempt(v slog.Value, on bool) string {
	n, ok := valueToInt64(v)
	if !ok {
		return quoteIfNeeded(valueToString(v))
	}
	s := strconv.FormatInt(n, 10)
	if n >= 3 {
		return paint(on, s, color.FgYellow)
	}
	return s
}

func formatErr(v slog.Value, on bool) string {
	return paint(on, quoteIfNeeded(valueToString(v)), color.FgRed)
}

var stateColors = map[string]color.Attribute{
	"open":       color.FgGreen,
	"connecting": color.FgYellow,
	"closing":    color.FgRed,
	"closed":     color.FgRed,
}

func colorizeState(state string, on bool) string {
	attr, ok := stateColors[state]
	if !ok {
		attr = color.Faint
	}
	return paint(on, state, attr)
}

func levelTag(level slog.Level, on bool) string {
	switch {
	case level >= slog.LevelError:
		return paint(on, "[ERROR]", color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		return paint(on, "[WARN]", color.FgYellow)
	case level < slog.LevelInfo:
		return paint(on, "[DEBUG]", color.FgMagenta)
	default:
		return paint(on, "[INFO]", color.FgBlue)
	}
}

// paint renders s with attrs when on, regardless of the global NoColor switch.
func paint(on bool, s string, attrs ...color.Attribute) string {
	if !on {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		// Int64, Uint64, Float64, Bool and Duration all print as expected.
		return v.String()
	}
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		// #nosec G115 -- status codes and durations are far below MaxInt64.
		return int64(v.Uint64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
