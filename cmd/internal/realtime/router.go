package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mladen081/u-m/cmd/internal/metrics"
	v1 "github.com/mladen081/u-m/shared/contracts/realtime/v1"
)

// ErrUnknownAction is returned by Dispatch for frames no route handles.
var ErrUnknownAction = errors.New("unknown action")

// HandlerFunc handles one raw inbound frame.
type HandlerFunc func(raw []byte) error

// Router dispatches inbound frames by their action field.
// Dispatch is called from a single reader goroutine, so handlers see frames in
// arrival order and each frame exactly once.
type Router struct {
	log     *slog.Logger
	metrics *metrics.Collector
	seen    *seenIDs

	mu     sync.RWMutex
	routes map[string]HandlerFunc
}

// NewRouter returns a Router with no routes.
func NewRouter(log *slog.Logger, m *metrics.Collector) *Router {
	return newRouter(log, m, newSeenIDs(dedupeSize, dedupeTTL))
}

func newRouter(log *slog.Logger, m *metrics.Collector, seen *seenIDs) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		log:     log.With("component", "realtime.router"),
		metrics: m,
		seen:    seen,
		routes:  make(map[string]HandlerFunc),
	}
}

// Handle registers h for action, replacing any earlier route.
func (r *Router) Handle(action string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.routes, action)
		return
	}
	r.routes[action] = h
}

// OnNewMessage routes new_message frames. A message id seen within the dedupe
// window is dropped, so replays after a reconnect are not shown twice.
func (r *Router) OnNewMessage(h func(v1.NewMessage)) {
	r.Handle(v1.ActionNewMessage, func(raw []byte) error {
		var m v1.NewMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("decode %s: %w", v1.ActionNewMessage, err)
		}
		if m.MessageID != 0 && r.seen.checkAndMark(m.MessageID) {
			r.metrics.ObserveDuplicate()
			r.log.Debug("ws.frame.duplicate", "message_id", m.MessageID)
			return nil
		}
		h(m)
		return nil
	})
}

// OnClearAll routes clear_all frames.
func (r *Router) OnClearAll(h func()) {
	r.Handle(v1.ActionClearAll, func([]byte) error {
		h()
		return nil
	})
}

// OnUserListUpdate routes presence updates.
func (r *Router) OnUserListUpdate(h func(users []string)) {
	r.Handle(v1.ActionUserListUpdate, func(raw []byte) error {
		var u v1.UserListUpdate
		if err := json.Unmarshal(raw, &u); err != nil {
			return fmt.Errorf("decode %s: %w", v1.ActionUserListUpdate, err)
		}
		h(u.Users)
		return nil
	})
}

// Dispatch routes one frame.
func (r *Router) Dispatch(raw []byte) error {
	action, err := v1.DecodeAction(raw)
	if err != nil {
		r.metrics.ObserveFrame("invalid")
		return err
	}

	r.mu.RLock()
	h, ok := r.routes[action]
	r.mu.RUnlock()

	if !ok {
		r.metrics.ObserveFrame("unknown")
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	r.metrics.ObserveFrame(action)
	return h(raw)
}
