// Package events is the in-process pub/sub channel for session-level signals.
//
// The only signal today is LogoutSignal: the session ended without the user asking
// (refresh rejected), and whoever renders the UI should route to the sign-in screen.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// LogoutSignal reports a forced end of the session.
type LogoutSignal struct {
	Reason string
}

// Logout reasons.
const (
	ReasonRefreshFailed = "refresh_failed"
)

// Handler receives signals synchronously on the emitting goroutine.
type Handler func(LogoutSignal)

type subscription struct {
	id string
	h  Handler
}

// Bus fans a signal out to every current subscriber.
// There is no buffering and no replay: a subscriber added after Emit never sees it.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewBus creates a bus. Pass nil logger for default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger.With("component", "session_events")}
}

// Subscribe registers h and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	id := uuid.New().String()

	b.mu.Lock()
	b.subs = append(b.subs, subscription{id: id, h: h})
	n := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", id, "subscribers", n)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// Notify subscribes a buffered channel until ctx is done. Signals are dropped
// when the buffer is full. The channel is never closed.
func (b *Bus) Notify(ctx context.Context) <-chan LogoutSignal {
	ch := make(chan LogoutSignal, 1)
	unsubscribe := b.Subscribe(func(sig LogoutSignal) {
		select {
		case ch <- sig:
		default:
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return ch
}

// Emit delivers sig to every subscriber in subscription order. Handlers run
// without the bus lock held, so they may subscribe or unsubscribe.
func (b *Bus) Emit(sig LogoutSignal) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s.h)
	}
	b.mu.RUnlock()

	b.logger.Info("session.logout.emit", "reason", sig.Reason, "subscribers", len(targets))

	for _, h := range targets {
		h(sig)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			b.logger.Debug("subscriber removed", "sub_id", id)
			return
		}
	}
}
