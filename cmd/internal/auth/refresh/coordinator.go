// Package refresh serializes access-token refreshes.
//
// Any number of requests may discover an expired access token at once. The
// first one opens a refresh window and performs the refresh; the rest join the
// window and wait for its single outcome. A successful refresh is written to
// the credential store before anyone is released. A rejected refresh clears the
// store and emits one logout signal for the whole batch.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mladen081/u-m/cmd/identity"
	"github.com/mladen081/u-m/cmd/internal/auth/credential"
	"github.com/mladen081/u-m/cmd/internal/auth/events"
	"github.com/mladen081/u-m/cmd/internal/metrics"
)

var (
	// ErrEmptyAccess is used to reject a refresh that returned no access token.
	ErrEmptyAccess = errors.New("refresh returned no access token")

	// ErrSignedOut settles a late caller whose session was already cleared
	// without a rejected refresh, for example by an explicit logout.
	ErrSignedOut = errors.New("signed out")
)

// Store is the slice of the credential store the coordinator writes.
type Store interface {
	AccessToken() (string, bool)
	Write(pair credential.Pair, principal *identity.Principal) error
	UpdateAccess(token string) error
	Clear() error
}

// Notifier receives the logout signal.
type Notifier interface {
	Emit(events.LogoutSignal)
}

// Result is what a refresh call produced. Refresh is empty when the server did not rotate it.
type Result struct {
	Access  string
	Refresh string
}

// Func performs the refresh exchange.
type Func func(ctx context.Context) (Result, error)

// Flight is one refresh window's shared outcome.
type Flight struct {
	done    chan struct{}
	once    sync.Once
	token   string
	err     error
	joiners int
}

func newFlight() *Flight {
	return &Flight{done: make(chan struct{})}
}

func settledFlight(token string, err error) *Flight {
	f := newFlight()
	f.token, f.err = token, err
	f.once.Do(func() { close(f.done) })
	return f
}

// Wait blocks until the flight settles or ctx is done. Abandoning the wait does
// not cancel the refresh.
func (f *Flight) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.token, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Done is closed once the flight settles.
func (f *Flight) Done() <-chan struct{} { return f.done }

// Coordinator owns the refresh window.
type Coordinator struct {
	mu      sync.Mutex
	current *Flight
	// ended is the cause of the last rejected refresh, handed to late callers.
	ended error

	store   Store
	bus     Notifier
	log     *slog.Logger
	metrics *metrics.Collector
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New constructs a Coordinator.
func New(store Store, bus Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: store,
		bus:   bus,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "refresh")
	return c
}

// BeginOrJoin returns the open flight, or opens one and reports initiator=true.
//
// used is the access token the failed request carried. When no window is open
// it is compared with the store and the returned flight may already be settled:
//   - the store holds a different token: a refresh finished after the request
//     was sent, so the flight carries the current token;
//   - the store is empty: the session the request belonged to has ended, so the
//     flight carries the cause of the last rejection (or ErrSignedOut) and the
//     store is not cleared nor the logout emitted a second time.
//
// Pass "" to skip the check.
func (c *Coordinator) BeginOrJoin(used string) (initiator bool, f *Flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.joiners++
		c.metrics.ObserveRefreshJoin()
		return false, c.current
	}

	if used != "" {
		cur, ok := c.store.AccessToken()
		switch {
		case !ok:
			cause := c.ended
			if cause == nil {
				cause = ErrSignedOut
			}
			c.log.Debug("auth.refresh.session_ended")
			return false, settledFlight("", cause)
		case cur != used:
			c.log.Debug("auth.refresh.stale_token")
			return false, settledFlight(cur, nil)
		}
	}

	c.current = newFlight()
	return true, c.current
}

// Pending returns how many callers are waiting on the open flight, excluding the initiator.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return 0
	}
	return c.current.joiners
}

// Resolve stores res and releases every waiter with the new access token.
func (c *Coordinator) Resolve(f *Flight, res Result) {
	f.once.Do(func() {
		c.mu.Lock()
		var err error
		if res.Refresh != "" {
			err = c.store.Write(credential.Pair{Access: res.Access, Refresh: res.Refresh}, nil)
		} else {
			err = c.store.UpdateAccess(res.Access)
		}
		if c.current == f {
			c.current = nil
		}
		c.ended = nil
		joiners := f.joiners
		c.mu.Unlock()

		if err != nil {
			c.log.Warn("auth.refresh.persist.fail", "err", err)
		}
		c.log.Info("auth.refresh.success", "rotated", res.Refresh != "", "waiters", joiners)
		c.metrics.ObserveRefresh(true)

		f.token = res.Access
		close(f.done)
	})
}

// Reject clears the store, emits one logout signal and releases every waiter with cause.
func (c *Coordinator) Reject(f *Flight, cause error) {
	f.once.Do(func() {
		c.mu.Lock()
		clearErr := c.store.Clear()
		if c.current == f {
			c.current = nil
		}
		c.ended = cause
		joiners := f.joiners
		c.mu.Unlock()

		if clearErr != nil {
			c.log.Warn("auth.refresh.clear.fail", "err", clearErr)
		}
		c.log.Warn("auth.refresh.fail", "err", cause, "waiters", joiners)
		c.metrics.ObserveRefresh(false)
		c.metrics.ObserveLogout()

		if c.bus != nil {
			c.bus.Emit(events.LogoutSignal{Reason: events.ReasonRefreshFailed})
		}

		f.err = cause
		close(f.done)
	})
}

// Do joins or starts a refresh and waits for it. The refresh itself runs
// detached from ctx: a caller that gives up does not abort it for the others.
func (c *Coordinator) Do(ctx context.Context, used string, fn Func) (string, error) {
	initiator, f := c.BeginOrJoin(used)
	if initiator {
		go c.run(context.WithoutCancel(ctx), f, fn)
	}
	return f.Wait(ctx)
}

func (c *Coordinator) run(ctx context.Context, f *Flight, fn Func) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.Reject(f, fmt.Errorf("refresh panicked: %v", r))
		}
	}()

	res, err := fn(ctx)
	if err == nil && res.Access == "" {
		err = ErrEmptyAccess
	}

	c.log.Debug("auth.refresh.done", "duration_ms", time.Since(start).Milliseconds(), "ok", err == nil)

	if err != nil {
		c.Reject(f, err)
		return
	}
	c.Resolve(f, res)
}
