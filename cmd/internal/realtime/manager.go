package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mladen081/u-m/cmd/internal/metrics"
	v1 "github.com/mladen081/u-m/shared/contracts/realtime/v1"
)

// State is the connection lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TokenSource supplies the current access token. *credential.Vault implements it.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Manager owns the single realtime transport and its reconnect policy.
//
// At most one transport is connecting or open at a time: every attempt gets a
// generation number, and events from an older generation are ignored.
type Manager struct {
	dialer  Dialer
	tokens  TokenSource
	router  *Router
	clock   Clock
	backoff Backoff
	log     *slog.Logger
	metrics *metrics.Collector

	sendLimit  int
	sendWindow time.Duration

	onOpen  func()
	onState func(State)

	mu        sync.Mutex
	state     State
	gen       uint64
	attempt   int
	exhausted bool
	closed    bool
	timer     Timer
	conn      Conn
	cancel    context.CancelFunc
	limiter   *RateLimiter
	wg        sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock that schedules reconnects. A nil clock is ignored.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithBackoff sets the reconnect policy. A zero Base or Cap takes the default.
func WithBackoff(b Backoff) Option {
	return func(m *Manager) { m.backoff = b.normalized() }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithSendLimit caps outbound messages per window on each connection.
// A limit of zero disables limiting.
func WithSendLimit(limit int, window time.Duration) Option {
	return func(m *Manager) {
		m.sendLimit = limit
		m.sendWindow = window
	}
}

// WithOnOpen registers a callback run after every successful open.
func WithOnOpen(f func()) Option {
	return func(m *Manager) { m.onOpen = f }
}

// WithOnState registers a callback for state changes. It runs outside the
// manager lock, possibly from several goroutines.
func WithOnState(f func(State)) Option {
	return func(m *Manager) { m.onState = f }
}

// NewManager returns an idle Manager.
func NewManager(dialer Dialer, tokens TokenSource, router *Router, opts ...Option) *Manager {
	m := &Manager{
		dialer:     dialer,
		tokens:     tokens,
		router:     router,
		clock:      SystemClock{},
		backoff:    DefaultBackoff(),
		log:        slog.Default(),
		sendLimit:  rateLimitEvents,
		sendWindow: rateLimitWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.router == nil {
		m.router = NewRouter(m.log, m.metrics)
	}
	m.log = m.log.With("component", "realtime")
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempt returns the number of retries spent since the last successful open.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Exhausted reports that the retry budget ran out and the manager gave up.
func (m *Manager) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exhausted
}

// Connect starts a transport unless one is already connecting or open.
// It cancels a pending retry. It does not reset the retry budget; only a
// successful open does.
func (m *Manager) Connect() error {
	m.mu.Lock()
	before := m.state
	err := m.connectLocked("manual")
	state := m.state
	m.mu.Unlock()

	if state != before {
		m.notifyState(state)
	}
	return err
}

func (m *Manager) connectLocked(reason string) error {
	if m.closed {
		return ErrClosed
	}
	if m.state == StateConnecting || m.state == StateOpen {
		return nil
	}
	token, ok := m.tokens.AccessToken()
	if !ok || token == "" {
		return ErrNoAccessToken
	}

	m.stopTimerLocked()
	m.exhausted = false
	m.gen++
	gen := m.gen

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.setStateLocked(StateConnecting)

	id := newConnID(m.clock.Now())
	m.log.Info("ws.connect.start", "conn_id", id, "reason", reason, "attempt", m.attempt)

	m.wg.Add(1)
	go m.run(ctx, gen, id, token)
	return nil
}

func (m *Manager) run(ctx context.Context, gen uint64, id, token string) {
	defer m.wg.Done()

	conn, err := m.dialer.Dial(ctx, token)
	if err != nil {
		m.dropped(gen, id, err)
		return
	}
	if !m.opened(gen, id, conn) {
		_ = conn.Close()
		return
	}

	err = m.readLoop(ctx, id, conn)
	m.dropped(gen, id, err)
}

func (m *Manager) opened(gen uint64, id string, conn Conn) bool {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return false
	}
	m.conn = conn
	m.attempt = 0
	m.exhausted = false
	m.limiter = nil
	if m.sendLimit > 0 {
		m.limiter = NewRateLimiter(m.sendLimit, m.sendWindow)
	}
	m.setStateLocked(StateOpen)
	m.mu.Unlock()

	m.log.Info("ws.connect.open", "conn_id", id)
	m.notifyState(StateOpen)
	if m.onOpen != nil {
		m.onOpen()
	}
	return true
}

func (m *Manager) readLoop(ctx context.Context, id string, conn Conn) error {
	for {
		raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if err := m.router.Dispatch(raw); err != nil {
			m.log.Warn("ws.frame.dropped", "conn_id", id, "err", err)
		}
	}
}

// dropped handles the end of a transport: dial failure, server close or read error.
func (m *Manager) dropped(gen uint64, id string, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}

	conn := m.conn
	m.conn = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.setStateLocked(StateIdle)

	var delay time.Duration
	retry := m.backoff.Allows(m.attempt)
	if retry {
		delay = m.backoff.Delay(m.attempt)
		m.attempt++
		m.metrics.ObserveReconnect()
		m.timer = m.clock.AfterFunc(delay, func() { m.retry(gen) })
	} else {
		m.exhausted = true
	}
	attempt := m.attempt
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	if retry {
		m.log.Info("ws.connect.lost", "conn_id", id, "err", errString(cause), "retry_in", delay, "attempt", attempt)
	} else {
		m.log.Warn("ws.connect.gave_up", "conn_id", id, "err", errString(cause), "attempts", attempt)
	}
	m.notifyState(StateIdle)
}

// retry runs from the backoff timer. A manual Connect or Disconnect in the
// meantime bumps the generation and turns it into a no-op.
func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen || m.state != StateIdle {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	err := m.connectLocked("retry")
	state := m.state
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("ws.connect.retry_skipped", "err", err)
		return
	}
	m.notifyState(state)
}

// Disconnect stops reconnecting and closes the transport. It is terminal and
// idempotent; a pending retry is cancelled before it returns.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stopTimerLocked()
	m.gen++
	conn := m.conn
	m.conn = nil
	cancel := m.cancel
	m.cancel = nil
	m.setStateLocked(StateClosing)
	m.mu.Unlock()

	m.notifyState(StateClosing)
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.log.Debug("ws.close.fail", "err", err)
		}
	}

	m.mu.Lock()
	m.setStateLocked(StateClosed)
	m.mu.Unlock()
	m.notifyState(StateClosed)
	m.log.Info("ws.disconnect")
}

// Wait blocks until every transport goroutine has exited.
// Call it after Disconnect, never from a frame handler.
func (m *Manager) Wait() { m.wg.Wait() }

// SendMessage writes {"message": text} when the connection is open.
// When it is not open the message is dropped and nil is returned.
func (m *Manager) SendMessage(ctx context.Context, text string) error {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateOpen
	limiter := m.limiter
	m.mu.Unlock()

	if !open || conn == nil {
		m.metrics.ObserveSendDrop()
		m.log.Debug("ws.send.not_open")
		return nil
	}

	out := v1.Outbound{Message: text}
	if err := out.Validate(); err != nil {
		return err
	}
	if limiter != nil && !limiter.Allow(m.clock.Now()) {
		m.metrics.ObserveSendDrop()
		return ErrRateLimited
	}

	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, b)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	m.state = s
	m.metrics.SetConnectionState(int(s))
}

func (m *Manager) notifyState(s State) {
	if m.onState != nil {
		m.onState(s)
	}
}

func errString(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return err.Error()
	}
}
