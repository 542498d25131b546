// Package app wires the chat client runtime: config, logging, the credential
// vault, the session client, the realtime manager and the debug listener.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	authapi "github.com/mladen081/u-m/cmd/internal/auth/api"
	"github.com/mladen081/u-m/cmd/internal/auth/credential"
	"github.com/mladen081/u-m/cmd/internal/auth/events"
	"github.com/mladen081/u-m/cmd/internal/auth/refresh"
	"github.com/mladen081/u-m/cmd/internal/auth/session"
	"github.com/mladen081/u-m/cmd/internal/chat"
	"github.com/mladen081/u-m/cmd/internal/metrics"
	"github.com/mladen081/u-m/cmd/internal/realtime"
	"github.com/mladen081/u-m/cmd/security/password"
	v1 "github.com/mladen081/u-m/shared/contracts/realtime/v1"
)

// View renders realtime updates. Calls arrive on the realtime reader goroutine.
type View interface {
	Message(chat.Message)
	Cleared()
	Online(users []string)
	State(realtime.State)
}

// Option configures an App.
type Option func(*options)

type options struct {
	clock  realtime.Clock
	dialer realtime.Dialer
}

// WithClock replaces the reconnect clock.
func WithClock(c realtime.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d realtime.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// App is the chat client runtime. It owns every long-lived component.
type App struct {
	cfg     Config
	log     Logger
	metrics *metrics.Collector

	store *storeHandle

	vault  *credential.Vault
	bus    *events.Bus
	coord  *refresh.Coordinator
	client *session.Client
	auth   *authapi.Facade
	chat   *chat.Service
	room   *chat.Room
	router *realtime.Router
	rt     *realtime.Manager

	unsubscribe func()
	closeOnce   sync.Once

	viewMu sync.RWMutex
	view   View
}

// New constructs a fully wired App from config and logger.
func New(ctx context.Context, cfg Config, log Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	}
	o := options{clock: realtime.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	pw, err := password.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}

	st, err := openStore(ctx, cfg, pw, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		store:   st,
		bus:     events.NewBus(log),
		room:    chat.NewRoom(0),
	}
	if err := a.wire(ctx, pw, o); err != nil {
		st.close()
		return nil, err
	}

	log.Info("app.ready",
		"api_url", cfg.Session.BaseURL,
		"store", cfg.StoreDriver,
		"profile", cfg.Profile,
		"sealed", st.sealed,
		"signed_in", a.auth.IsAuthenticated(),
	)
	return a, nil
}

func (a *App) wire(ctx context.Context, pw password.Config, o options) error {
	vault, err := credential.Open(ctx, a.store.backend, credential.WithLogger(a.log))
	if err != nil {
		return err
	}
	a.vault = vault

	a.coord = refresh.New(vault, a.bus, refresh.WithLogger(a.log), refresh.WithMetrics(a.metrics))

	a.client, err = session.New(a.cfg.Session, vault, a.coord,
		session.WithLogger(a.log),
		session.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}

	a.auth, err = authapi.New(a.cfg.Auth, a.client, vault,
		authapi.WithLogger(a.log),
		authapi.WithPasswordPolicy(pw),
	)
	if err != nil {
		return err
	}

	a.chat, err = chat.NewService(a.client, a.log)
	if err != nil {
		return err
	}

	dialer := o.dialer
	if dialer == nil {
		wsURL, err := a.cfg.RealtimeURL()
		if err != nil {
			return fmt.Errorf("realtime url: %w", err)
		}
		dialer = &realtime.WSDialer{URL: wsURL}
	}

	a.router = realtime.NewRouter(a.log, a.metrics)
	a.router.OnNewMessage(a.onMessage)
	a.router.OnClearAll(a.onClear)
	a.router.OnUserListUpdate(a.onOnline)

	backoff := realtime.DefaultBackoff()
	if a.cfg.ReconnectAttempts > 0 {
		backoff.MaxRetries = a.cfg.ReconnectAttempts
	}
	a.rt = realtime.NewManager(dialer, vault, a.router,
		realtime.WithClock(o.clock),
		realtime.WithBackoff(backoff),
		realtime.WithLogger(a.log),
		realtime.WithMetrics(a.metrics),
		realtime.WithSendLimit(a.cfg.SendLimit, a.cfg.SendWindow),
		realtime.WithOnState(a.onState),
	)

	a.unsubscribe = a.bus.Subscribe(a.onLogout)
	return nil
}

func (a *App) onMessage(f v1.NewMessage) {
	m := chat.FromFrame(f)
	if !a.room.Append(m) {
		return
	}
	if v := a.currentView(); v != nil {
		v.Message(m)
	}
}

func (a *App) onClear() {
	a.room.Clear()
	if v := a.currentView(); v != nil {
		v.Cleared()
	}
}

func (a *App) onOnline(users []string) {
	a.room.SetOnline(users)
	if v := a.currentView(); v != nil {
		v.Online(users)
	}
}

func (a *App) onState(s realtime.State) {
	if v := a.currentView(); v != nil {
		v.State(s)
	}
}

// onLogout runs when a refresh is rejected. The vault is already cleared;
// the realtime transport must not outlive the session.
func (a *App) onLogout(sig events.LogoutSignal) {
	a.log.Warn("session.logout", "reason", sig.Reason)
	a.rt.Disconnect()
}

// SetView installs v as the render target. A nil v detaches the view.
func (a *App) SetView(v View) {
	a.viewMu.Lock()
	defer a.viewMu.Unlock()
	a.view = v
}

func (a *App) currentView() View {
	a.viewMu.RLock()
	defer a.viewMu.RUnlock()
	return a.view
}

// Config returns the runtime configuration.
func (a *App) Config() Config { return a.cfg }

// Logger returns the app logger.
func (a *App) Logger() Logger { return a.log }

// Metrics returns the collector shared by every component.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Vault returns the credential vault.
func (a *App) Vault() *credential.Vault { return a.vault }

// Bus returns the session event bus.
func (a *App) Bus() *events.Bus { return a.bus }

// Session returns the authenticated request client.
func (a *App) Session() *session.Client { return a.client }

// Auth returns the account facade.
func (a *App) Auth() *authapi.Facade { return a.auth }

// Chat returns the chat REST service.
func (a *App) Chat() *chat.Service { return a.chat }

// Room returns the local message and presence state.
func (a *App) Room() *chat.Room { return a.room }

// Realtime returns the connection manager.
func (a *App) Realtime() *realtime.Manager { return a.rt }

func (a *App) historyLimit() int { return chat.ClampLimit(a.cfg.HistoryLimit) }

// LoadHistory replaces the room with the latest server history.
func (a *App) LoadHistory(ctx context.Context) ([]chat.Message, error) {
	msgs, err := a.chat.Messages(ctx, a.historyLimit())
	if err != nil {
		return nil, err
	}
	a.room.Replace(msgs)
	return a.room.Messages(), nil
}

// Close disconnects the realtime transport and releases the store.
func (a *App) Close(_ context.Context) error {
	a.closeOnce.Do(func() {
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		if a.rt != nil {
			a.rt.Disconnect()
			a.rt.Wait()
		}
		a.store.close()
		a.log.Info("app.closed")
	})
	return nil
}
