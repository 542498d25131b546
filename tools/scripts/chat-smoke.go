// Package main is a CI-friendly smoke test against a running chat server.
//
// It validates:
//   - login and token storage
//   - history fetch through the authenticated client
//   - websocket handshake with the access token
//   - send -> new_message echo carrying a server id
//   - the echoed message shows up in history
//   - the sender is listed as online
//   - logout
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/mladen081/u-m/cmd/identity"
	authapi "github.com/mladen081/u-m/cmd/internal/auth/api"
	"github.com/mladen081/u-m/cmd/internal/auth/credential"
	"github.com/mladen081/u-m/cmd/internal/auth/events"
	"github.com/mladen081/u-m/cmd/internal/auth/refresh"
	"github.com/mladen081/u-m/cmd/internal/auth/session"
	"github.com/mladen081/u-m/cmd/internal/chat"
	"github.com/mladen081/u-m/cmd/internal/realtime"
	v1 "github.com/mladen081/u-m/shared/contracts/realtime/v1"
)

func main() {
	var (
		apiURL   = flag.String("api", "http://127.0.0.1:8000/api", "API base URL")
		wsURL    = flag.String("ws", "", "websocket URL (derived from -api when empty)")
		user     = flag.String("user", "smoke", "username")
		password = flag.String("password", os.Getenv("CHAT_SMOKE_PASSWORD"), "password (default $CHAT_SMOKE_PASSWORD)")
		text     = flag.String("text", "hello from chat-smoke", "message text prefix")
		timeout  = flag.Duration("timeout", 7*time.Second, "per-step timeout")
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *wsURL == "" {
		u, err := realtime.WSURLFromBase(*apiURL)
		if err != nil {
			fatalf("invalid -api: %v", err)
		}
		*wsURL = u
	}

	root, cancel := context.WithCancel(context.Background())
	defer cancel()

	vault := credential.NewVault(credential.WithLogger(log))
	bus := events.NewBus(log)
	bus.Subscribe(func(sig events.LogoutSignal) { fatalf("session ended: %s", sig.Reason) })

	cfg := session.DefaultConfig()
	cfg.BaseURL = *apiURL
	cfg.Timeout = *timeout
	client, err := session.New(cfg, vault, refresh.New(vault, bus, refresh.WithLogger(log)), session.WithLogger(log))
	if err != nil {
		fatalf("session client: %v", err)
	}
	auth, err := authapi.New(authapi.DefaultConfig(), client, vault, authapi.WithLogger(log))
	if err != nil {
		fatalf("auth facade: %v", err)
	}
	svc, err := chat.NewService(client, log)
	if err != nil {
		fatalf("chat service: %v", err)
	}

	p := mustLogin(root, auth, *user, *password, *timeout)
	mustHistory(root, svc, *timeout)

	inbox := make(chan v1.NewMessage, 64)
	router := realtime.NewRouter(log, nil)
	router.OnNewMessage(func(m v1.NewMessage) {
		select {
		case inbox <- m:
		default:
		}
	})

	opened := make(chan struct{}, 1)
	mgr := realtime.NewManager(&realtime.WSDialer{URL: *wsURL}, vault, router,
		realtime.WithLogger(log),
		realtime.WithOnOpen(func() {
			select {
			case opened <- struct{}{}:
			default:
			}
		}),
	)
	defer func() {
		mgr.Disconnect()
		mgr.Wait()
	}()

	if err := mgr.Connect(); err != nil {
		fatalf("connect: %v", err)
	}
	select {
	case <-opened:
	case <-time.After(*timeout):
		fatalf("connect: not open after %s (state=%s attempt=%d)", *timeout, mgr.State(), mgr.Attempt())
	}

	body := fmt.Sprintf("%s %d", *text, time.Now().UnixNano())
	if err := mgr.SendMessage(root, body); err != nil {
		fatalf("send: %v", err)
	}
	echo := mustReadEcho(inbox, body, p.Username, *timeout)

	mustHistoryContains(root, svc, echo.MessageID, *timeout)
	mustOnline(root, svc, p.Username, *timeout)

	ctx, stop := context.WithTimeout(root, *timeout)
	defer stop()
	if err := auth.Logout(ctx); err != nil {
		fatalf("logout: %v", err)
	}
	if auth.IsAuthenticated() {
		fatalf("logout: credentials still stored")
	}

	fmt.Printf("OK: user=%s message_id=%d ws=%s\n", p.Username, echo.MessageID, *wsURL)
}

func mustLogin(parent context.Context, auth *authapi.Facade, user, password string, stepTimeout time.Duration) identity.Principal {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if strings.TrimSpace(password) == "" {
		fatalf("login: -password or CHAT_SMOKE_PASSWORD is required")
	}
	got, err := auth.Login(ctx, authapi.Credentials{Username: user, Password: password})
	if err != nil {
		fatalf("login %s: %v", user, err)
	}
	return got
}

func mustHistory(parent context.Context, svc *chat.Service, stepTimeout time.Duration) []chat.Message {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	msgs, err := svc.Messages(ctx, chat.MaxHistoryLimit)
	if err != nil {
		fatalf("history: %v", err)
	}
	return msgs
}

func mustReadEcho(inbox <-chan v1.NewMessage, body, username string, stepTimeout time.Duration) v1.NewMessage {
	deadline := time.After(stepTimeout)
	for {
		select {
		case m := <-inbox:
			if m.Message != body {
				continue
			}
			if m.Username != username {
				fatalf("echo: username=%q want %q", m.Username, username)
			}
			if m.MessageID == 0 {
				fatalf("echo: missing message_id")
			}
			return m
		case <-deadline:
			fatalf("echo: no new_message with our text within %s", stepTimeout)
		}
	}
}

func mustHistoryContains(parent context.Context, svc *chat.Service, id int64, stepTimeout time.Duration) {
	msgs := mustHistory(parent, svc, stepTimeout)
	if !slices.ContainsFunc(msgs, func(m chat.Message) bool { return m.ID == id }) {
		fatalf("history: message %d not found in latest %d", id, len(msgs))
	}
}

func mustOnline(parent context.Context, svc *chat.Service, username string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	users, err := svc.OnlineUsers(ctx)
	if err != nil {
		fatalf("online: %v", err)
	}
	if !slices.Contains(users, username) {
		fatalf("online: %q not in %v", username, users)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
