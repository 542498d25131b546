package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authapi "github.com/mladen081/u-m/cmd/internal/auth/api"
	"github.com/mladen081/u-m/cmd/internal/auth/credential"
	"github.com/mladen081/u-m/cmd/internal/auth/events"
	"github.com/mladen081/u-m/cmd/internal/realtime"
	"github.com/mladen081/u-m/cmd/security/password"
	"github.com/mladen081/u-m/cmd/security/seal"
)

func discardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://chat.example.com/api
http_timeout: 3s
log:
  level: debug
  format: json
store:
  driver: memory
  profile: work
chat:
  history_limit: 80
  send_window: 5s
realtime:
  reconnect_attempts: 3
`), 0o600))

	t.Setenv("CHAT_CONFIG", path)
	t.Setenv("CHAT_LOG_LEVEL", "warn")
	t.Setenv("CHAT_SEND_LIMIT", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "https://chat.example.com/api", cfg.Session.BaseURL)
	require.Equal(t, 3*time.Second, cfg.Session.Timeout)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, "work", cfg.Profile)
	require.Equal(t, 80, cfg.HistoryLimit)
	require.Equal(t, 7, cfg.SendLimit)
	require.Equal(t, 5*time.Second, cfg.SendWindow)
	require.Equal(t, 3, cfg.ReconnectAttempts)

	ws, err := cfg.RealtimeURL()
	require.NoError(t, err)
	require.Equal(t, "wss://chat.example.com/ws/chat/", ws)
}

func TestLoadConfig_UnknownFileKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_ur1: http://x\n"), 0o600))
	t.Setenv("CHAT_CONFIG", path)

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "bad url", mutate: func(c *Config) { c.Session.BaseURL = "::nope" }},
		{name: "postgres without url", mutate: func(c *Config) { c.StoreDriver = StorePostgres }},
		{name: "sqlite without path", mutate: func(c *Config) { c.StorePath = " " }},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "redis" }},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestRealtimeURL_ExplicitWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WSURL = "ws://10.0.0.5:9000/ws/chat/"
	got, err := cfg.RealtimeURL()
	require.NoError(t, err)
	require.Equal(t, "ws://10.0.0.5:9000/ws/chat/", got)

	cfg.WSURL = ""
	got, err = cfg.RealtimeURL()
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8000/ws/chat/", got)
}

func TestValidateSecurityConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireSealedStorage = true

	t.Setenv(seal.PassphraseEnvKey, "")
	err := ValidateSecurityConfig(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing")

	t.Setenv(seal.PassphraseEnvKey, "short")
	err = ValidateSecurityConfig(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "too short")

	t.Setenv(seal.PassphraseEnvKey, "a long enough passphrase")
	require.NoError(t, ValidateSecurityConfig(cfg))

	t.Setenv(seal.PassphraseEnvKey, "")
	cfg.StoreDriver = StoreMemory
	require.NoError(t, ValidateSecurityConfig(cfg))

	cfg.StoreDriver = StoreSQLite
	cfg.RequireSealedStorage = false
	require.NoError(t, ValidateSecurityConfig(cfg))
}

func cheapPassword() password.Config {
	pw := password.DefaultConfig()
	pw.Params.MemoryKiB = 8 * 1024
	pw.Params.Iterations = 1
	return pw
}

func TestOpenStore_SQLitePersists(t *testing.T) {
	t.Setenv(seal.PassphraseEnvKey, "")
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.StorePath = filepath.Join(t.TempDir(), "nested", "credentials.db")

	h, err := openStore(ctx, cfg, cheapPassword(), discardLogger())
	require.NoError(t, err)
	require.False(t, h.sealed)

	v, err := credential.Open(ctx, h.backend)
	require.NoError(t, err)
	require.NoError(t, v.Write(credential.Pair{Access: "a1", Refresh: "r1"}, nil))
	h.close()

	h, err = openStore(ctx, cfg, cheapPassword(), discardLogger())
	require.NoError(t, err)
	defer h.close()

	v, err = credential.Open(ctx, h.backend)
	require.NoError(t, err)
	pair, ok := v.Read()
	require.True(t, ok)
	require.Equal(t, credential.Pair{Access: "a1", Refresh: "r1"}, pair)
}

func TestOpenStore_SealedAtRest(t *testing.T) {
	t.Setenv(seal.PassphraseEnvKey, "correct horse battery staple")
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.StorePath = filepath.Join(t.TempDir(), "credentials.db")

	h, err := openStore(ctx, cfg, cheapPassword(), discardLogger())
	require.NoError(t, err)
	require.True(t, h.sealed)

	v, err := credential.Open(ctx, h.backend)
	require.NoError(t, err)
	require.NoError(t, v.Write(credential.Pair{Access: "a1", Refresh: "r1"}, nil))
	h.close()

	raw, err := credential.OpenSQLite(ctx, cfg.StorePath, credential.DefaultProfile)
	require.NoError(t, err)
	slots, err := raw.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, raw.Close())
	require.NotEmpty(t, slots[credential.SlotSealSalt])
	require.NotEqual(t, "a1", slots[credential.SlotAccess])
	require.NotEqual(t, "r1", slots[credential.SlotRefresh])

	// Same passphrase, same salt: the pair opens again.
	h, err = openStore(ctx, cfg, cheapPassword(), discardLogger())
	require.NoError(t, err)
	v, err = credential.Open(ctx, h.backend)
	require.NoError(t, err)
	pair, ok := v.Read()
	require.True(t, ok)
	require.Equal(t, "a1", pair.Access)
	h.close()

	// A different passphrase reads as signed out.
	t.Setenv(seal.PassphraseEnvKey, "a different passphrase")
	h, err = openStore(ctx, cfg, cheapPassword(), discardLogger())
	require.NoError(t, err)
	defer h.close()
	v, err = credential.Open(ctx, h.backend)
	require.NoError(t, err)
	_, ok = v.Read()
	require.False(t, ok)
}

// chatAPI serves the auth and chat endpoints the App needs.
func chatAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, `{"access":"a1","refresh":"r1","user":{"id":7,"username":"alice","is_admin":true}}`)
	})
	mux.HandleFunc("/api/chat/messages/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a1" {
			reply(w, http.StatusUnauthorized, `{"detail":"Given token not valid"}`)
			return
		}
		reply(w, http.StatusOK, `{"status":"success","data":[
			{"id":1,"message":"hi","username":"bob","user_id":9,"timestamp":"2026-01-02T10:00:00+00:00"}]}`)
	})
	mux.HandleFunc("/api/chat/online-users/", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, `{"status":"success","data":["alice","bob"]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// idleDialer hands out connections that stay open and silent until closed.
type idleDialer struct{}

func (idleDialer) Dial(context.Context, string) (realtime.Conn, error) {
	return &idleConn{done: make(chan struct{})}, nil
}

type idleConn struct {
	done chan struct{}
}

func (c *idleConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, errors.New("closed")
	}
}

func (c *idleConn) Write(context.Context, []byte) error { return nil }

func (c *idleConn) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv(seal.PassphraseEnvKey, "")
	srv := chatAPI(t)

	cfg := DefaultConfig()
	cfg.Session.BaseURL = srv.URL + "/api"
	cfg.StoreDriver = StoreMemory

	a, err := New(context.Background(), cfg, discardLogger(), WithDialer(idleDialer{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestApp_LoginHistoryAndStatus(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	require.False(t, a.Status().SignedIn)

	p, err := a.Auth().Login(ctx, authapi.Credentials{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	require.True(t, p.IsAdmin)

	msgs, err := a.LoadHistory(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "bob", msgs[0].Username)

	st := a.Status()
	require.True(t, st.SignedIn)
	require.True(t, st.IsAdmin)
	require.Equal(t, "alice", st.Username)
	require.Equal(t, "idle", st.Realtime)
}

func TestApp_LogoutSignalClosesRealtime(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.Auth().Login(ctx, authapi.Credentials{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	require.NoError(t, a.Realtime().Connect())
	require.Eventually(t, func() bool { return a.Realtime().State() == realtime.StateOpen },
		time.Second, 5*time.Millisecond)

	a.Bus().Emit(events.LogoutSignal{Reason: events.ReasonRefreshFailed})

	require.Equal(t, realtime.StateClosed, a.Realtime().State())
	require.ErrorIs(t, a.Realtime().Connect(), realtime.ErrClosed)
}

func TestApp_DebugHandler(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Auth().Login(context.Background(), authapi.Credentials{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	h := a.DebugHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "a1")
	require.NotContains(t, rec.Body.String(), "r1")
	var st SessionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.True(t, st.SignedIn)
	require.Equal(t, "alice", st.Username)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "chat_client_")
}

func TestApp_RunChatRequiresSession(t *testing.T) {
	a := newTestApp(t)
	err := a.RunChat(context.Background(), strings.NewReader(""), io.Discard)
	require.ErrorIs(t, err, ErrNotSignedIn)
}

func TestApp_RunChatPrintsHistoryAndQuits(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	_, err := a.Auth().Login(ctx, authapi.Credentials{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	var out bytes.Buffer
	err = a.RunChat(ctx, strings.NewReader("/online\n/bogus\n/quit\n"), &out)
	require.NoError(t, err)

	got := out.String()
	require.Contains(t, got, "signed in as alice")
	require.Contains(t, got, "bob: hi")
	require.Contains(t, got, "online (2): alice, bob")
	require.Contains(t, got, "unknown command /bogus")
	require.Equal(t, realtime.StateClosed, a.Realtime().State())
}
