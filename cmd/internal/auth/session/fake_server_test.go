package session

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mladen081/u-m/cmd/identity"
	"github.com/mladen081/u-m/cmd/internal/auth/credential"
	"github.com/mladen081/u-m/cmd/internal/auth/events"
	"github.com/mladen081/u-m/cmd/internal/auth/refresh"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts exactly one access token at a time on /api/protected/ and
// issues the next one from /api/auth/token/refresh/.
type fakeAPI struct {
	mu            sync.Mutex
	validAccess   string
	nextAccess    string
	nextRefresh   string
	refreshStatus int
	refreshDelay  time.Duration
	alwaysDeny    bool
	// onProtected runs before /api/protected/ answers, with the 1-based hit number.
	onProtected func(hit int32)

	refreshCalls  atomic.Int32
	protectedHits atomic.Int32
	lastRefreshIn string
	bodies        []string
	authHeaders   []string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		var in struct {
			Refresh string `json:"refresh"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)

		f.mu.Lock()
		f.lastRefreshIn = in.Refresh
		delay := f.refreshDelay
		status := f.refreshStatus
		f.mu.Unlock()

		time.Sleep(delay)

		if status != 0 && status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"status":"error","message":"Token is invalid or expired","code":"INVALID_REFRESH_TOKEN"}`))
			return
		}

		f.mu.Lock()
		f.validAccess = f.nextAccess
		out := map[string]string{"access": f.nextAccess}
		if f.nextRefresh != "" {
			out["refresh"] = f.nextRefresh
		}
		f.mu.Unlock()

		writeTestJSON(w, http.StatusOK, map[string]any{"status": "success", "data": out})
	})

	mux.HandleFunc("/api/protected/", func(w http.ResponseWriter, r *http.Request) {
		hit := f.protectedHits.Add(1)
		b, _ := io.ReadAll(r.Body)
		if f.onProtected != nil {
			f.onProtected(hit)
		}

		f.mu.Lock()
		f.bodies = append(f.bodies, string(b))
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		ok := !f.alwaysDeny && r.Header.Get("Authorization") == "Bearer "+f.validAccess
		f.mu.Unlock()

		if !ok {
			writeTestJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Given token not valid"})
			return
		}
		w.Header().Set("X-Request-ID", r.Header.Get("X-Request-ID"))
		writeTestJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{"ok": true}})
	})

	mux.HandleFunc("/api/boom/", func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "boom"})
	})

	return mux
}

func (f *fakeAPI) seenAuth() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func (f *fakeAPI) seenBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

func (f *fakeAPI) seenRefresh() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRefreshIn
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type harness struct {
	api     *fakeAPI
	srv     *httptest.Server
	vault   *credential.Vault
	bus     *events.Bus
	logouts *atomic.Int32
	client  *Client
}

func newHarness(t *testing.T, api *fakeAPI) *harness {
	t.Helper()

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	vault := credential.NewVault()
	bus := events.NewBus(nil)
	logouts := &atomic.Int32{}
	bus.Subscribe(func(events.LogoutSignal) { logouts.Add(1) })

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/api"

	client, err := New(cfg, vault, refresh.New(vault, bus))
	require.NoError(t, err)

	return &harness{api: api, srv: srv, vault: vault, bus: bus, logouts: logouts, client: client}
}

func (h *harness) login(t *testing.T, access, refreshTok string) {
	t.Helper()
	require.NoError(t, h.vault.Write(credential.Pair{Access: access, Refresh: refreshTok}, &identity.Principal{ID: 7, Username: "alice"}))
}
