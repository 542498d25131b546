package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// SessionStatus is the /debug/session payload. It never carries tokens.
type SessionStatus struct {
	SignedIn      bool       `json:"signed_in"`
	Username      string     `json:"username,omitempty"`
	IsAdmin       bool       `json:"is_admin"`
	AccessExpiry  *time.Time `json:"access_expiry,omitempty"`
	Realtime      string     `json:"realtime"`
	RetryAttempt  int        `json:"retry_attempt"`
	RetryGaveUp   bool       `json:"retry_gave_up"`
	Sealed        bool       `json:"sealed"`
	Store         string     `json:"store"`
	LogoutWatches int        `json:"logout_subscribers"`
}

// Status reports the session and connection state without secrets.
func (a *App) Status() SessionStatus {
	st := SessionStatus{
		SignedIn:      a.auth.IsAuthenticated(),
		IsAdmin:       a.auth.IsAdmin(),
		Realtime:      a.rt.State().String(),
		RetryAttempt:  a.rt.Attempt(),
		RetryGaveUp:   a.rt.Exhausted(),
		Sealed:        a.store.sealed,
		Store:         a.cfg.StoreDriver,
		LogoutWatches: a.bus.Len(),
	}
	if p, ok := a.auth.CurrentUser(); ok {
		st.Username = p.Username
	}
	if exp, ok := a.vault.AccessExpiry(); ok {
		st.AccessExpiry = &exp
	}
	return st
}

func (a *App) registerHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.store.pool != nil {
			if err := PingDB(r.Context(), a.store.pool, 2*time.Second); err != nil {
				http.Error(w, "store not ready", http.StatusServiceUnavailable)
				a.log.Info("readyz.store.not_ready", "err", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", a.metrics.Handler())

	mux.HandleFunc("/debug/session", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.Status())
	})
}

// DebugHandler returns the debug listener's handler.
func (a *App) DebugHandler() http.Handler {
	mux := http.NewServeMux()
	a.registerHTTP(mux)
	return WithRequestLogging(mux, a.log)
}

// RunDebugServer serves the debug endpoints on cfg.DebugAddr until ctx is
// done. It returns nil at once when no address is configured.
func (a *App) RunDebugServer(ctx context.Context) error {
	if a.cfg.DebugAddr == "" {
		return nil
	}

	srv := &http.Server{
		Addr:              a.cfg.DebugAddr,
		Handler:           a.DebugHandler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	a.log.Info("debug.start", "addr", a.cfg.DebugAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("debug.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("debug.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("debug.shutdown.fail", "err", err)
		return err
	}
	a.log.Info("debug.stopped")
	return nil
}
