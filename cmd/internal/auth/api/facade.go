package authapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mladen081/u-m/cmd/identity"
	"github.com/mladen081/u-m/cmd/internal/auth/credential"
	"github.com/mladen081/u-m/cmd/internal/auth/session"
	"github.com/mladen081/u-m/cmd/security/password"
)

// Requester sends one API call. *session.Client implements it.
type Requester interface {
	Do(ctx context.Context, req *session.Request) (*session.Response, error)
}

// Store is the slice of the credential vault the facade needs.
type Store interface {
	Read() (credential.Pair, bool)
	RefreshToken() (string, bool)
	ReadPrincipal() (identity.Principal, bool)
	Write(pair credential.Pair, principal *identity.Principal) error
	Clear() error
}

// Facade composes the session client and credential store into account operations.
type Facade struct {
	cfg    Config
	http   Requester
	store  Store
	log    *slog.Logger
	policy password.Config
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the logger for audit events.
func WithLogger(log *slog.Logger) Option {
	return func(f *Facade) {
		if log != nil {
			f.log = log
		}
	}
}

// WithPasswordPolicy sets the policy used for local registration checks.
func WithPasswordPolicy(p password.Config) Option {
	return func(f *Facade) { f.policy = p }
}

// New returns a Facade. Zero-valued config fields take the defaults.
func New(cfg Config, requester Requester, store Store, opts ...Option) (*Facade, error) {
	if requester == nil {
		return nil, fmt.Errorf("authapi: requester is required")
	}
	if store == nil {
		return nil, fmt.Errorf("authapi: store is required")
	}
	f := &Facade{
		cfg:    cfg.withDefaults(),
		http:   requester,
		store:  store,
		log:    slog.Default(),
		policy: password.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.With("component", "auth")
	return f, nil
}

// Login exchanges credentials for a token pair and stores it.
func (f *Facade) Login(ctx context.Context, c Credentials) (identity.Principal, error) {
	c.Username = identity.NormalizeUsername(c.Username)
	if f.cfg.ValidateLocally {
		if err := identity.ValidateLogin(c.Username, c.Password); err != nil {
			return identity.Principal{}, validationError(err)
		}
	}

	p, err := f.authenticate(ctx, f.cfg.LoginPath, c, c.Username)
	if err != nil {
		f.auditLoginFailed(ctx, c.Username, err)
		return identity.Principal{}, err
	}
	f.auditLoginSuccess(ctx, p.ID, p.Username)
	return p, nil
}

// Register creates an account and signs it in.
func (f *Facade) Register(ctx context.Context, r Registration) (identity.Principal, error) {
	r.Username = identity.NormalizeUsername(r.Username)
	r.Email = identity.NormalizeEmail(r.Email)
	if f.cfg.ValidateLocally {
		if err := identity.ValidateRegistration(r.Username, r.Email, r.Password, f.policy); err != nil {
			return identity.Principal{}, validationError(err)
		}
	}

	p, err := f.authenticate(ctx, f.cfg.RegisterPath, r, r.Username)
	if err != nil {
		return identity.Principal{}, err
	}
	f.auditRegistered(ctx, p.ID, p.Username)
	return p, nil
}

// Logout tells the server when it can and always clears local credentials.
// Only a failure to clear the local store is returned.
func (f *Facade) Logout(ctx context.Context) error {
	var userID int64
	if p, ok := f.store.ReadPrincipal(); ok {
		userID = p.ID
	}

	notified := false
	if refresh, ok := f.store.RefreshToken(); ok {
		notified = f.notifyLogout(ctx, refresh)
	}

	if err := f.store.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	f.auditLogout(ctx, userID, notified)
	return nil
}

func (f *Facade) notifyLogout(ctx context.Context, refresh string) bool {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.LogoutTimeout)
	defer cancel()

	resp, err := f.http.Do(ctx, &session.Request{
		Method:    http.MethodPost,
		Path:      f.cfg.LogoutPath,
		Body:      logoutRequest{Refresh: refresh},
		NoRefresh: true,
	})
	if err != nil {
		f.log.Warn("auth.logout.server_unreachable", "err", err)
		return false
	}
	if !resp.OK() {
		f.log.Warn("auth.logout.server_rejected", "status", resp.StatusCode, "request_id", resp.RequestID)
		return false
	}
	return true
}

// CurrentUser returns the cached principal. It is advisory, for display only.
func (f *Facade) CurrentUser() (identity.Principal, bool) {
	return f.store.ReadPrincipal()
}

// IsAuthenticated reports whether a complete credential pair is stored.
func (f *Facade) IsAuthenticated() bool {
	_, ok := f.store.Read()
	return ok
}

// IsAdmin reports the cached admin flag. The server still authorizes every call.
func (f *Facade) IsAdmin() bool {
	p, ok := f.store.ReadPrincipal()
	return ok && p.IsAdmin
}

// RequestPasswordReset asks the server to mail a reset link and returns its message.
func (f *Facade) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = identity.NormalizeEmail(email)
	if f.cfg.ValidateLocally && email == "" {
		fe := identity.FieldErrors{}
		fe.Add("email", "Email is required")
		return "", validationError(fe)
	}

	msg, err := f.post(ctx, f.cfg.PasswordResetPath, passwordResetRequest{Email: email})
	if err != nil {
		return "", err
	}
	f.auditPasswordReset(ctx, "auth.password_reset.requested")
	return msg, nil
}

// ConfirmPasswordReset sets a new password using the uid and token from the reset link.
func (f *Facade) ConfirmPasswordReset(ctx context.Context, c PasswordResetConfirm) (string, error) {
	c.UID = strings.TrimSpace(c.UID)
	c.Token = strings.TrimSpace(c.Token)
	if f.cfg.ValidateLocally {
		fe := identity.FieldErrors{}
		if c.UID == "" {
			fe.Add("uid", "Reset link is incomplete")
		}
		if c.Token == "" {
			fe.Add("token", "Reset link is incomplete")
		}
		if c.Password == "" {
			fe.Add("password", "Password is required")
		} else if err := f.policy.Validate(c.Password); err != nil {
			fe.Add("password", err.Error())
		}
		if err := fe.Err(); err != nil {
			return "", validationError(err)
		}
	}

	msg, err := f.post(ctx, f.cfg.PasswordResetConfirmPath, c)
	if err != nil {
		return "", err
	}
	f.auditPasswordReset(ctx, "auth.password_reset.confirmed")
	return msg, nil
}

func (f *Facade) authenticate(ctx context.Context, path string, body any, username string) (identity.Principal, error) {
	resp, err := f.http.Do(ctx, &session.Request{
		Method:    http.MethodPost,
		Path:      path,
		Body:      body,
		NoRefresh: true,
	})
	if err != nil {
		return identity.Principal{}, err
	}
	if err := resp.Err(); err != nil {
		return identity.Principal{}, err
	}

	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		return identity.Principal{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	pair := credential.Pair{Access: out.Access, Refresh: out.Refresh}
	if !pair.Complete() {
		return identity.Principal{}, ErrMalformedResponse
	}

	p := identity.Principal{Username: username}
	if out.User != nil {
		p = out.User.principal()
	}
	if err := f.store.Write(pair, &p); err != nil {
		// The in-memory session stands; only persistence failed.
		f.log.Warn("auth.credentials.persist_failed", "err", err)
	}
	return p, nil
}

func (f *Facade) post(ctx context.Context, path string, body any) (string, error) {
	resp, err := f.http.Do(ctx, &session.Request{
		Method:    http.MethodPost,
		Path:      path,
		Body:      body,
		NoRefresh: true,
	})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	return resp.Message(), nil
}
