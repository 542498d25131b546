package credential

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mladen081/u-m/cmd/identity"
)

// Pair is the credential pair issued by the server.
type Pair struct {
	Access  string
	Refresh string
}

// Complete reports whether both tokens are present.
func (p Pair) Complete() bool { return p.Access != "" && p.Refresh != "" }

// Vault is the credential store.
type Vault struct {
	mu      sync.RWMutex
	slots   map[string]string
	backend Backend
	log     *slog.Logger
	timeout time.Duration
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the logger used for persistence failures.
func WithLogger(log *slog.Logger) Option {
	return func(v *Vault) {
		if log != nil {
			v.log = log
		}
	}
}

// WithTimeout bounds each backend call.
func WithTimeout(d time.Duration) Option {
	return func(v *Vault) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewVault returns a Vault that lives only in memory.
func NewVault(opts ...Option) *Vault {
	v := &Vault{
		slots:   map[string]string{},
		log:     slog.Default(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.With("component", "credential")
	return v
}

// Open returns a Vault primed from backend.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Vault, error) {
	v := NewVault(opts...)
	if backend == nil {
		return v, nil
	}

	lctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	loaded, err := backend.Load(lctx)
	if err != nil {
		return nil, fmt.Errorf("credential: load: %w", err)
	}
	for _, k := range Slots {
		if val, ok := loaded[k]; ok && val != "" {
			v.slots[k] = val
		}
	}
	v.backend = backend
	return v, nil
}

// Read returns the pair when both tokens are present.
func (v *Vault) Read() (Pair, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	p := Pair{Access: v.slots[SlotAccess], Refresh: v.slots[SlotRefresh]}
	if !p.Complete() {
		return Pair{}, false
	}
	return p, true
}

// AccessToken returns the access token alone. Requests attach it even when the refresh slot is gone.
func (v *Vault) AccessToken() (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	t := v.slots[SlotAccess]
	return t, t != ""
}

// RefreshToken returns the refresh token alone.
func (v *Vault) RefreshToken() (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	t := v.slots[SlotRefresh]
	return t, t != ""
}

// ReadPrincipal returns the cached principal. Undecodable data counts as absent.
func (v *Vault) ReadPrincipal() (identity.Principal, bool) {
	v.mu.RLock()
	raw := v.slots[SlotPrincipal]
	v.mu.RUnlock()

	p, err := identity.DecodePrincipal(raw)
	if err != nil {
		return identity.Principal{}, false
	}
	return p, true
}

// Write replaces the pair. A nil principal keeps the cached one.
func (v *Vault) Write(pair Pair, principal *identity.Principal) error {
	if !pair.Complete() {
		return ErrIncompletePair
	}

	set := map[string]string{
		SlotAccess:  pair.Access,
		SlotRefresh: pair.Refresh,
	}
	if principal != nil {
		raw, err := identity.EncodePrincipal(*principal)
		if err != nil {
			return err
		}
		set[SlotPrincipal] = raw
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for k, val := range set {
		v.slots[k] = val
	}
	return v.persistLocked("write", set, nil)
}

// UpdateAccess replaces the access token only.
func (v *Vault) UpdateAccess(token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.slots[SlotAccess] = token
	return v.persistLocked("update_access", map[string]string{SlotAccess: token}, nil)
}

// Clear removes all three slots. It is idempotent, and the in-memory clear stands
// even when the backend delete fails.
func (v *Vault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	clear(v.slots)
	return v.persistLocked("clear", nil, Slots)
}

// AccessExpiry reports the exp claim of the current access token, if it has one.
func (v *Vault) AccessExpiry() (time.Time, bool) {
	t, ok := v.AccessToken()
	if !ok {
		return time.Time{}, false
	}
	return AccessExpiry(t)
}

func (v *Vault) persistLocked(op string, set map[string]string, del []string) error {
	if v.backend == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	if err := v.backend.Apply(ctx, set, del); err != nil {
		v.log.Error("credential.persist.fail", "op", op, "err", err)
		return fmt.Errorf("credential: %s: %w", op, err)
	}
	return nil
}
