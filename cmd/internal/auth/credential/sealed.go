package credential

import (
	"context"
	"fmt"
	"maps"
)

// Sealer encrypts slot values. *seal.Sealer satisfies it.
type Sealer interface {
	Seal(slot, plain string) (string, error)
	Open(slot, sealed string) (string, error)
}

// SealedBackend encrypts values on the way into inner and decrypts them on the way out.
// Keys listed in passthrough are stored as-is.
type SealedBackend struct {
	inner       Backend
	sealer      Sealer
	passthrough map[string]bool
}

// NewSealedBackend wraps inner.
func NewSealedBackend(inner Backend, sealer Sealer, passthrough ...string) *SealedBackend {
	pt := make(map[string]bool, len(passthrough))
	for _, k := range passthrough {
		pt[k] = true
	}
	return &SealedBackend{inner: inner, sealer: sealer, passthrough: pt}
}

// Load opens every sealed slot. A slot that fails to open is dropped, so a
// changed passphrase reads as "signed out" rather than as an error.
func (b *SealedBackend) Load(ctx context.Context) (map[string]string, error) {
	raw, err := b.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if b.passthrough[k] {
			out[k] = v
			continue
		}
		plain, err := b.sealer.Open(k, v)
		if err != nil {
			continue
		}
		out[k] = plain
	}
	return out, nil
}

// Apply seals set and forwards it.
func (b *SealedBackend) Apply(ctx context.Context, set map[string]string, del []string) error {
	sealed := maps.Clone(set)
	for k, v := range set {
		if b.passthrough[k] {
			continue
		}
		s, err := b.sealer.Seal(k, v)
		if err != nil {
			return fmt.Errorf("seal %s: %w", k, err)
		}
		sealed[k] = s
	}
	return b.inner.Apply(ctx, sealed, del)
}
