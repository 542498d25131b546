package seal

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// PassphraseEnvKey is the env var name for the storage passphrase.
	// #nosec G101 -- not a credential; it's an environment variable name.
	PassphraseEnvKey = "CHAT_SEAL_PASSPHRASE"

	// MinPassphraseBytes is the shortest passphrase accepted under policy.
	MinPassphraseBytes = 12

	prefix = "v1."
)

var b64 = base64.RawURLEncoding

// Sealer seals and opens slot values with one key.
type Sealer struct {
	aead cipher.AEAD
}

// New returns a Sealer for a 32-byte key.
func New(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrKeySize
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plain for slot. Output is "v1." + base64url(nonce || ciphertext).
func (s *Sealer) Seal(slot, plain string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("seal nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plain), []byte(slot))
	return prefix + b64.EncodeToString(out), nil
}

// Open reverses Seal. A value sealed for a different slot fails with ErrOpen.
func (s *Sealer) Open(slot, sealed string) (string, error) {
	if !strings.HasPrefix(sealed, prefix) {
		return "", ErrMalformed
	}
	raw, err := b64.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil {
		return "", ErrMalformed
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return "", ErrMalformed
	}
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], []byte(slot))
	if err != nil {
		return "", ErrOpen
	}
	return string(plain), nil
}

// PassphraseFromEnv returns the configured passphrase (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrPassphraseMissing.
// If too short -> ErrPassphraseTooShort.
func PassphraseFromEnv(minBytes int) (string, error) {
	raw := strings.TrimSpace(os.Getenv(PassphraseEnvKey))
	if raw == "" {
		return "", ErrPassphraseMissing
	}
	if minBytes > 0 && len(raw) < minBytes {
		return "", ErrPassphraseTooShort
	}
	return raw, nil
}

// Enabled reports whether the passphrase env var is present (non-empty after trim).
// Note: This does not enforce minimum length. Use PassphraseFromEnv for policy checks.
func Enabled() bool {
	return strings.TrimSpace(os.Getenv(PassphraseEnvKey)) != ""
}
