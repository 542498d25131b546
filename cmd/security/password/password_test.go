package password

import (
	"bytes"
	"testing"
)

// cheapConfig keeps Argon2 fast in tests.
func cheapConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestDeriveKey_Deterministic(t *testing.T) {
	cfg := cheapConfig()

	salt, err := cfg.NewSalt()
	if err != nil {
		t.Fatalf("NewSalt error: %v", err)
	}

	k1, err := cfg.DeriveKey("correct horse battery staple", salt)
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}
	k2, err := cfg.DeriveKey("correct horse battery staple", salt)
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("expected identical keys")
	}
	if len(k1) != int(cfg.Params.KeyLength) {
		t.Fatalf("key length=%d want %d", len(k1), cfg.Params.KeyLength)
	}

	k3, err := cfg.DeriveKey("another passphrase", salt)
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Fatalf("expected different keys for different passphrases")
	}
}

func TestDeriveKey_RejectsBadInput(t *testing.T) {
	cfg := cheapConfig()

	if _, err := cfg.DeriveKey("", make([]byte, cfg.Params.SaltLength)); err != ErrEmptyPassphrase {
		t.Fatalf("expected ErrEmptyPassphrase, got %v", err)
	}
	if _, err := cfg.DeriveKey("pw", []byte("short")); err != ErrInvalidSalt {
		t.Fatalf("expected ErrInvalidSalt, got %v", err)
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestValidate_DefaultMatchesServerMinimum(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate("1234567"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("12345678"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	if err := cfg.Validate("password"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("11111111"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestPolicy_RejectsAllDigitsAtAnyLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true

	if err := cfg.Validate("4815162342108"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("zzzzzzzzzz"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestPolicy_ValidateForAccountAttributes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true

	if err := cfg.ValidateFor("alice-rocks-99", "alice", "alice@example.com"); err != ErrSimilarToAccount {
		t.Fatalf("expected ErrSimilarToAccount, got %v", err)
	}
	if err := cfg.ValidateFor("Bob.Smith.2026", "carol", "bob.smith@example.com"); err != ErrSimilarToAccount {
		t.Fatalf("expected ErrSimilarToAccount via email local part, got %v", err)
	}
	if err := cfg.ValidateFor("tangerine-orbit-7", "al", "al@x.io"); err != nil {
		t.Fatalf("short attributes are ignored, got %v", err)
	}

	cfg.Policy.RejectVeryWeak = false
	if err := cfg.ValidateFor("alice-rocks-99", "alice"); err != nil {
		t.Fatalf("similarity is only checked with RejectVeryWeak, got %v", err)
	}
}
