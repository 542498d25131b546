package app

import (
	"errors"
	"strings"

	"github.com/mladen081/u-m/cmd/security/seal"
)

// ValidateSecurityConfig enforces the storage policy at startup.
//
// With CHAT_REQUIRE_SEALED_STORAGE=true a durable store refuses to start
// unless CHAT_SEAL_PASSPHRASE is set and long enough. The memory store
// persists nothing and is always allowed.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireSealedStorage || strings.EqualFold(cfg.StoreDriver, StoreMemory) {
		return nil
	}

	if _, err := seal.PassphraseFromEnv(seal.MinPassphraseBytes); err != nil {
		switch {
		case errors.Is(err, seal.ErrPassphraseMissing):
			return errors.New("security policy: CHAT_REQUIRE_SEALED_STORAGE=true but CHAT_SEAL_PASSPHRASE is missing")
		case errors.Is(err, seal.ErrPassphraseTooShort):
			return errors.New("security policy: CHAT_REQUIRE_SEALED_STORAGE=true but CHAT_SEAL_PASSPHRASE is too short (min 12 bytes)")
		default:
			return err
		}
	}
	return nil
}
