package password

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// NewSalt returns SaltLength random bytes.
func (c Config) NewSalt() ([]byte, error) {
	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches passphrase into a KeyLength-byte key with Argon2id.
// The same passphrase and salt always yield the same key.
func (c Config) DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	// #nosec G115 -- SaltLength is bounded to [8..64] by FromEnv.
	if len(salt) < 8 || uint32(len(salt)) != c.Params.SaltLength {
		return nil, ErrInvalidSalt
	}

	key := argon2.IDKey(
		[]byte(passphrase),
		salt,
		c.Params.Iterations,
		c.Params.MemoryKiB,
		c.Params.Parallelism,
		c.Params.KeyLength,
	)
	return key, nil
}
