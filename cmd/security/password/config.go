package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams is the Argon2id cost used to derive the storage key.
// MemoryKiB is in KiB as argon2.IDKey expects.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy mirrors the server's sign-up rules so a form can fail before the round trip.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak turns on the common, numeric-only and similarity checks.
	RejectVeryWeak bool
}

// Config groups the key-derivation cost and the password policy.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the server's sign-up policy and an interactive-grade
// Argon2id cost for deriving the storage key. Both can be overridden via env.
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

// envKnob binds one environment variable to a Config field.
type envKnob struct {
	key   string
	apply func(c *Config, raw string) error
}

func intKnob(key string, lo, hi int, set func(*Config, int)) envKnob {
	return envKnob{key: key, apply: func(c *Config, raw string) error {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("not an integer")
		}
		if n < lo || n > hi {
			return fmt.Errorf("out of range [%d..%d]", lo, hi)
		}
		set(c, n)
		return nil
	}}
}

var envKnobs = []envKnob{
	intKnob("CHAT_PASSWORD_MIN_LEN", 1, 1024, func(c *Config, n int) { c.Policy.MinLength = n }),
	intKnob("CHAT_PASSWORD_MAX_LEN", 1, 4096, func(c *Config, n int) { c.Policy.MaxLength = n }),
	{key: "CHAT_PASSWORD_REJECT_VERY_WEAK", apply: func(c *Config, raw string) error {
		b, err := parseBool(raw)
		c.Policy.RejectVeryWeak = b
		return err
	}},
	// #nosec G115 -- every uint conversion below is bounded by its range.
	intKnob("CHAT_ARGON2_MEMORY_KIB", 8*1024, 1024*1024, func(c *Config, n int) { c.Params.MemoryKiB = uint32(n) }),
	intKnob("CHAT_ARGON2_ITERATIONS", 1, 20, func(c *Config, n int) { c.Params.Iterations = uint32(n) }),
	intKnob("CHAT_ARGON2_PARALLELISM", 1, 64, func(c *Config, n int) { c.Params.Parallelism = uint8(n) }),
	intKnob("CHAT_ARGON2_SALT_LEN", 8, 64, func(c *Config, n int) { c.Params.SaltLength = uint32(n) }),
	intKnob("CHAT_ARGON2_KEY_LEN", 16, 64, func(c *Config, n int) { c.Params.KeyLength = uint32(n) }),
}

// FromEnv starts from DefaultConfig and applies any of:
//
//	CHAT_PASSWORD_MIN_LEN, CHAT_PASSWORD_MAX_LEN, CHAT_PASSWORD_REJECT_VERY_WEAK,
//	CHAT_ARGON2_MEMORY_KIB, CHAT_ARGON2_ITERATIONS, CHAT_ARGON2_PARALLELISM,
//	CHAT_ARGON2_SALT_LEN, CHAT_ARGON2_KEY_LEN.
//
// An out-of-range value is an error, not a silent default.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	for _, k := range envKnobs {
		raw, ok := os.LookupEnv(k.key)
		if !ok {
			continue
		}
		if err := k.apply(&cfg, raw); err != nil {
			return Config{}, fmt.Errorf("%s: %w", k.key, err)
		}
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf("password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}
	return cfg, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean")
	}
}
