package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the auth endpoint paths and client-side behavior.
type Config struct {
	LoginPath                string
	RegisterPath             string
	LogoutPath               string
	PasswordResetPath        string
	PasswordResetConfirmPath string

	// LogoutTimeout bounds the best-effort server logout call.
	LogoutTimeout time.Duration

	// ValidateLocally rejects obviously invalid forms before any request.
	ValidateLocally bool
}

// DefaultConfig returns the paths the chat server exposes.
func DefaultConfig() Config {
	return Config{
		LoginPath:                "/auth/login/",
		RegisterPath:             "/auth/register/",
		LogoutPath:               "/auth/logout/",
		PasswordResetPath:        "/auth/password-reset/",
		PasswordResetConfirmPath: "/auth/password-reset/confirm/",
		LogoutTimeout:            5 * time.Second,
		ValidateLocally:          true,
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		LoginPath:                envPath("CHAT_AUTH_LOGIN_PATH", def.LoginPath),
		RegisterPath:             envPath("CHAT_AUTH_REGISTER_PATH", def.RegisterPath),
		LogoutPath:               envPath("CHAT_AUTH_LOGOUT_PATH", def.LogoutPath),
		PasswordResetPath:        envPath("CHAT_AUTH_PASSWORD_RESET_PATH", def.PasswordResetPath),
		PasswordResetConfirmPath: envPath("CHAT_AUTH_PASSWORD_RESET_CONFIRM_PATH", def.PasswordResetConfirmPath),
		LogoutTimeout:            envDuration("CHAT_AUTH_LOGOUT_TIMEOUT", def.LogoutTimeout),
		ValidateLocally:          envBool("CHAT_AUTH_VALIDATE_LOCALLY", def.ValidateLocally),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LoginPath == "" {
		c.LoginPath = def.LoginPath
	}
	if c.RegisterPath == "" {
		c.RegisterPath = def.RegisterPath
	}
	if c.LogoutPath == "" {
		c.LogoutPath = def.LogoutPath
	}
	if c.PasswordResetPath == "" {
		c.PasswordResetPath = def.PasswordResetPath
	}
	if c.PasswordResetConfirmPath == "" {
		c.PasswordResetConfirmPath = def.PasswordResetConfirmPath
	}
	if c.LogoutTimeout <= 0 {
		c.LogoutTimeout = def.LogoutTimeout
	}
	return c
}

func envPath(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
