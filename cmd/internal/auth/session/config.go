package session

import (
	"net/url"
	"os"
	"strings"
	"time"
)

// Config defines runtime configuration for the request client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL string

	// Timeout bounds a single HTTP exchange (a replay gets its own budget).
	Timeout time.Duration

	// RefreshPath is the refresh endpoint relative to BaseURL.
	RefreshPath string

	// UserAgent is sent on every request when non-empty.
	UserAgent string
}

// DefaultConfig returns the configuration used by the reference web client.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:8000/api",
		Timeout:     10 * time.Second,
		RefreshPath: "/auth/token/refresh/",
		UserAgent:   "chatc",
	}
}

// LoadConfigFromEnv loads client configuration from environment variables.
//
// Optional:
//   - CHAT_API_URL
//   - CHAT_HTTP_TIMEOUT (Go duration)
//   - CHAT_REFRESH_PATH
//   - CHAT_USER_AGENT
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("CHAT_API_URL")); v != "" {
		cfg.BaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("CHAT_HTTP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.Timeout = d
	}

	if v := strings.TrimSpace(os.Getenv("CHAT_REFRESH_PATH")); v != "" {
		cfg.RefreshPath = v
	}

	if v, ok := os.LookupEnv("CHAT_USER_AGENT"); ok {
		cfg.UserAgent = strings.TrimSpace(v)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that BaseURL is an absolute http(s) URL.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrConfig
	}
	if c.Timeout <= 0 || strings.TrimSpace(c.RefreshPath) == "" {
		return ErrConfig
	}
	return nil
}
