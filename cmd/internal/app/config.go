package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	authapi "github.com/mladen081/u-m/cmd/internal/auth/api"
	"github.com/mladen081/u-m/cmd/internal/auth/session"
	"github.com/mladen081/u-m/cmd/internal/realtime"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the client runtime configuration: defaults, then the optional
// YAML file named by CHAT_CONFIG, then environment variables.
type Config struct {
	Session session.Config
	Auth    authapi.Config

	// WSURL is the realtime endpoint; derived from Session.BaseURL when empty.
	WSURL string

	LogLevel  string
	LogFormat string // auto, pretty or json

	Profile     string
	StoreDriver string
	StorePath   string
	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, persisted credentials must be sealed with CHAT_SEAL_PASSPHRASE.
	RequireSealedStorage bool

	// DebugAddr serves /healthz, /readyz and /metrics when set.
	DebugAddr string

	HistoryLimit      int
	SendLimit         int
	SendWindow        time.Duration
	ReconnectAttempts int
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Session:           session.DefaultConfig(),
		Auth:              authapi.DefaultConfig(),
		LogLevel:          "info",
		LogFormat:         "auto",
		StoreDriver:       StoreSQLite,
		StorePath:         defaultStorePath(),
		DBSchema:          "chat_client",
		DBMaxConns:        4,
		HistoryLimit:      50,
		SendLimit:         20,
		SendWindow:        10 * time.Second,
		ReconnectAttempts: realtime.DefaultBackoff().MaxRetries,
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "chatc", "credentials.db")
}

// LoadConfig builds Config from defaults, the CHAT_CONFIG file and the environment.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path, ok := lookupEnv("CHAT_CONFIG"); ok {
		fc, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		fc.apply(&cfg)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Session.BaseURL = EnvString("CHAT_API_URL", cfg.Session.BaseURL)
	cfg.Session.Timeout = EnvDuration("CHAT_HTTP_TIMEOUT", cfg.Session.Timeout)
	cfg.Session.RefreshPath = EnvString("CHAT_REFRESH_PATH", cfg.Session.RefreshPath)
	cfg.Session.UserAgent = EnvString("CHAT_USER_AGENT", cfg.Session.UserAgent)
	cfg.Auth = authapi.LoadConfigFromEnv()

	cfg.WSURL = EnvString("CHAT_WS_URL", cfg.WSURL)

	cfg.LogLevel = EnvString("CHAT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = EnvString("CHAT_LOG_FORMAT", cfg.LogFormat)

	cfg.Profile = EnvString("CHAT_PROFILE", cfg.Profile)
	cfg.StoreDriver = EnvString("CHAT_STORE", cfg.StoreDriver)
	cfg.StorePath = EnvString("CHAT_STORE_PATH", cfg.StorePath)
	cfg.DatabaseURL = EnvString("CHAT_DATABASE_URL", cfg.DatabaseURL)
	cfg.DBSchema = EnvString("CHAT_DB_SCHEMA", cfg.DBSchema)
	cfg.DBMaxConns = EnvInt32("CHAT_DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.DBMinConns = EnvInt32("CHAT_DB_MIN_CONNS", cfg.DBMinConns)

	cfg.RequireSealedStorage = EnvBool("CHAT_REQUIRE_SEALED_STORAGE", cfg.RequireSealedStorage)
	cfg.DebugAddr = EnvString("CHAT_DEBUG_ADDR", cfg.DebugAddr)

	cfg.HistoryLimit = EnvInt("CHAT_HISTORY_LIMIT", cfg.HistoryLimit)
	cfg.SendLimit = EnvInt("CHAT_SEND_LIMIT", cfg.SendLimit)
	cfg.SendWindow = EnvDuration("CHAT_SEND_WINDOW", cfg.SendWindow)
	cfg.ReconnectAttempts = EnvInt("CHAT_RECONNECT_ATTEMPTS", cfg.ReconnectAttempts)
}

// Validate checks the parts that cannot be defaulted.
func (c Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("config: api url %q: %w", c.Session.BaseURL, err)
	}

	switch strings.ToLower(c.StoreDriver) {
	case StoreSQLite:
		if strings.TrimSpace(c.StorePath) == "" {
			return fmt.Errorf("config: sqlite store needs CHAT_STORE_PATH")
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("config: postgres store needs CHAT_DATABASE_URL")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}

	switch strings.ToLower(c.LogFormat) {
	case "auto", "pretty", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// RealtimeURL returns WSURL or derives it from the API base.
func (c Config) RealtimeURL() (string, error) {
	if c.WSURL != "" {
		return c.WSURL, nil
	}
	return realtime.WSURLFromBase(c.Session.BaseURL)
}
