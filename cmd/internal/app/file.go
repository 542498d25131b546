package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of the config file. Zero values leave the
// default in place.
type fileConfig struct {
	APIURL      string        `yaml:"api_url"`
	WSURL       string        `yaml:"ws_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	UserAgent   string        `yaml:"user_agent"`
	DebugAddr   string        `yaml:"debug_addr"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Store struct {
		Driver        string `yaml:"driver"`
		Path          string `yaml:"path"`
		Profile       string `yaml:"profile"`
		DatabaseURL   string `yaml:"database_url"`
		Schema        string `yaml:"schema"`
		MaxConns      int32  `yaml:"max_conns"`
		RequireSealed bool   `yaml:"require_sealed"`
	} `yaml:"store"`

	Chat struct {
		HistoryLimit int           `yaml:"history_limit"`
		SendLimit    int           `yaml:"send_limit"`
		SendWindow   time.Duration `yaml:"send_window"`
	} `yaml:"chat"`

	Realtime struct {
		ReconnectAttempts int `yaml:"reconnect_attempts"`
	} `yaml:"realtime"`
}

func loadFile(path string) (fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("config file: %w", err)
	}
	return parseFile(b)
}

func parseFile(b []byte) (fileConfig, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, fmt.Errorf("config file: %w", err)
	}
	return fc, nil
}

func (fc fileConfig) apply(cfg *Config) {
	setString(&cfg.Session.BaseURL, fc.APIURL)
	setString(&cfg.WSURL, fc.WSURL)
	setString(&cfg.Session.UserAgent, fc.UserAgent)
	setString(&cfg.DebugAddr, fc.DebugAddr)
	if fc.HTTPTimeout > 0 {
		cfg.Session.Timeout = fc.HTTPTimeout
	}

	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)

	setString(&cfg.StoreDriver, fc.Store.Driver)
	setString(&cfg.StorePath, fc.Store.Path)
	setString(&cfg.Profile, fc.Store.Profile)
	setString(&cfg.DatabaseURL, fc.Store.DatabaseURL)
	setString(&cfg.DBSchema, fc.Store.Schema)
	if fc.Store.MaxConns > 0 {
		cfg.DBMaxConns = fc.Store.MaxConns
	}
	cfg.RequireSealedStorage = cfg.RequireSealedStorage || fc.Store.RequireSealed

	if fc.Chat.HistoryLimit > 0 {
		cfg.HistoryLimit = fc.Chat.HistoryLimit
	}
	if fc.Chat.SendLimit > 0 {
		cfg.SendLimit = fc.Chat.SendLimit
	}
	if fc.Chat.SendWindow > 0 {
		cfg.SendWindow = fc.Chat.SendWindow
	}
	if fc.Realtime.ReconnectAttempts > 0 {
		cfg.ReconnectAttempts = fc.Realtime.ReconnectAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
