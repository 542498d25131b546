package app

import (
	"context"
	"os"
)

// Open is the bootstrap used by cmd/chatc: load config, enforce the storage
// policy, build the logger and wire the App.
// The caller owns the returned App and must Close it.
func Open(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return New(ctx, cfg, log)
}
