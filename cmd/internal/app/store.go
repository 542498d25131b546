package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mladen081/u-m/cmd/internal/auth/credential"
	"github.com/mladen081/u-m/cmd/security/password"
	"github.com/mladen081/u-m/cmd/security/seal"
)

// storeHandle is the opened credential backend and what it takes to close it.
type storeHandle struct {
	backend credential.Backend
	pool    *pgxpool.Pool
	sealed  bool
	close   func()
}

// openStore opens the configured backend and, when a passphrase is set,
// wraps it so every slot except the salt is sealed at rest.
func openStore(ctx context.Context, cfg Config, pw password.Config, log Logger) (*storeHandle, error) {
	h := &storeHandle{close: func() {}}

	switch strings.ToLower(cfg.StoreDriver) {
	case StoreMemory:
		log.Info("store.memory", "note", "credentials are not persisted")
		return h, nil

	case StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o700); err != nil {
			return nil, fmt.Errorf("store dir: %w", err)
		}
		b, err := credential.OpenSQLite(ctx, cfg.StorePath, cfg.Profile)
		if err != nil {
			return nil, err
		}
		h.backend = b
		h.close = func() { _ = b.Close() }
		log.Info("store.sqlite", "path", cfg.StorePath)

	case StorePostgres:
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("store postgres: %w", err)
		}
		b, err := credential.NewPostgresBackend(pool, cfg.Profile, credential.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := b.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		h.backend = b
		h.pool = pool
		h.close = pool.Close
		log.Info("store.postgres", "schema", cfg.DBSchema)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if !seal.Enabled() {
		return h, nil
	}
	passphrase, err := seal.PassphraseFromEnv(seal.MinPassphraseBytes)
	if err != nil {
		h.close()
		return nil, err
	}
	sealed, err := sealBackend(ctx, h.backend, passphrase, pw)
	if err != nil {
		h.close()
		return nil, err
	}
	h.backend = sealed
	h.sealed = true
	return h, nil
}

// sealBackend derives the storage key from passphrase and the salt kept in
// the backend, creating the salt on first use.
func sealBackend(ctx context.Context, inner credential.Backend, passphrase string, pw password.Config) (credential.Backend, error) {
	raw, err := inner.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load seal salt: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(raw[credential.SlotSealSalt])
	if err != nil || len(salt) != int(pw.Params.SaltLength) {
		salt, err = pw.NewSalt()
		if err != nil {
			return nil, err
		}
		set := map[string]string{credential.SlotSealSalt: base64.RawStdEncoding.EncodeToString(salt)}
		// Values sealed under an old salt can never open again.
		if err := inner.Apply(ctx, set, credential.Slots); err != nil {
			return nil, fmt.Errorf("store seal salt: %w", err)
		}
	}

	key, err := pw.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	s, err := seal.New(key)
	if err != nil {
		return nil, err
	}
	return credential.NewSealedBackend(inner, s, credential.SlotSealSalt), nil
}
