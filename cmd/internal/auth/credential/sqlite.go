package credential

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores slots in a local SQLite file.
type SQLiteBackend struct {
	db      *sql.DB
	profile string
}

// OpenSQLite opens (and creates) the database at path. Parent directories are
// created with owner-only permissions.
func OpenSQLite(ctx context.Context, path, profile string) (*SQLiteBackend, error) {
	profile, err := normalizeProfile(profile)
	if err != nil {
		return nil, err
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating credential directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening credential database: %w", err)
	}
	// One connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS credential_slots (
			profile    TEXT NOT NULL,
			slot       TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (profile, slot)
		);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating credential schema: %w", err)
	}

	return &SQLiteBackend{db: db, profile: profile}, nil
}

// Load returns every slot stored for the profile.
func (b *SQLiteBackend) Load(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT slot, value FROM credential_slots WHERE profile = ?`, b.profile)
	if err != nil {
		return nil, fmt.Errorf("sqlite load: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}
	return out, nil
}

// Apply writes set and deletes del in one transaction.
func (b *SQLiteBackend) Apply(ctx context.Context, set map[string]string, del []string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range del {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM credential_slots WHERE profile = ? AND slot = ?`, b.profile, k); err != nil {
			return fmt.Errorf("sqlite delete %s: %w", k, err)
		}
	}

	now := time.Now().UTC()
	for k, v := range set {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO credential_slots (profile, slot, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (profile, slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			b.profile, k, v, now); err != nil {
			return fmt.Errorf("sqlite upsert %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
