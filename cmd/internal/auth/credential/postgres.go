package credential

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores slots in a Postgres table keyed by profile.
//
// The pgx pool is owned by the caller; this backend must NOT close it.
// Schema/table identifiers are quoted with pgx.Identifier.
type PostgresBackend struct {
	pool    *pgxpool.Pool
	schema  string
	profile string
}

// PostgresOption configures the backend.
type PostgresOption func(*PostgresBackend) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "chat_client").
func WithSchema(schema string) PostgresOption {
	return func(b *PostgresBackend) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("credential: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("credential: invalid schema identifier")
		}
		b.schema = schema
		return nil
	}
}

// NewPostgresBackend constructs a backend for profile.
func NewPostgresBackend(pool *pgxpool.Pool, profile string, opts ...PostgresOption) (*PostgresBackend, error) {
	profile, err := normalizeProfile(profile)
	if err != nil {
		return nil, err
	}
	b := &PostgresBackend{
		pool:    pool,
		schema:  "chat_client",
		profile: profile,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.pool == nil {
		return nil, fmt.Errorf("credential: nil pool")
	}
	return b, nil
}

func (b *PostgresBackend) table() string {
	return pgx.Identifier{b.schema, "credential_slots"}.Sanitize()
}

// EnsureSchema creates the schema and table if missing.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;
CREATE TABLE IF NOT EXISTS %s (
  profile    TEXT NOT NULL,
  slot       TEXT NOT NULL,
  value      TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (profile, slot)
);`, pgx.Identifier{b.schema}.Sanitize(), b.table())

	if _, err := b.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("credential: ensure schema: %w", err)
	}
	return nil
}

// Load returns every slot stored for the profile.
func (b *PostgresBackend) Load(ctx context.Context) (map[string]string, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT slot, value FROM `+b.table()+` WHERE profile = $1`, b.profile)
	if err != nil {
		return nil, fmt.Errorf("postgres load: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}
	return out, nil
}

// Apply writes set and deletes del in one transaction.
func (b *PostgresBackend) Apply(ctx context.Context, set map[string]string, del []string) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if len(del) > 0 {
			if _, err := tx.Exec(ctx,
				`DELETE FROM `+b.table()+` WHERE profile = $1 AND slot = ANY($2)`, b.profile, del); err != nil {
				return fmt.Errorf("postgres delete: %w", err)
			}
		}
		for k, v := range set {
			if _, err := tx.Exec(ctx, `
INSERT INTO `+b.table()+` (profile, slot, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (profile, slot) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				b.profile, k, v); err != nil {
				return fmt.Errorf("postgres upsert %s: %w", k, err)
			}
		}
		return nil
	})
}
