package db

import (
	"context"
	"fmt"
)

// schema is applied in order inside one transaction. Every statement is
// idempotent so Migrate can run on each start.
var schema = []struct {
	name string
	stmt string
}{
	{"pgcrypto", `CREATE EXTENSION IF NOT EXISTS "pgcrypto"`},
	{"users", `
CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    email text NOT NULL,
    email_verified boolean NOT NULL DEFAULT false,
    full_name text NOT NULL DEFAULT '',
    nickname text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
)`},
	{"users_email", `CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_unique ON users (LOWER(email))`},
	{"identities", `
CREATE TABLE IF NOT EXISTS identities (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    provider text NOT NULL,
    provider_user_id text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT identities_provider_unique UNIQUE (provider, provider_user_id)
)`},
	{"credentials", `
CREATE TABLE IF NOT EXISTS credentials (
    user_id uuid PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    password_hash text NOT NULL,
    hash_version text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW()
)`},
	{"profiles", `
CREATE TABLE IF NOT EXISTS profiles (
    id uuid PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    email text NOT NULL,
    name text NOT NULL DEFAULT '',
    credits integer NOT NULL CHECK (credits >= 0),
    tier text NOT NULL DEFAULT 'free' CHECK (tier IN ('free', 'paid')),
    created_at timestamptz NOT NULL DEFAULT NOW()
)`},
}

// Migrate applies the schema.
func Migrate(ctx context.Context, d *DB) error {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range schema {
		if _, err := tx.ExecContext(ctx, s.stmt); err != nil {
			return fmt.Errorf("db: migrate %s: %w", s.name, err)
		}
	}

	return tx.Commit()
}
