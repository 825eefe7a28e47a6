package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the application schema. Idempotent; run at startup before
// serving. River manages its own tables separately.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			dob TEXT NOT NULL,
			gender TEXT NOT NULL DEFAULT '',
			mobile TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			reported BOOLEAN NOT NULL DEFAULT FALSE,
			failed_attempts INT NOT NULL DEFAULT 0,
			lock_until TIMESTAMPTZ,
			otp_code TEXT,
			otp_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK ((otp_code IS NULL) = (otp_expires_at IS NULL))
		)`,
		// Deleting an account leaves task references dangling on purpose;
		// no foreign keys to accounts here.
		`CREATE TABLE IF NOT EXISTS tasks (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			reward TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_by UUID NOT NULL,
			assigned_to UUID,
			active_for_user BOOLEAN NOT NULL DEFAULT FALSE,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS revoked_tokens (
			jti UUID PRIMARY KEY,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS tasks_assigned_to_idx ON tasks (assigned_to)`,
		`CREATE INDEX IF NOT EXISTS tasks_status_idx ON tasks (status)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
