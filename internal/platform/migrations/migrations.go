// Package migrations applies the custody schema. Statements are idempotent
// so Apply can run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS custody_wallets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		device_passcode_id TEXT NOT NULL,
		primary_address TEXT NOT NULL,
		backup_status BOOLEAN NOT NULL DEFAULT FALSE,
		backup_date TIMESTAMPTZ,
		first_tx_date TIMESTAMPTZ,
		first_tx_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS custody_secrets (
		wallet_id TEXT PRIMARY KEY REFERENCES custody_wallets (id),
		mnemonic_envelope TEXT NOT NULL,
		private_key_envelope TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS custody_device_passcodes (
		id TEXT PRIMARY KEY,
		device_name TEXT NOT NULL,
		passcode_hash TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('active', 'superseded')),
		biometric_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS custody_device_passcodes_active
		ON custody_device_passcodes (device_name)
		WHERE state = 'active'`,
	`CREATE TABLE IF NOT EXISTS custody_access_log (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL,
		device_passcode_id TEXT,
		access_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS custody_access_log_wallet
		ON custody_access_log (wallet_id, created_at DESC)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
