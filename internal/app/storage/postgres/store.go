// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/passcode"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/secret"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/wallet"
	"github.com/OpenCustody/wallet_layer/internal/app/storage"
	"github.com/OpenCustody/wallet_layer/internal/errors"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces using a database handle.
type Store struct {
	db *sql.DB
}

var _ storage.WalletStore = (*Store)(nil)
var _ storage.SecretStore = (*Store)(nil)
var _ storage.PasscodeStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- WalletStore ------------------------------------------------------------

func (s *Store) CreateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custody_wallets (id, name, device_passcode_id, primary_address, backup_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.ID, w.Name, w.DevicePasscodeID, w.PrimaryAddress, w.BackedUp, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return wallet.Wallet{}, err
	}
	return w, nil
}

func (s *Store) GetWallet(ctx context.Context, id string) (wallet.Wallet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, device_passcode_id, primary_address, backup_status, backup_date, first_tx_date, first_tx_hash, created_at, updated_at
		FROM custody_wallets
		WHERE id = $1
	`, id)

	w, err := scanWallet(row)
	if err == sql.ErrNoRows {
		return wallet.Wallet{}, errors.ErrWalletNotFound
	}
	if err != nil {
		return wallet.Wallet{}, err
	}
	return w, nil
}

func (s *Store) ListWallets(ctx context.Context) ([]wallet.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, device_passcode_id, primary_address, backup_status, backup_date, first_tx_date, first_tx_hash, created_at, updated_at
		FROM custody_wallets
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWallets(rows)
}

func (s *Store) ListWalletsByPasscode(ctx context.Context, devicePasscodeID string) ([]wallet.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, device_passcode_id, primary_address, backup_status, backup_date, first_tx_date, first_tx_hash, created_at, updated_at
		FROM custody_wallets
		WHERE device_passcode_id = $1
		ORDER BY created_at
	`, devicePasscodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWallets(rows)
}

func (s *Store) SetFirstTransaction(ctx context.Context, id, txHash string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE custody_wallets
		SET first_tx_date = $2, first_tx_hash = $3, updated_at = $4
		WHERE id = $1 AND first_tx_date IS NULL
	`, id, at.UTC(), txHash, time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return true, nil
	}

	// Distinguish "already recorded" from "no such wallet".
	if _, err := s.GetWallet(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ConfirmBackup(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE custody_wallets
		SET backup_status = TRUE, backup_date = $2, updated_at = $3
		WHERE id = $1 AND backup_status = FALSE
	`, id, at.UTC(), time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return true, nil
	}

	if _, err := s.GetWallet(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// --- SecretStore ------------------------------------------------------------

func (s *Store) CreateSecret(ctx context.Context, sec secret.EncryptedSecret) error {
	if sec.CreatedAt.IsZero() {
		sec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custody_secrets (wallet_id, mnemonic_envelope, private_key_envelope, created_at)
		VALUES ($1, $2, $3, $4)
	`, sec.WalletID, sec.MnemonicEnvelope, sec.PrivateKeyEnvelope, sec.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
		return errors.ErrSecretExists
	}
	return err
}

func (s *Store) GetSecret(ctx context.Context, walletID string) (secret.EncryptedSecret, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet_id, mnemonic_envelope, private_key_envelope, created_at
		FROM custody_secrets
		WHERE wallet_id = $1
	`, walletID)

	var sec secret.EncryptedSecret
	err := row.Scan(&sec.WalletID, &sec.MnemonicEnvelope, &sec.PrivateKeyEnvelope, &sec.CreatedAt)
	if err == sql.ErrNoRows {
		return secret.EncryptedSecret{}, errors.ErrSecretNotFound
	}
	if err != nil {
		return secret.EncryptedSecret{}, err
	}
	return sec, nil
}

// --- PasscodeStore ----------------------------------------------------------

func (s *Store) RotatePasscode(ctx context.Context, rec passcode.Record) (passcode.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.State = passcode.StateActive

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return passcode.Record{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE custody_device_passcodes
		SET state = $2
		WHERE device_name = $1 AND state = $3
	`, rec.DeviceName, passcode.StateSuperseded, passcode.StateActive)
	if err != nil {
		return passcode.Record{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO custody_device_passcodes (id, device_name, passcode_hash, state, biometric_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.DeviceName, rec.PasscodeHash, rec.State, rec.BiometricEnabled, rec.CreatedAt)
	if err != nil {
		return passcode.Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return passcode.Record{}, err
	}
	return rec, nil
}

func (s *Store) GetActivePasscode(ctx context.Context, deviceName string) (passcode.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_name, passcode_hash, state, biometric_enabled, created_at
		FROM custody_device_passcodes
		WHERE device_name = $1 AND state = $2
	`, deviceName, passcode.StateActive)

	var rec passcode.Record
	err := row.Scan(&rec.ID, &rec.DeviceName, &rec.PasscodeHash, &rec.State, &rec.BiometricEnabled, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return passcode.Record{}, errors.ErrInvalidPasscode
	}
	if err != nil {
		return passcode.Record{}, err
	}
	return rec, nil
}

// --- AuditStore -------------------------------------------------------------

func (s *Store) AppendAccessLog(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custody_access_log (id, wallet_id, device_passcode_id, access_type, severity, success, detail, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.WalletID, toNullString(entry.DevicePasscodeID), entry.AccessType, entry.Severity, entry.Success, entry.Detail, entry.IP, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return audit.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListAccessLog(ctx context.Context, walletID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_id, device_passcode_id, access_type, severity, success, detail, ip, user_agent, created_at
		FROM custody_access_log
		WHERE $1 = '' OR wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			entry      audit.Entry
			passcodeID sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.WalletID, &passcodeID, &entry.AccessType, &entry.Severity, &entry.Success, &entry.Detail, &entry.IP, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if passcodeID.Valid {
			entry.DevicePasscodeID = passcodeID.String
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// --- helpers ----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (wallet.Wallet, error) {
	var (
		w           wallet.Wallet
		backupDate  sql.NullTime
		firstTxDate sql.NullTime
		firstTxHash sql.NullString
	)
	if err := row.Scan(&w.ID, &w.Name, &w.DevicePasscodeID, &w.PrimaryAddress, &w.BackedUp, &backupDate, &firstTxDate, &firstTxHash, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return wallet.Wallet{}, err
	}
	if backupDate.Valid {
		w.BackupDate = backupDate.Time.UTC()
	}
	if firstTxDate.Valid {
		w.FirstTxDate = firstTxDate.Time.UTC()
	}
	if firstTxHash.Valid {
		w.FirstTxHash = firstTxHash.String
	}
	return w, nil
}

func collectWallets(rows *sql.Rows) ([]wallet.Wallet, error) {
	var out []wallet.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
