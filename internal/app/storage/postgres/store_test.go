package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/passcode"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/secret"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/wallet"
	"github.com/OpenCustody/wallet_layer/internal/errors"
)

func TestConfirmBackupUsesCompareAndSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE custody_wallets").
		WithArgs("w1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := New(db)
	applied, err := store.ConfirmBackup(context.Background(), "w1", time.Now())
	if err != nil {
		t.Fatalf("confirm backup: %v", err)
	}
	if !applied {
		t.Fatal("expected the transition to be applied")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConfirmBackupAlreadyBackedUpIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE custody_wallets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{
		"id", "name", "device_passcode_id", "primary_address", "backup_status",
		"backup_date", "first_tx_date", "first_tx_hash", "created_at", "updated_at",
	}).AddRow("w1", "main", "p1", "addr", true, time.Now(), time.Now(), "0xabc", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, name, device_passcode_id").WithArgs("w1").WillReturnRows(rows)

	store := New(db)
	applied, err := store.ConfirmBackup(context.Background(), "w1", time.Now())
	if err != nil {
		t.Fatalf("confirm backup: %v", err)
	}
	if applied {
		t.Fatal("expected no-op for an already backed up wallet")
	}
}

func TestConfirmBackupUnknownWallet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE custody_wallets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, name, device_passcode_id").
		WithArgs("missing").WillReturnError(sql.ErrNoRows)

	store := New(db)
	if _, err := store.ConfirmBackup(context.Background(), "missing", time.Now()); !errors.Is(err, errors.ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestSetFirstTransactionIsConditional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE custody_wallets").
		WithArgs("w1", sqlmock.AnyArg(), "0xdeadbeef", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := New(db)
	applied, err := store.SetFirstTransaction(context.Background(), "w1", "0xdeadbeef", time.Now())
	if err != nil {
		t.Fatalf("set first transaction: %v", err)
	}
	if !applied {
		t.Fatal("expected first transaction to be recorded")
	}
}

func TestRotatePasscodeFlipsOldAndInsertsNewInOneTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE custody_device_passcodes").
		WithArgs("Pixel7", string(passcode.StateSuperseded), string(passcode.StateActive)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO custody_device_passcodes").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := New(db)
	rec, err := store.RotatePasscode(context.Background(), passcode.Record{
		DeviceName:   "Pixel7",
		PasscodeHash: "$2a$10$fakehash",
	})
	if err != nil {
		t.Fatalf("rotate passcode: %v", err)
	}
	if rec.State != passcode.StateActive {
		t.Fatalf("expected new record active, got %s", rec.State)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSecretMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT wallet_id, mnemonic_envelope").
		WithArgs("w1").WillReturnError(sql.ErrNoRows)

	store := New(db)
	if _, err := store.GetSecret(context.Background(), "w1"); !errors.Is(err, errors.ErrSecretNotFound) {
		t.Fatalf("expected secret not found, got %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, wallet.Wallet{Name: "main", DevicePasscodeID: "p1", PrimaryAddress: "addr1"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	sec := secret.EncryptedSecret{WalletID: w.ID, MnemonicEnvelope: "00:11:22", PrivateKeyEnvelope: "00:11:22"}
	if err := store.CreateSecret(ctx, sec); err != nil {
		t.Fatalf("create secret: %v", err)
	}
	if err := store.CreateSecret(ctx, sec); !errors.Is(err, errors.ErrSecretExists) {
		t.Fatalf("expected duplicate secret conflict, got %v", err)
	}
}
