package storage

import (
	"context"
	"time"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/passcode"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/secret"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/wallet"
)

// WalletStore persists wallet records. Backup-state mutations are expressed
// as conditional updates so concurrent callers cannot double-apply a
// transition.
type WalletStore interface {
	CreateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error)
	GetWallet(ctx context.Context, id string) (wallet.Wallet, error)
	ListWallets(ctx context.Context) ([]wallet.Wallet, error)
	ListWalletsByPasscode(ctx context.Context, devicePasscodeID string) ([]wallet.Wallet, error)

	// SetFirstTransaction records the first transaction only when none is
	// recorded yet. The bool reports whether this call applied the change.
	SetFirstTransaction(ctx context.Context, id, txHash string, at time.Time) (bool, error)

	// ConfirmBackup flips backup_status false->true with a compare-and-set.
	// The bool reports whether this call performed the transition.
	ConfirmBackup(ctx context.Context, id string, at time.Time) (bool, error)
}

// SecretStore persists exactly one encrypted secret per wallet, write-once.
type SecretStore interface {
	CreateSecret(ctx context.Context, sec secret.EncryptedSecret) error
	GetSecret(ctx context.Context, walletID string) (secret.EncryptedSecret, error)
}

// PasscodeStore persists device passcode credentials.
type PasscodeStore interface {
	// RotatePasscode atomically supersedes every active record for the
	// device and inserts rec as the new active credential, so a concurrent
	// Verify never observes zero or two active records.
	RotatePasscode(ctx context.Context, rec passcode.Record) (passcode.Record, error)
	GetActivePasscode(ctx context.Context, deviceName string) (passcode.Record, error)
}

// AuditStore persists access log entries append-only. There is deliberately
// no update or delete method.
type AuditStore interface {
	AppendAccessLog(ctx context.Context, entry audit.Entry) (audit.Entry, error)
	ListAccessLog(ctx context.Context, walletID string, limit int) ([]audit.Entry, error)
}
