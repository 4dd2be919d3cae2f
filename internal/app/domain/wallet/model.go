// Package wallet defines the custodial wallet record and its derived backup
// state.
package wallet

import "time"

// BackupState is the derived lifecycle position of a wallet's backup flow.
type BackupState string

const (
	// StateNew means no transaction has touched the wallet yet.
	StateNew BackupState = "NEW"
	// StateAwaitingBackup means funds moved but the owner has not confirmed
	// writing down the mnemonic.
	StateAwaitingBackup BackupState = "AWAITING_BACKUP"
	// StateBackedUp is terminal for this subsystem.
	StateBackedUp BackupState = "BACKED_UP"
)

// Urgency indicates how overdue a wallet's backup is. Ordering matters:
// None < Normal < Medium < High.
type Urgency string

const (
	UrgencyNone   Urgency = "NONE"
	UrgencyNormal Urgency = "NORMAL"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// Wallet is the persistent wallet row. Creation happens outside this
// subsystem; only the backup tracker and the transaction-recording entry
// point mutate it, and nothing here deletes it.
type Wallet struct {
	ID               string
	Name             string
	DevicePasscodeID string
	PrimaryAddress   string
	BackedUp         bool
	BackupDate       time.Time
	FirstTxDate      time.Time
	FirstTxHash      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// State derives the backup lifecycle position from the stored fields.
func (w Wallet) State() BackupState {
	switch {
	case w.BackedUp:
		return StateBackedUp
	case !w.FirstTxDate.IsZero():
		return StateAwaitingBackup
	default:
		return StateNew
	}
}
