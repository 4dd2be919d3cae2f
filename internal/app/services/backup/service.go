// Package backup implements the per-wallet backup state machine: recording
// the first transaction, deriving backup urgency, and verifying the owner's
// write-it-down quiz before marking a wallet backed up.
package backup

import (
	"context"
	"strings"
	"time"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/wallet"
	"github.com/OpenCustody/wallet_layer/internal/app/services/vault"
	"github.com/OpenCustody/wallet_layer/internal/app/storage"
	"github.com/OpenCustody/wallet_layer/internal/errors"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

// Urgency day thresholds, measured from the first transaction.
const (
	mediumAfterDays = 3
	highAfterDays   = 7

	// MinVerificationWords is the smallest accepted quiz size.
	MinVerificationWords = 3
)

// WordCheck is one (position, word) pair of the backup quiz. Positions are
// 1-based within the mnemonic.
type WordCheck struct {
	Position int    `json:"position"`
	Word     string `json:"word"`
}

// ConfirmResult reports the outcome of a backup confirmation.
type ConfirmResult struct {
	Confirmed bool
	// AlreadyBackedUp marks the idempotent no-op path.
	AlreadyBackedUp bool
}

// Service tracks and transitions wallet backup state.
type Service struct {
	wallets storage.WalletStore
	vault   *vault.Service
	now     func() time.Time
	log     *logger.Logger
}

// Option customises service construction.
type Option func(*Service)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a backup tracker.
func New(wallets storage.WalletStore, vaultSvc *vault.Service, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("backup")
	}
	s := &Service{wallets: wallets, vault: vaultSvc, now: time.Now, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordFirstTransaction stores the wallet's first transaction date and hash.
// Idempotent: once recorded, later calls are no-ops.
func (s *Service) RecordFirstTransaction(ctx context.Context, walletID, txHash string) error {
	walletID = strings.TrimSpace(walletID)
	txHash = strings.TrimSpace(txHash)
	if walletID == "" {
		return errors.Validation("wallet id is required")
	}
	if txHash == "" {
		return errors.Validation("transaction hash is required")
	}

	applied, err := s.wallets.SetFirstTransaction(ctx, walletID, txHash, s.now())
	if err != nil {
		return err
	}
	if applied {
		s.log.Infof("first transaction recorded for wallet %s", walletID)
	}
	return nil
}

// Urgency derives how overdue the wallet's backup is at the given instant.
// Pure: never cached, always recomputed from the stored fields.
func Urgency(w wallet.Wallet, now time.Time) wallet.Urgency {
	if w.BackedUp || w.FirstTxDate.IsZero() {
		return wallet.UrgencyNone
	}
	days := int(now.Sub(w.FirstTxDate).Hours() / 24)
	switch {
	case days >= highAfterDays:
		return wallet.UrgencyHigh
	case days >= mediumAfterDays:
		return wallet.UrgencyMedium
	default:
		return wallet.UrgencyNormal
	}
}

// Urgency reports the wallet's current backup urgency using the service
// clock.
func (s *Service) Urgency(w wallet.Wallet) wallet.Urgency {
	return Urgency(w, s.now())
}

// ConfirmBackup verifies the supplied quiz words against the mnemonic
// recomputed from the vault and, on a full match, flips the wallet to backed
// up with a compare-and-set. Expected words are always recomputed server
// side; client-supplied words are never trusted as ground truth.
func (s *Service) ConfirmBackup(ctx context.Context, walletID string, words []WordCheck) (ConfirmResult, error) {
	if strings.TrimSpace(walletID) == "" {
		return ConfirmResult{}, errors.Validation("wallet id is required")
	}
	if len(words) < MinVerificationWords {
		return ConfirmResult{}, errors.Validation("at least %d verification words are required", MinVerificationWords)
	}

	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if w.BackedUp {
		// Re-confirming an already backed up wallet is a no-op.
		return ConfirmResult{Confirmed: true, AlreadyBackedUp: true}, nil
	}

	mnemonic, err := s.vault.RevealMnemonic(ctx, walletID)
	if err != nil {
		return ConfirmResult{}, err
	}
	mnemonicWords := strings.Fields(mnemonic)

	seen := make(map[int]bool, len(words))
	for _, check := range words {
		if check.Position < 1 || check.Position > len(mnemonicWords) {
			return ConfirmResult{}, errors.Validation("position %d out of range", check.Position)
		}
		if seen[check.Position] {
			return ConfirmResult{}, errors.Validation("duplicate position %d", check.Position)
		}
		seen[check.Position] = true

		// Case-sensitive, position-by-position comparison.
		if mnemonicWords[check.Position-1] != check.Word {
			return ConfirmResult{}, errors.ErrVerificationFailed
		}
	}

	transitioned, err := s.wallets.ConfirmBackup(ctx, walletID, s.now())
	if err != nil {
		return ConfirmResult{}, err
	}
	if transitioned {
		s.log.Infof("wallet %s confirmed backed up", walletID)
	}
	return ConfirmResult{Confirmed: true, AlreadyBackedUp: !transitioned}, nil
}
