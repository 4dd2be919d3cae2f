// Package custody is the workflow orchestrator. It sequences the passcode
// gate, the secret vault, the backup tracker, and the access auditor so that
// every sensitive operation follows the same gate, act, audit order.
package custody

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	auditdom "github.com/OpenCustody/wallet_layer/internal/app/domain/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/wallet"
	"github.com/OpenCustody/wallet_layer/internal/app/metrics"
	"github.com/OpenCustody/wallet_layer/internal/app/services/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/services/backup"
	"github.com/OpenCustody/wallet_layer/internal/app/services/passcode"
	"github.com/OpenCustody/wallet_layer/internal/app/services/vault"
	"github.com/OpenCustody/wallet_layer/internal/app/storage"
	"github.com/OpenCustody/wallet_layer/internal/errors"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

// BackupStatus is the read-only view of a wallet's backup progress.
type BackupStatus struct {
	WalletID   string             `json:"wallet_id"`
	State      wallet.BackupState `json:"state"`
	Urgency    wallet.Urgency     `json:"urgency"`
	BackedUp   bool               `json:"backed_up"`
	BackupDate *time.Time         `json:"backup_date,omitempty"`
	FirstTx    *time.Time         `json:"first_tx_date,omitempty"`
}

// RevealedSecret carries decrypted material back to the caller. It exists
// only in memory for the duration of the request.
type RevealedSecret struct {
	WalletID   string `json:"wallet_id"`
	Mnemonic   string `json:"mnemonic"`
	PrivateKey string `json:"private_key"`
}

// Reminder is one wallet still awaiting backup, with its recomputed urgency.
type Reminder struct {
	WalletID   string         `json:"wallet_id"`
	WalletName string         `json:"wallet_name"`
	Urgency    wallet.Urgency `json:"urgency"`
	FirstTx    time.Time      `json:"first_tx_date"`
}

// OnboardParams creates a wallet together with its vault entry.
type OnboardParams struct {
	Name             string
	DevicePasscodeID string
	PrimaryAddress   string
	Mnemonic         string
	PrivateKey       string
}

// Service wires the custody collaborators together.
type Service struct {
	wallets   storage.WalletStore
	vault     *vault.Service
	passcodes *passcode.Service
	backups   *backup.Service
	auditor   *audit.Service
	now       func() time.Time
	log       *logger.Logger
}

// Option customises service construction.
type Option func(*Service)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the orchestrator.
func New(
	wallets storage.WalletStore,
	vaultSvc *vault.Service,
	passcodes *passcode.Service,
	backups *backup.Service,
	auditor *audit.Service,
	log *logger.Logger,
	opts ...Option,
) *Service {
	if log == nil {
		log = logger.NewDefault("custody")
	}
	s := &Service{
		wallets:   wallets,
		vault:     vaultSvc,
		passcodes: passcodes,
		backups:   backups,
		auditor:   auditor,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Onboard creates the wallet row and stores its encrypted secret in one
// workflow call. The secret write is attempted first so a failed envelope
// never leaves a wallet without vault material.
func (s *Service) Onboard(ctx context.Context, params OnboardParams) (wallet.Wallet, error) {
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return wallet.Wallet{}, errors.Validation("wallet name is required")
	}
	if strings.TrimSpace(params.Mnemonic) == "" {
		return wallet.Wallet{}, errors.Validation("mnemonic is required")
	}
	if strings.TrimSpace(params.PrivateKey) == "" {
		return wallet.Wallet{}, errors.Validation("private key is required")
	}

	w := wallet.Wallet{
		ID:               uuid.NewString(),
		Name:             params.Name,
		DevicePasscodeID: params.DevicePasscodeID,
		PrimaryAddress:   params.PrimaryAddress,
		CreatedAt:        s.now().UTC(),
	}
	created, err := s.wallets.CreateWallet(ctx, w)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	if err := s.vault.Store(ctx, created.ID, params.Mnemonic, params.PrivateKey); err != nil {
		return wallet.Wallet{}, err
	}

	s.log.WithField("wallet_id", created.ID).Infof("wallet onboarded")
	return created, nil
}

// CheckBackupStatus is read-only and produces no audit entry.
func (s *Service) CheckBackupStatus(ctx context.Context, walletID string) (BackupStatus, error) {
	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return BackupStatus{}, err
	}

	status := BackupStatus{
		WalletID: w.ID,
		State:    w.State(),
		Urgency:  backup.Urgency(w, s.now()),
		BackedUp: w.BackedUp,
	}
	if !w.BackupDate.IsZero() {
		d := w.BackupDate
		status.BackupDate = &d
	}
	if !w.FirstTxDate.IsZero() {
		d := w.FirstTxDate
		status.FirstTx = &d
	}
	return status, nil
}

// RevealForBackup runs the full owner reveal flow: passcode gate, vault
// decrypt, audit. A failed gate short-circuits before the vault is touched
// and is itself recorded as a failed passcode_verify.
func (s *Service) RevealForBackup(ctx context.Context, walletID, deviceName, code string, reqCtx auditdom.RequestContext) (RevealedSecret, error) {
	passcodeID, err := s.passcodes.Verify(ctx, deviceName, code)
	metrics.RecordPasscodeVerification(err == nil)
	if err != nil {
		s.record(ctx, auditdom.Entry{
			WalletID:   walletID,
			AccessType: auditdom.AccessPasscodeVerify,
			Severity:   auditdom.SeverityInfo,
			Success:    false,
			Detail:     fmt.Sprintf("device %q rejected", deviceName),
			IP:         reqCtx.IP,
			UserAgent:  reqCtx.UserAgent,
		})
		return RevealedSecret{}, err
	}

	mnemonic, err := s.vault.RevealMnemonic(ctx, walletID)
	if err != nil {
		s.auditRevealFailure(ctx, walletID, passcodeID, auditdom.AccessMnemonicReveal, reqCtx, err)
		return RevealedSecret{}, err
	}
	privateKey, err := s.vault.RevealPrivateKey(ctx, walletID)
	if err != nil {
		s.auditRevealFailure(ctx, walletID, passcodeID, auditdom.AccessPrivateKeyReveal, reqCtx, err)
		return RevealedSecret{}, err
	}

	metrics.RecordSecretReveal(string(auditdom.AccessMnemonicReveal), true)
	s.record(ctx, auditdom.Entry{
		WalletID:         walletID,
		DevicePasscodeID: passcodeID,
		AccessType:       auditdom.AccessMnemonicReveal,
		Severity:         auditdom.SeverityInfo,
		Success:          true,
		IP:               reqCtx.IP,
		UserAgent:        reqCtx.UserAgent,
	})

	return RevealedSecret{WalletID: walletID, Mnemonic: mnemonic, PrivateKey: privateKey}, nil
}

// ConfirmBackup runs the quiz and audits the outcome either way.
func (s *Service) ConfirmBackup(ctx context.Context, walletID string, words []backup.WordCheck, reqCtx auditdom.RequestContext) (backup.ConfirmResult, error) {
	res, err := s.backups.ConfirmBackup(ctx, walletID, words)
	success := err == nil
	metrics.RecordBackupConfirmation(success)

	entry := auditdom.Entry{
		WalletID:   walletID,
		AccessType: auditdom.AccessBackupConfirm,
		Severity:   auditdom.SeverityInfo,
		Success:    success,
		IP:         reqCtx.IP,
		UserAgent:  reqCtx.UserAgent,
	}
	switch {
	case err != nil && errors.Is(err, errors.ErrSecretCorrupted):
		entry.Severity = auditdom.SeveritySecurityAlert
		entry.Detail = "stored secret failed integrity check"
	case err != nil:
		entry.Detail = errors.PublicMessage(err)
	case res.AlreadyBackedUp:
		entry.Detail = "already backed up"
	}
	s.record(ctx, entry)

	return res, err
}

// AdminReveal decrypts one wallet's secret under an administrative identity.
// It always emits a security_alert entry, success or not.
func (s *Service) AdminReveal(ctx context.Context, walletID string, adminCtx auditdom.AdminContext, reqCtx auditdom.RequestContext) (RevealedSecret, error) {
	if strings.TrimSpace(adminCtx.AdminID) == "" {
		return RevealedSecret{}, errors.Unauthorized("admin identity required")
	}

	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return RevealedSecret{}, err
	}

	revealed, err := s.revealBoth(ctx, w.ID)
	success := err == nil
	metrics.RecordSecretReveal(string(auditdom.AccessAdminReveal), success)
	s.record(ctx, auditdom.Entry{
		WalletID:   w.ID,
		AccessType: auditdom.AccessAdminReveal,
		Severity:   auditdom.SeveritySecurityAlert,
		Success:    success,
		Detail:     adminDetail(adminCtx, err),
		IP:         reqCtx.IP,
		UserAgent:  reqCtx.UserAgent,
	})
	if err != nil {
		return RevealedSecret{}, err
	}
	return revealed, nil
}

// AdminMassExport decrypts every stored secret. Each revealed wallet emits
// its own security_alert entry so the log names every exposed wallet.
func (s *Service) AdminMassExport(ctx context.Context, adminCtx auditdom.AdminContext, reqCtx auditdom.RequestContext) ([]RevealedSecret, error) {
	if strings.TrimSpace(adminCtx.AdminID) == "" {
		return nil, errors.Unauthorized("admin identity required")
	}

	wallets, err := s.wallets.ListWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	out := make([]RevealedSecret, 0, len(wallets))
	for _, w := range wallets {
		revealed, err := s.revealBoth(ctx, w.ID)
		if err != nil {
			if errors.Is(err, errors.ErrSecretNotFound) {
				continue
			}
			metrics.RecordSecretReveal(string(auditdom.AccessAdminMassExport), false)
			s.record(ctx, auditdom.Entry{
				WalletID:   w.ID,
				AccessType: auditdom.AccessAdminMassExport,
				Severity:   auditdom.SeveritySecurityAlert,
				Success:    false,
				Detail:     adminDetail(adminCtx, err),
				IP:         reqCtx.IP,
				UserAgent:  reqCtx.UserAgent,
			})
			return nil, err
		}

		metrics.RecordSecretReveal(string(auditdom.AccessAdminMassExport), true)
		s.record(ctx, auditdom.Entry{
			WalletID:   w.ID,
			AccessType: auditdom.AccessAdminMassExport,
			Severity:   auditdom.SeveritySecurityAlert,
			Success:    true,
			Detail:     adminDetail(adminCtx, nil),
			IP:         reqCtx.IP,
			UserAgent:  reqCtx.UserAgent,
		})
		out = append(out, revealed)
	}
	return out, nil
}

// RecordFirstTransaction is a passthrough to the backup tracker.
func (s *Service) RecordFirstTransaction(ctx context.Context, walletID, txHash string) error {
	return s.backups.RecordFirstTransaction(ctx, walletID, txHash)
}

// ListReminders returns the wallets bound to a device passcode that still
// await backup, each with its urgency recomputed at call time.
func (s *Service) ListReminders(ctx context.Context, devicePasscodeID string) ([]Reminder, error) {
	devicePasscodeID = strings.TrimSpace(devicePasscodeID)
	if devicePasscodeID == "" {
		return nil, errors.Validation("device passcode id is required")
	}

	wallets, err := s.wallets.ListWalletsByPasscode(ctx, devicePasscodeID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	now := s.now()
	var out []Reminder
	for _, w := range wallets {
		if w.State() != wallet.StateAwaitingBackup {
			continue
		}
		out = append(out, Reminder{
			WalletID:   w.ID,
			WalletName: w.Name,
			Urgency:    backup.Urgency(w, now),
			FirstTx:    w.FirstTxDate,
		})
	}
	return out, nil
}

// ListAccessLog exposes the wallet-scoped audit trail.
func (s *Service) ListAccessLog(ctx context.Context, walletID string, limit int) ([]auditdom.Entry, error) {
	return s.auditor.List(ctx, walletID, limit)
}

func (s *Service) revealBoth(ctx context.Context, walletID string) (RevealedSecret, error) {
	mnemonic, err := s.vault.RevealMnemonic(ctx, walletID)
	if err != nil {
		return RevealedSecret{}, err
	}
	privateKey, err := s.vault.RevealPrivateKey(ctx, walletID)
	if err != nil {
		return RevealedSecret{}, err
	}
	return RevealedSecret{WalletID: walletID, Mnemonic: mnemonic, PrivateKey: privateKey}, nil
}

func (s *Service) auditRevealFailure(ctx context.Context, walletID, passcodeID string, accessType auditdom.AccessType, reqCtx auditdom.RequestContext, cause error) {
	metrics.RecordSecretReveal(string(accessType), false)

	entry := auditdom.Entry{
		WalletID:         walletID,
		DevicePasscodeID: passcodeID,
		AccessType:       accessType,
		Severity:         auditdom.SeverityInfo,
		Success:          false,
		Detail:           errors.PublicMessage(cause),
		IP:               reqCtx.IP,
		UserAgent:        reqCtx.UserAgent,
	}
	if errors.Is(cause, errors.ErrSecretCorrupted) {
		entry.Severity = auditdom.SeveritySecurityAlert
		metrics.RecordSecretCorruption()
	}
	s.record(ctx, entry)
}

func (s *Service) record(ctx context.Context, entry auditdom.Entry) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, entry)
}

func adminDetail(adminCtx auditdom.AdminContext, err error) string {
	who := adminCtx.AdminID
	if adminCtx.Role != "" {
		who = fmt.Sprintf("%s (%s)", adminCtx.AdminID, adminCtx.Role)
	}
	if err != nil {
		return fmt.Sprintf("admin %s: %s", who, errors.PublicMessage(err))
	}
	return fmt.Sprintf("admin %s", who)
}
