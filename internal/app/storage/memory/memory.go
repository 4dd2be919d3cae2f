// Package memory provides an in-memory implementation of the storage
// interfaces. It backs tests and any wiring where a database is not
// configured, mirroring the concurrency contracts of the postgres store
// under a single mutex.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/passcode"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/secret"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/wallet"
	"github.com/OpenCustody/wallet_layer/internal/app/storage"
	"github.com/OpenCustody/wallet_layer/internal/errors"
)

// Store keeps every entity in process memory.
type Store struct {
	mu        sync.Mutex
	wallets   map[string]wallet.Wallet
	secrets   map[string]secret.EncryptedSecret
	passcodes []passcode.Record
	auditLog  []audit.Entry
}

var _ storage.WalletStore = (*Store)(nil)
var _ storage.SecretStore = (*Store)(nil)
var _ storage.PasscodeStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		wallets: make(map[string]wallet.Wallet),
		secrets: make(map[string]secret.EncryptedSecret),
	}
}

// --- WalletStore ------------------------------------------------------------

func (s *Store) CreateWallet(_ context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if _, exists := s.wallets[w.ID]; exists {
		return wallet.Wallet{}, errors.Validation("wallet %s already exists", w.ID)
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	s.wallets[w.ID] = w
	return w, nil
}

func (s *Store) GetWallet(_ context.Context, id string) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[id]
	if !ok {
		return wallet.Wallet{}, errors.ErrWalletNotFound
	}
	return w, nil
}

func (s *Store) ListWallets(_ context.Context) ([]wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]wallet.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListWalletsByPasscode(_ context.Context, devicePasscodeID string) ([]wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []wallet.Wallet
	for _, w := range s.wallets {
		if w.DevicePasscodeID == devicePasscodeID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetFirstTransaction(_ context.Context, id, txHash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[id]
	if !ok {
		return false, errors.ErrWalletNotFound
	}
	if !w.FirstTxDate.IsZero() {
		return false, nil
	}
	w.FirstTxDate = at.UTC()
	w.FirstTxHash = txHash
	w.UpdatedAt = time.Now().UTC()
	s.wallets[id] = w
	return true, nil
}

func (s *Store) ConfirmBackup(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[id]
	if !ok {
		return false, errors.ErrWalletNotFound
	}
	if w.BackedUp {
		return false, nil
	}
	w.BackedUp = true
	w.BackupDate = at.UTC()
	w.UpdatedAt = time.Now().UTC()
	s.wallets[id] = w
	return true, nil
}

// --- SecretStore ------------------------------------------------------------

func (s *Store) CreateSecret(_ context.Context, sec secret.EncryptedSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.secrets[sec.WalletID]; exists {
		return errors.ErrSecretExists
	}
	if sec.CreatedAt.IsZero() {
		sec.CreatedAt = time.Now().UTC()
	}
	s.secrets[sec.WalletID] = sec
	return nil
}

func (s *Store) GetSecret(_ context.Context, walletID string) (secret.EncryptedSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.secrets[walletID]
	if !ok {
		return secret.EncryptedSecret{}, errors.ErrSecretNotFound
	}
	return sec, nil
}

// CorruptSecret flips one hex character in a stored mnemonic envelope. Test
// hook for exercising integrity failures end to end.
func (s *Store) CorruptSecret(walletID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.secrets[walletID]
	if !ok {
		return
	}
	raw := []byte(sec.MnemonicEnvelope)
	idx := strings.LastIndex(sec.MnemonicEnvelope, ":") + 1
	if raw[idx] == '0' {
		raw[idx] = '1'
	} else {
		raw[idx] = '0'
	}
	sec.MnemonicEnvelope = string(raw)
	s.secrets[walletID] = sec
}

// --- PasscodeStore ----------------------------------------------------------

func (s *Store) RotatePasscode(_ context.Context, rec passcode.Record) (passcode.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.State = passcode.StateActive

	for i := range s.passcodes {
		if s.passcodes[i].DeviceName == rec.DeviceName && s.passcodes[i].State == passcode.StateActive {
			s.passcodes[i].State = passcode.StateSuperseded
		}
	}
	s.passcodes = append(s.passcodes, rec)
	return rec, nil
}

func (s *Store) GetActivePasscode(_ context.Context, deviceName string) (passcode.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.passcodes) - 1; i >= 0; i-- {
		if s.passcodes[i].DeviceName == deviceName && s.passcodes[i].State == passcode.StateActive {
			return s.passcodes[i], nil
		}
	}
	return passcode.Record{}, errors.ErrInvalidPasscode
}

// ActivePasscodeCount reports how many active records exist for a device.
// Test hook for the rotation invariant.
func (s *Store) ActivePasscodeCount(deviceName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.passcodes {
		if rec.DeviceName == deviceName && rec.State == passcode.StateActive {
			count++
		}
	}
	return count
}

// --- AuditStore -------------------------------------------------------------

func (s *Store) AppendAccessLog(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLog = append(s.auditLog, entry)
	return entry, nil
}

func (s *Store) ListAccessLog(_ context.Context, walletID string, limit int) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []audit.Entry
	for i := len(s.auditLog) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if walletID == "" || s.auditLog[i].WalletID == walletID {
			out = append(out, s.auditLog[i])
		}
	}
	return out, nil
}
