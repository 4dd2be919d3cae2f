// Package vault implements the secret vault: sealing wallet credentials at
// rest and revealing them on demand. Decrypted plaintext never outlives the
// call that requested it; nothing here caches or logs secret material.
package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/secret"
	"github.com/OpenCustody/wallet_layer/internal/app/storage"
	"github.com/OpenCustody/wallet_layer/internal/envelope"
	"github.com/OpenCustody/wallet_layer/internal/errors"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

// Service seals and opens wallet secrets against the secret store.
type Service struct {
	store        storage.SecretStore
	masterSecret []byte
	log          *logger.Logger
}

// New constructs a vault service. The master secret comes from process
// configuration and is never persisted.
func New(store storage.SecretStore, masterSecret []byte, log *logger.Logger) (*Service, error) {
	if len(masterSecret) < envelope.MinMasterSecretLen {
		return nil, errors.Validation("master secret must be at least %d bytes", envelope.MinMasterSecretLen)
	}
	if log == nil {
		log = logger.NewDefault("vault")
	}
	return &Service{store: store, masterSecret: masterSecret, log: log}, nil
}

// Store seals the mnemonic and private key independently and persists them
// once. A second call for the same wallet is a conflict.
func (s *Service) Store(ctx context.Context, walletID, mnemonic, privateKey string) error {
	walletID = strings.TrimSpace(walletID)
	if walletID == "" {
		return errors.Validation("wallet id is required")
	}
	if mnemonic == "" {
		return errors.Validation("mnemonic is required")
	}
	if privateKey == "" {
		return errors.Validation("private key is required")
	}

	mnemonicEnv, err := envelope.Seal([]byte(mnemonic), s.masterSecret)
	if err != nil {
		return fmt.Errorf("seal mnemonic: %w", err)
	}
	keyEnv, err := envelope.Seal([]byte(privateKey), s.masterSecret)
	if err != nil {
		return fmt.Errorf("seal private key: %w", err)
	}

	err = s.store.CreateSecret(ctx, secret.EncryptedSecret{
		WalletID:           walletID,
		MnemonicEnvelope:   mnemonicEnv.Encode(),
		PrivateKeyEnvelope: keyEnv.Encode(),
	})
	if err != nil {
		return err
	}
	s.log.Infof("secret stored for wallet %s", walletID)
	return nil
}

// RevealMnemonic opens the wallet's mnemonic envelope.
func (s *Service) RevealMnemonic(ctx context.Context, walletID string) (string, error) {
	sec, err := s.store.GetSecret(ctx, walletID)
	if err != nil {
		return "", err
	}
	return s.open(walletID, sec.MnemonicEnvelope)
}

// RevealPrivateKey opens the wallet's private key envelope.
func (s *Service) RevealPrivateKey(ctx context.Context, walletID string) (string, error) {
	sec, err := s.store.GetSecret(ctx, walletID)
	if err != nil {
		return "", err
	}
	return s.open(walletID, sec.PrivateKeyEnvelope)
}

// open parses and decrypts one envelope. Integrity failures surface as
// ErrSecretCorrupted: the call fails whole, corruption never degrades
// silently, and retrying cannot succeed.
func (s *Service) open(walletID, encoded string) (string, error) {
	env, err := envelope.Parse(encoded)
	if err != nil {
		s.log.LogSecurityEvent(context.Background(), "secret_corrupted", map[string]any{"wallet_id": walletID})
		return "", fmt.Errorf("%w: wallet %s", errors.ErrSecretCorrupted, walletID)
	}
	plaintext, err := envelope.Open(env, s.masterSecret)
	if err != nil {
		s.log.LogSecurityEvent(context.Background(), "secret_corrupted", map[string]any{"wallet_id": walletID})
		return "", fmt.Errorf("%w: wallet %s", errors.ErrSecretCorrupted, walletID)
	}
	return string(plaintext), nil
}
