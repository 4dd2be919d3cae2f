// Package passcode implements the device passcode gate that fronts every
// vault access.
package passcode

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	passcodedom "github.com/OpenCustody/wallet_layer/internal/app/domain/passcode"
	"github.com/OpenCustody/wallet_layer/internal/app/storage"
	"github.com/OpenCustody/wallet_layer/internal/errors"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

const (
	minPasscodeLen = 6
	maxPasscodeLen = 128
)

// Service registers and verifies device-bound passcodes.
type Service struct {
	store storage.PasscodeStore
	cost  int
	log   *logger.Logger
}

// Option customises service construction.
type Option func(*Service)

// WithBcryptCost overrides the hash cost. Tests lower it to stay fast.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// New constructs a passcode service.
func New(store storage.PasscodeStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("passcode")
	}
	s := &Service{store: store, cost: bcrypt.DefaultCost, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register hashes the passcode and rotates it in as the device's single
// active credential. Prior records are superseded, never deleted, so wallets
// pointing at them keep their linkage.
func (s *Service) Register(ctx context.Context, deviceName, passcode string) (string, error) {
	deviceName = strings.TrimSpace(deviceName)
	if deviceName == "" {
		return "", errors.Validation("device name is required")
	}
	if len(passcode) < minPasscodeLen || len(passcode) > maxPasscodeLen {
		return "", errors.Validation("passcode must be between %d and %d characters", minPasscodeLen, maxPasscodeLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), s.cost)
	if err != nil {
		return "", errors.Persistence("passcode hash", err)
	}

	rec, err := s.store.RotatePasscode(ctx, passcodedom.Record{
		DeviceName:   deviceName,
		PasscodeHash: string(hash),
	})
	if err != nil {
		return "", err
	}
	s.log.Infof("passcode registered for device %s", deviceName)
	return rec.ID, nil
}

// Verify checks a passcode against the device's active record. An unknown
// device and a wrong passcode are indistinguishable to the caller: both
// return ErrInvalidPasscode. The comparison relies on bcrypt's constant-time
// check.
func (s *Service) Verify(ctx context.Context, deviceName, passcode string) (string, error) {
	deviceName = strings.TrimSpace(deviceName)
	if deviceName == "" || passcode == "" {
		return "", errors.ErrInvalidPasscode
	}

	rec, err := s.store.GetActivePasscode(ctx, deviceName)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidPasscode) {
			return "", errors.ErrInvalidPasscode
		}
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.PasscodeHash), []byte(passcode)) != nil {
		return "", errors.ErrInvalidPasscode
	}
	return rec.ID, nil
}
