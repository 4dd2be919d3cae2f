package passcode

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/OpenCustody/wallet_layer/internal/app/storage/memory"
	"github.com/OpenCustody/wallet_layer/internal/errors"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.New()
	return New(store, nil, WithBcryptCost(bcrypt.MinCost)), store
}

func TestRegisterAndVerify(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	id, err := svc.Register(ctx, "Pixel7", "Sn0w!2024")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty passcode id")
	}

	got, err := svc.Verify(ctx, "Pixel7", "Sn0w!2024")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != id {
		t.Fatalf("verify returned id %s, want %s", got, id)
	}

	if _, err := svc.Verify(ctx, "Pixel7", "wrong!"); !errors.Is(err, errors.ErrInvalidPasscode) {
		t.Fatalf("expected invalid passcode for wrong secret, got %v", err)
	}
}

func TestUnknownDeviceIndistinguishableFromWrongPasscode(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Pixel7", "Sn0w!2024"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, unknownErr := svc.Verify(ctx, "iPhone15", "Sn0w!2024")
	_, wrongErr := svc.Verify(ctx, "Pixel7", "not-the-passcode")

	if !errors.Is(unknownErr, errors.ErrInvalidPasscode) || !errors.Is(wrongErr, errors.ErrInvalidPasscode) {
		t.Fatalf("expected ErrInvalidPasscode for both, got %v / %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatal("unknown device and wrong passcode must be indistinguishable")
	}
}

func TestRotationKeepsExactlyOneActive(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	passcodes := []string{"first-123", "second-456", "third-789"}
	var lastID string
	for _, pc := range passcodes {
		id, err := svc.Register(ctx, "Pixel7", pc)
		if err != nil {
			t.Fatalf("register %q: %v", pc, err)
		}
		lastID = id
	}

	if n := store.ActivePasscodeCount("Pixel7"); n != 1 {
		t.Fatalf("expected exactly one active record after rotations, got %d", n)
	}

	// Only the latest passcode verifies.
	id, err := svc.Verify(ctx, "Pixel7", "third-789")
	if err != nil {
		t.Fatalf("verify latest: %v", err)
	}
	if id != lastID {
		t.Fatalf("expected latest record id %s, got %s", lastID, id)
	}

	for _, superseded := range passcodes[:2] {
		if _, err := svc.Verify(ctx, "Pixel7", superseded); !errors.Is(err, errors.ErrInvalidPasscode) {
			t.Fatalf("superseded passcode %q must be invalid, got %v", superseded, err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "", "Sn0w!2024"); err == nil {
		t.Fatal("expected error for empty device name")
	}
	if _, err := svc.Register(ctx, "Pixel7", "short"); err == nil {
		t.Fatal("expected error for too-short passcode")
	}
}

func TestStoredHashIsNotThePasscode(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Pixel7", "Sn0w!2024"); err != nil {
		t.Fatalf("register: %v", err)
	}
	rec, err := store.GetActivePasscode(ctx, "Pixel7")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if rec.PasscodeHash == "Sn0w!2024" {
		t.Fatal("passcode stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasscodeHash), []byte("Sn0w!2024")); err != nil {
		t.Fatalf("stored hash must verify against original passcode: %v", err)
	}
}
