package custody

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	auditdom "github.com/OpenCustody/wallet_layer/internal/app/domain/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/domain/wallet"
	"github.com/OpenCustody/wallet_layer/internal/app/services/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/services/backup"
	"github.com/OpenCustody/wallet_layer/internal/app/services/passcode"
	"github.com/OpenCustody/wallet_layer/internal/app/services/vault"
	"github.com/OpenCustody/wallet_layer/internal/app/storage/memory"
	"github.com/OpenCustody/wallet_layer/internal/errors"
)

var testMaster = []byte("0123456789abcdef0123456789abcdef")

const testMnemonic = "crane short avocado love outer control dress same myself tiger prevent must"

type fixture struct {
	svc   *Service
	store *memory.Store
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.New()
	vaultSvc, err := vault.New(store, testMaster, nil)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	passcodeSvc := passcode.New(store, nil, passcode.WithBcryptCost(bcrypt.MinCost))
	backupSvc := backup.New(store, vaultSvc, nil, backup.WithClock(clock))
	auditorSvc := audit.New(store, nil, audit.WithClock(clock))

	svc := New(store, vaultSvc, passcodeSvc, backupSvc, auditorSvc, nil, WithClock(clock))
	return &fixture{svc: svc, store: store, now: now}
}

func (f *fixture) onboard(t *testing.T, name string) wallet.Wallet {
	t.Helper()
	w, err := f.svc.Onboard(context.Background(), OnboardParams{
		Name:       name,
		Mnemonic:   testMnemonic,
		PrivateKey: "L1aW4aubDFB7yfras2S1mN3dDdVckpoxAli5u4wKfUYY",
	})
	if err != nil {
		t.Fatalf("onboard %s: %v", name, err)
	}
	return w
}

func (f *fixture) entries(t *testing.T, walletID string) []auditdom.Entry {
	t.Helper()
	entries, err := f.store.ListAccessLog(context.Background(), walletID, 0)
	if err != nil {
		t.Fatalf("list access log: %v", err)
	}
	return entries
}

var reqCtx = auditdom.RequestContext{IP: "203.0.113.7", UserAgent: "custody-test"}

// Register a device, verify its passcode, reveal, and check the log.
func TestRevealForBackupHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.onboard(t, "main")

	passcodeSvc := passcode.New(f.store, nil, passcode.WithBcryptCost(bcrypt.MinCost))
	if _, err := passcodeSvc.Register(ctx, "Pixel7", "Sn0w!2024"); err != nil {
		t.Fatalf("register passcode: %v", err)
	}

	revealed, err := f.svc.RevealForBackup(ctx, w.ID, "Pixel7", "Sn0w!2024", reqCtx)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if revealed.Mnemonic != testMnemonic {
		t.Fatalf("unexpected mnemonic %q", revealed.Mnemonic)
	}
	if revealed.PrivateKey == "" {
		t.Fatal("expected private key material")
	}

	entries := f.entries(t, w.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	e := entries[0]
	if e.AccessType != auditdom.AccessMnemonicReveal || !e.Success {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.IP != reqCtx.IP || e.UserAgent != reqCtx.UserAgent {
		t.Fatalf("request context not recorded: %+v", e)
	}
	if e.DevicePasscodeID == "" {
		t.Fatal("entry must reference the verified passcode")
	}
}

// Wrong passcode and unknown device must be indistinguishable, short-circuit
// before the vault, and still leave a failed passcode_verify entry.
func TestRevealForBackupGateFailureShortCircuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.onboard(t, "main")

	passcodeSvc := passcode.New(f.store, nil, passcode.WithBcryptCost(bcrypt.MinCost))
	if _, err := passcodeSvc.Register(ctx, "Pixel7", "Sn0w!2024"); err != nil {
		t.Fatalf("register passcode: %v", err)
	}

	_, wrongCode := f.svc.RevealForBackup(ctx, w.ID, "Pixel7", "wrong", reqCtx)
	_, unknownDevice := f.svc.RevealForBackup(ctx, w.ID, "ghost-device", "Sn0w!2024", reqCtx)

	if !errors.Is(wrongCode, errors.ErrInvalidPasscode) {
		t.Fatalf("wrong code: expected ErrInvalidPasscode, got %v", wrongCode)
	}
	if !errors.Is(unknownDevice, errors.ErrInvalidPasscode) {
		t.Fatalf("unknown device: expected ErrInvalidPasscode, got %v", unknownDevice)
	}
	if wrongCode.Error() != unknownDevice.Error() {
		t.Fatal("gate failures must be indistinguishable to the caller")
	}

	entries := f.entries(t, w.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.AccessType != auditdom.AccessPasscodeVerify || e.Success {
			t.Fatalf("expected failed passcode_verify, got %+v", e)
		}
	}
}

// Corrupt a stored secret and confirm the reveal fails loudly with a
// security_alert rather than returning garbage.
func TestRevealForBackupSurfacesCorruption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.onboard(t, "main")

	passcodeSvc := passcode.New(f.store, nil, passcode.WithBcryptCost(bcrypt.MinCost))
	if _, err := passcodeSvc.Register(ctx, "Pixel7", "Sn0w!2024"); err != nil {
		t.Fatalf("register passcode: %v", err)
	}
	f.store.CorruptSecret(w.ID)

	_, err := f.svc.RevealForBackup(ctx, w.ID, "Pixel7", "Sn0w!2024", reqCtx)
	if !errors.Is(err, errors.ErrSecretCorrupted) {
		t.Fatalf("expected ErrSecretCorrupted, got %v", err)
	}

	entries := f.entries(t, w.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Severity != auditdom.SeveritySecurityAlert || entries[0].Success {
		t.Fatalf("corruption must be a failed security_alert, got %+v", entries[0])
	}
}

// First transaction 8 days ago, never backed up: reminder shows HIGH.
func TestRemindersHighUrgencyAfterEightDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	passcodeSvc := passcode.New(f.store, nil, passcode.WithBcryptCost(bcrypt.MinCost))
	passcodeID, err := passcodeSvc.Register(ctx, "Pixel7", "Sn0w!2024")
	if err != nil {
		t.Fatalf("register passcode: %v", err)
	}

	w, err := f.svc.Onboard(ctx, OnboardParams{
		Name:             "savings",
		DevicePasscodeID: passcodeID,
		Mnemonic:         testMnemonic,
		PrivateKey:       "key",
	})
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	// First transaction landed 8 days ago.
	applied, err := f.store.SetFirstTransaction(ctx, w.ID, "0xfeed", f.now.AddDate(0, 0, -8))
	if err != nil || !applied {
		t.Fatalf("set first tx: applied=%v err=%v", applied, err)
	}

	reminders, err := f.svc.ListReminders(ctx, passcodeID)
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(reminders))
	}
	if reminders[0].Urgency != wallet.UrgencyHigh {
		t.Fatalf("expected HIGH urgency, got %s", reminders[0].Urgency)
	}

	status, err := f.svc.CheckBackupStatus(ctx, w.ID)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if status.State != wallet.StateAwaitingBackup || status.Urgency != wallet.UrgencyHigh {
		t.Fatalf("unexpected status %+v", status)
	}
}

// Quiz with words 3, 7, 11 succeeds; a wrong word fails and leaves state
// unchanged. Both attempts are audited.
func TestConfirmBackupQuiz(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.onboard(t, "main")

	_, err := f.svc.ConfirmBackup(ctx, w.ID, []backup.WordCheck{
		{Position: 3, Word: "wrong"},
		{Position: 7, Word: "dress"},
		{Position: 11, Word: "prevent"},
	}, reqCtx)
	if !errors.Is(err, errors.ErrVerificationFailed) {
		t.Fatalf("expected verification failure, got %v", err)
	}

	status, err := f.svc.CheckBackupStatus(ctx, w.ID)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if status.BackedUp {
		t.Fatal("failed quiz must not flip backup status")
	}

	res, err := f.svc.ConfirmBackup(ctx, w.ID, []backup.WordCheck{
		{Position: 3, Word: "avocado"},
		{Position: 7, Word: "dress"},
		{Position: 11, Word: "prevent"},
	}, reqCtx)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !res.Confirmed {
		t.Fatalf("unexpected result %+v", res)
	}

	entries := f.entries(t, w.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	// Newest first: the successful confirm, then the earlier failure.
	if !entries[0].Success || entries[1].Success {
		t.Fatalf("expected one failed and one successful backup_confirm, got %+v", entries)
	}
	for _, e := range entries {
		if e.AccessType != auditdom.AccessBackupConfirm {
			t.Fatalf("unexpected access type %s", e.AccessType)
		}
	}
}

// Every reveal attempt leaves exactly one audit entry, whichever step fails.
func TestRevealForBackupAuditCompleteness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.onboard(t, "main")

	passcodeSvc := passcode.New(f.store, nil, passcode.WithBcryptCost(bcrypt.MinCost))
	if _, err := passcodeSvc.Register(ctx, "Pixel7", "Sn0w!2024"); err != nil {
		t.Fatalf("register passcode: %v", err)
	}

	// Gate failure, missing secret, and success each append one entry.
	if _, err := f.svc.RevealForBackup(ctx, w.ID, "Pixel7", "wrong", reqCtx); err == nil {
		t.Fatal("expected gate failure")
	}
	if _, err := f.svc.RevealForBackup(ctx, "ghost", "Pixel7", "Sn0w!2024", reqCtx); !errors.Is(err, errors.ErrSecretNotFound) {
		t.Fatalf("expected missing secret, got %v", err)
	}
	if _, err := f.svc.RevealForBackup(ctx, w.ID, "Pixel7", "Sn0w!2024", reqCtx); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	all, err := f.store.ListAccessLog(ctx, "", 0)
	if err != nil {
		t.Fatalf("list access log: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 audit entries for 3 reveal calls, got %d", len(all))
	}
}

func TestAdminRevealEmitsSecurityAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.onboard(t, "main")
	adminCtx := auditdom.AdminContext{AdminID: "ops-42", Role: "recovery"}

	revealed, err := f.svc.AdminReveal(ctx, w.ID, adminCtx, reqCtx)
	if err != nil {
		t.Fatalf("admin reveal: %v", err)
	}
	if revealed.Mnemonic != testMnemonic {
		t.Fatalf("unexpected mnemonic %q", revealed.Mnemonic)
	}

	entries := f.entries(t, w.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	e := entries[0]
	if e.AccessType != auditdom.AccessAdminReveal || e.Severity != auditdom.SeveritySecurityAlert {
		t.Fatalf("expected admin_reveal security_alert, got %+v", e)
	}

	if _, err := f.svc.AdminReveal(ctx, w.ID, auditdom.AdminContext{}, reqCtx); err == nil {
		t.Fatal("expected rejection without admin identity")
	}
}

func TestAdminMassExportAuditsEveryWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.onboard(t, "first")
	second := f.onboard(t, "second")
	adminCtx := auditdom.AdminContext{AdminID: "ops-42", Role: "recovery"}

	out, err := f.svc.AdminMassExport(ctx, adminCtx, reqCtx)
	if err != nil {
		t.Fatalf("mass export: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 revealed secrets, got %d", len(out))
	}

	for _, id := range []string{first.ID, second.ID} {
		entries := f.entries(t, id)
		if len(entries) != 1 {
			t.Fatalf("wallet %s: expected 1 audit entry, got %d", id, len(entries))
		}
		e := entries[0]
		if e.AccessType != auditdom.AccessAdminMassExport || e.Severity != auditdom.SeveritySecurityAlert || !e.Success {
			t.Fatalf("wallet %s: unexpected entry %+v", id, e)
		}
	}
}

func TestOnboardValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Onboard(ctx, OnboardParams{Mnemonic: testMnemonic, PrivateKey: "k"}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, err := f.svc.Onboard(ctx, OnboardParams{Name: "w", PrivateKey: "k"}); err == nil {
		t.Fatal("expected error for missing mnemonic")
	}
	if _, err := f.svc.Onboard(ctx, OnboardParams{Name: "w", Mnemonic: testMnemonic}); err == nil {
		t.Fatal("expected error for missing private key")
	}
}
