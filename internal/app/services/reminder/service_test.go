package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/wallet"
	"github.com/OpenCustody/wallet_layer/internal/app/storage/memory"
)

func TestSweepCountsOverdueWallets(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	store := memory.New()
	ctx := context.Background()

	seed := []wallet.Wallet{
		{ID: "fresh", Name: "fresh"},
		{ID: "recent", Name: "recent", FirstTxDate: now.AddDate(0, 0, -1)},
		{ID: "overdue", Name: "overdue", FirstTxDate: now.AddDate(0, 0, -9)},
		{ID: "done", Name: "done", FirstTxDate: now.AddDate(0, 0, -9), BackedUp: true},
	}
	for _, w := range seed {
		if _, err := store.CreateWallet(ctx, w); err != nil {
			t.Fatalf("seed %s: %v", w.ID, err)
		}
	}

	svc := New(store, nil, WithClock(func() time.Time { return now }))
	res, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Scanned != 4 {
		t.Fatalf("scanned = %d, want 4", res.Scanned)
	}
	if res.Awaiting != 2 {
		t.Fatalf("awaiting = %d, want 2", res.Awaiting)
	}
	if res.High != 1 {
		t.Fatalf("high = %d, want 1", res.High)
	}
}

func TestStartStop(t *testing.T) {
	svc := New(memory.New(), nil, WithSchedule("@hourly"))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	svc := New(memory.New(), nil, WithSchedule("not a schedule"))
	if err := svc.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
