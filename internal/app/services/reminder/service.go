// Package reminder runs the scheduled backup reminder sweep. It is read-only:
// the sweep looks at wallet backup state and urgency, never at secret
// material.
package reminder

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/wallet"
	"github.com/OpenCustody/wallet_layer/internal/app/metrics"
	"github.com/OpenCustody/wallet_layer/internal/app/services/backup"
	"github.com/OpenCustody/wallet_layer/internal/app/storage"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

// DefaultSchedule sweeps once an hour.
const DefaultSchedule = "0 * * * *"

// SweepResult summarises one reminder pass.
type SweepResult struct {
	Scanned  int
	Awaiting int
	High     int
}

// Service periodically scans for wallets whose backup is overdue.
type Service struct {
	wallets  storage.WalletStore
	schedule string
	now      func() time.Time
	log      *logger.Logger
	cron     *cron.Cron
}

// Option customises service construction.
type Option func(*Service)

// WithSchedule overrides the cron expression.
func WithSchedule(spec string) Option {
	return func(s *Service) { s.schedule = spec }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the reminder runner.
func New(wallets storage.WalletStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("reminder")
	}
	s := &Service{
		wallets:  wallets,
		schedule: DefaultSchedule,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements system.Service.
func (s *Service) Name() string { return "backup-reminder" }

// Start registers the sweep with the cron scheduler and begins running it.
func (s *Service) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.log.WithError(err).Errorf("reminder sweep failed")
		}
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.WithField("schedule", s.schedule).Infof("reminder runner started")
	return nil
}

// Stop halts the scheduler and waits for an in-flight sweep to finish.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Infof("reminder runner stopped")
	return nil
}

// Sweep scans every wallet once and logs the ones overdue for backup.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	wallets, err := s.wallets.ListWallets(ctx)
	if err != nil {
		metrics.RecordReminderSweep(time.Since(start), false)
		return SweepResult{}, err
	}

	now := s.now()
	res := SweepResult{Scanned: len(wallets)}
	for _, w := range wallets {
		if w.State() != wallet.StateAwaitingBackup {
			continue
		}
		res.Awaiting++

		urgency := backup.Urgency(w, now)
		if urgency != wallet.UrgencyHigh {
			continue
		}
		res.High++
		s.log.WithFields(map[string]any{
			"wallet_id":     w.ID,
			"wallet_name":   w.Name,
			"urgency":       string(urgency),
			"first_tx_date": w.FirstTxDate.Format(time.RFC3339),
		}).Warnf("wallet backup overdue")
	}

	metrics.RecordReminderSweep(time.Since(start), true)
	s.log.WithFields(map[string]any{
		"scanned":  res.Scanned,
		"awaiting": res.Awaiting,
		"high":     res.High,
	}).Infof("reminder sweep complete")
	return res, nil
}
