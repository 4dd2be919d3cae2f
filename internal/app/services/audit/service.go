// Package audit implements the append-only access auditor. Every sensitive
// custody operation records an entry here before its result is returned.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/metrics"
	"github.com/OpenCustody/wallet_layer/internal/app/storage"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

// failureBuffer bounds the operational failure channel. A full buffer drops
// the oldest notification rather than blocking the caller.
const failureBuffer = 64

// DefaultListLimit caps access log reads when the caller passes no limit.
const DefaultListLimit = 100

// FailedWrite is an access log entry that could not be persisted, delivered
// on the operational failure channel for out-of-band handling.
type FailedWrite struct {
	Entry audit.Entry
	Err   error
}

// Service appends and lists access log entries.
type Service struct {
	store    storage.AuditStore
	log      *logger.Logger
	now      func() time.Time
	failures chan FailedWrite
}

// Option customises service construction.
type Option func(*Service)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs an auditor backed by the given store.
func New(store storage.AuditStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("audit")
	}
	s := &Service{
		store:    store,
		log:      log,
		now:      time.Now,
		failures: make(chan FailedWrite, failureBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Failures exposes entries that could not be persisted. Consumers drain it to
// raise operational alerts; the channel is never closed.
func (s *Service) Failures() <-chan FailedWrite {
	return s.failures
}

// Record appends one entry synchronously. An audit store failure is reported
// through logging, metrics, and the failure channel but never aborts the
// operation being audited, so Record returns no error.
func (s *Service) Record(ctx context.Context, entry audit.Entry) audit.Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = audit.SeverityInfo
	}

	stored, err := s.store.AppendAccessLog(ctx, entry)
	if err != nil {
		metrics.RecordAuditWriteFailure()
		s.log.WithError(err).WithFields(map[string]any{
			"wallet_id":   entry.WalletID,
			"access_type": string(entry.AccessType),
		}).Errorf("access log write failed")
		select {
		case s.failures <- FailedWrite{Entry: entry, Err: err}:
		default:
			// Buffer full; the metric and log line still carry the signal.
		}
		return entry
	}

	if stored.Severity == audit.SeveritySecurityAlert {
		s.log.LogSecurityEvent(ctx, "security_alert_logged", map[string]any{
			"wallet_id":   stored.WalletID,
			"access_type": string(stored.AccessType),
			"success":     stored.Success,
		})
	}
	return stored
}

// List returns the most recent entries for a wallet, newest first.
func (s *Service) List(ctx context.Context, walletID string, limit int) ([]audit.Entry, error) {
	walletID = strings.TrimSpace(walletID)
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.store.ListAccessLog(ctx, walletID, limit)
}
