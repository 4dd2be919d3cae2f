package app

import (
	"context"
	"fmt"

	"github.com/OpenCustody/wallet_layer/internal/app/services/audit"
	"github.com/OpenCustody/wallet_layer/internal/app/services/backup"
	"github.com/OpenCustody/wallet_layer/internal/app/services/custody"
	passcodesvc "github.com/OpenCustody/wallet_layer/internal/app/services/passcode"
	"github.com/OpenCustody/wallet_layer/internal/app/services/reminder"
	"github.com/OpenCustody/wallet_layer/internal/app/services/vault"
	"github.com/OpenCustody/wallet_layer/internal/app/storage"
	"github.com/OpenCustody/wallet_layer/internal/app/storage/memory"
	"github.com/OpenCustody/wallet_layer/internal/app/system"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Wallets   storage.WalletStore
	Secrets   storage.SecretStore
	Passcodes storage.PasscodeStore
	Audit     storage.AuditStore
}

// Options tunes application construction.
type Options struct {
	// MasterSecret is the envelope key material. Required.
	MasterSecret []byte
	// ReminderSchedule overrides the reminder sweep cron expression.
	ReminderSchedule string
}

// Application ties the custody services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Vault     *vault.Service
	Passcodes *passcodesvc.Service
	Backups   *backup.Service
	Auditor   *audit.Service
	Custody   *custody.Service
	Reminders *reminder.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Wallets == nil {
		stores.Wallets = mem
	}
	if stores.Secrets == nil {
		stores.Secrets = mem
	}
	if stores.Passcodes == nil {
		stores.Passcodes = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}

	vaultSvc, err := vault.New(stores.Secrets, opts.MasterSecret, log)
	if err != nil {
		return nil, fmt.Errorf("configure vault: %w", err)
	}
	passcodeService := passcodesvc.New(stores.Passcodes, log)
	backupService := backup.New(stores.Wallets, vaultSvc, log)
	auditorService := audit.New(stores.Audit, log)
	custodyService := custody.New(stores.Wallets, vaultSvc, passcodeService, backupService, auditorService, log)

	reminderOpts := []reminder.Option{}
	if opts.ReminderSchedule != "" {
		reminderOpts = append(reminderOpts, reminder.WithSchedule(opts.ReminderSchedule))
	}
	reminderService := reminder.New(stores.Wallets, log, reminderOpts...)

	manager := system.NewManager()
	if err := manager.Register(reminderService); err != nil {
		return nil, fmt.Errorf("register %s: %w", reminderService.Name(), err)
	}

	return &Application{
		manager:   manager,
		log:       log,
		Vault:     vaultSvc,
		Passcodes: passcodeService,
		Backups:   backupService,
		Auditor:   auditorService,
		Custody:   custodyService,
		Reminders: reminderService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
