// Package runtime assembles the custody service from configuration and
// manages the process lifecycle.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/lib/pq"

	app "github.com/OpenCustody/wallet_layer/internal/app"
	"github.com/OpenCustody/wallet_layer/internal/app/httpapi"
	"github.com/OpenCustody/wallet_layer/internal/app/metrics"
	"github.com/OpenCustody/wallet_layer/internal/app/storage/postgres"
	"github.com/OpenCustody/wallet_layer/internal/config"
	"github.com/OpenCustody/wallet_layer/internal/middleware"
	"github.com/OpenCustody/wallet_layer/internal/platform/migrations"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	app    *app.Application
	server *http.Server
	db     *sql.DB
}

// NewApplication constructs a runnable service from the environment.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(stores, app.Options{
		MasterSecret:     cfg.MasterSecret(),
		ReminderSchedule: cfg.Custody.ReminderSchedule,
	}, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	handler := httpapi.NewHandler(httpapi.Config{
		Custody:   application.Custody,
		Passcodes: application.Passcodes,
		AdminAuth: middleware.NewAdminAuth([]byte(cfg.Custody.AdminJWTSecret), log),
		Log:       log,
	})

	limiter := middleware.NewRateLimiter(cfg.Custody.RateLimitPerSec, cfg.Custody.RateLimitBurst, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", limiter.Handler(handler))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      metrics.InstrumentHandler(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Application{
		cfg:    cfg,
		log:    log,
		app:    application,
		server: server,
		db:     db,
	}, nil
}

// Run starts the background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("custody API listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and background services gracefully.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warnf("error stopping services")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warnf("error closing database connection")
		}
	}
	return nil
}

func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warnf("DATABASE_DSN not set; using in-memory stores")
		return app.Stores{}, nil, nil
	}

	db, err := openDatabase(cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{
		Wallets:   store,
		Secrets:   store,
		Passcodes: store,
		Audit:     store,
	}, db, nil
}

func openDatabase(dsn string) (*sql.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
