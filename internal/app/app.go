// Package app wires configuration, logging, the login orchestrator and the
// credential vault together for the command line.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/protocol"
	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/internal/vault"
	"github.com/aussiebroadwan/xdauth/internal/vault/drivers/sqlite"
	"github.com/aussiebroadwan/xdauth/pkg/cryptox"
	"github.com/aussiebroadwan/xdauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application holds the dependencies shared by every command. The vault
// database is opened on first use so stateless commands never touch it.
type Application struct {
	cfg       Config
	logger    *slog.Logger
	endpoints protocol.Endpoints
	orch      *login.Orchestrator

	vaultOnce sync.Once
	db        vault.Store
	vault     *vault.Service
	vaultErr  error
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "xdauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	endpoints, err := protocol.Load(cfg.ProtocolFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load protocol file: %w", err)
	}
	app.endpoints = endpoints

	app.orch = &login.Orchestrator{
		MaxAttempts:  cfg.MaxAttempts,
		Endpoints:    endpoints,
		NewTransport: app.newTransport,
		Logger:       app.logger,
	}
	return app, nil
}

func (app *Application) Config() Config                    { return app.cfg }
func (app *Application) Logger() *slog.Logger              { return app.logger }
func (app *Application) Endpoints() protocol.Endpoints     { return app.endpoints }
func (app *Application) Orchestrator() *login.Orchestrator { return app.orch }

// newTransport builds a rate limited cookie transport for one session.
func (app *Application) newTransport(userAgent string) (transport.Transport, error) {
	if userAgent == "" {
		userAgent = app.cfg.UserAgent
	}
	limit := app.cfg.RateLimit
	return transport.New(transport.Options{
		UserAgent: userAgent,
		Timeout:   app.cfg.HTTPTimeout,
		RateLimit: &limit,
	})
}

// Vault opens the database, applies migrations and loads the master key.
// Without a master key the vault still works but keeps no snapshots.
func (app *Application) Vault() (*vault.Service, error) {
	app.vaultOnce.Do(func() {
		app.vault, app.vaultErr = app.initVault()
	})
	return app.vault, app.vaultErr
}

func (app *Application) initVault() (*vault.Service, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply vault migrations: %w", err)
	}
	app.db = db
	app.logger.Debug("vault migrations applied", "file", app.cfg.DatabaseFile)

	sealer, err := cryptox.LoadSealer(app.cfg.MasterKeyPath)
	switch {
	case errors.Is(err, cryptox.ErrNoMasterKey):
		app.logger.Info("no master key configured, session snapshots disabled")
		sealer = nil
	case err != nil:
		_ = db.Close()
		app.db = nil
		return nil, err
	}

	return vault.NewService(db, app.orch, sealer), nil
}

// Close releases the vault database if it was opened.
func (app *Application) Close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}
