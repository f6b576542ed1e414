// Package cli wires configuration into the services the txlog commands run.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/emailsource"
	"github.com/eshaffer321/cc-transaction-logger/internal/application/extraction"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/config"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/logging"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/storage"
	"github.com/eshaffer321/cc-transaction-logger/internal/registry"
)

// App holds the services shared by every command.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *registry.Registry
	Service  *extraction.Service
	Source   *emailsource.FileSource

	store *storage.Storage
}

// NewApp builds the registry and extraction service from cfg. Storage is
// opened lazily by Store so read-only commands never create a database.
func NewApp(cfg *config.Config, verbose bool) (*App, error) {
	loggingCfg := cfg.Observability.Logging
	if verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "txlog")

	reg, err := registry.NewWithSenders(logger.With(logging.SystemKey, "registry"), cfg.Merchants.Senders)
	if err != nil {
		return nil, fmt.Errorf("failed to build merchant registry: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Service:  extraction.NewService(reg, logger.With(logging.SystemKey, "extract")),
		Source:   emailsource.NewFileSource(cfg.Mailbox.Path),
	}, nil
}

// Store opens the transaction log on first use.
func (a *App) Store() (*storage.Storage, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := storage.NewStorage(a.Config.Storage.DatabasePath, a.Logger.With(logging.SystemKey, "storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction log: %w", err)
	}
	a.store = store
	return store, nil
}

// Runner returns a runner over the mailbox and the transaction log.
func (a *App) Runner() (*extraction.Runner, error) {
	store, err := a.Store()
	if err != nil {
		return nil, err
	}
	return extraction.NewRunner(a.Service, a.Source, store, a.Logger.With(logging.SystemKey, "run")), nil
}

// RunOptions builds run options from the config, with flag overrides.
// Zero overrides keep the configured values.
func (a *App) RunOptions(merchants []string, lookbackDays, limit int, dryRun bool) extraction.RunOptions {
	if len(merchants) == 0 {
		merchants = a.Config.EnabledMerchants(a.Registry.List())
	}
	if lookbackDays <= 0 {
		lookbackDays = a.Config.Mailbox.LookbackDays
	}
	if limit <= 0 {
		limit = a.Config.Mailbox.Limit
	}
	return extraction.RunOptions{
		Merchants:    merchants,
		LookbackDays: lookbackDays,
		Limit:        limit,
		DryRun:       dryRun,
	}
}

// CardRunOptions builds run options for a configured card: its merchants
// unless merchants are given, and only rows with its last digits.
func (a *App) CardRunOptions(nickname string, merchants []string, lookbackDays, limit int, dryRun bool) (extraction.RunOptions, error) {
	card, ok := a.Config.Card(nickname)
	if !ok {
		return extraction.RunOptions{}, fmt.Errorf("unknown card %q", nickname)
	}
	if len(merchants) == 0 {
		merchants = card.Merchants
	}
	opts := a.RunOptions(merchants, lookbackDays, limit, dryRun)
	if card.LastDigits != "" {
		opts.Cards = []string{card.LastDigits}
	}
	return opts, nil
}

// Close releases the transaction log if it was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
