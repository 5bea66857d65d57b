// Package cli holds the start-up sequence shared by the fintrack binaries.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/transfer/sheets"
)

// Setup loads .env (when present) and the environment configuration, then
// installs the default logger for component.
func Setup(component string) (*config.Config, *applog.Logger, error) {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logCfg := applog.DefaultConfig()
	logCfg.Level = applog.ParseLevel(cfg.LogLevel)
	logCfg.Component = component
	logCfg.Output = os.Stderr
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

// OpenService opens the configured backend and builds a FinanceService on it.
// Closing the service closes the store and the AMQP client.
func OpenService(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*services.FinanceService, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	svc, err := services.NewFinanceService(ctx, services.Deps{
		Store:  res.Store,
		Events: res.Publisher(),
		Logger: logger,
	})
	if err != nil {
		res.Store.Close()
		if res.Events != nil {
			res.Events.Close()
		}
		return nil, err
	}
	return svc, nil
}

// SheetsExporter builds the Google Sheets exporter from cfg.
func SheetsExporter(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*sheets.Exporter, error) {
	if !cfg.SheetsEnabled() {
		return nil, errors.New("google sheets export is not configured (set GOOGLE_SPREADSHEET_ID)")
	}
	return sheets.New(ctx, sheets.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
	}, logger.WithComponent(applog.ComponentTransfer).Logger)
}

// WaitForShutdown blocks until SIGINT/SIGTERM arrives or ctx is done.
func WaitForShutdown(ctx context.Context, logger *applog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}
}
