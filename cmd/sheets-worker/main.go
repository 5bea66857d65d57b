package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger, err := cli.Setup(applog.ComponentSync)
	if err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting sheets-worker")

	switch {
	case cfg.AMQPURL == "":
		logger.Error("AMQP_URL is required: the worker consumes ledger events")
		os.Exit(1)
	case !cfg.SheetsEnabled():
		logger.Error("GOOGLE_SPREADSHEET_ID is required: the worker exports to Google Sheets")
		os.Exit(1)
	case cfg.SheetsSyncUser == "":
		logger.Error("SHEETS_SYNC_USER is required: the sheet mirrors a single user")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to open storage", applog.FieldError, err)
		os.Exit(1)
	}
	defer res.Store.Close()
	if res.Events == nil {
		logger.Error("Failed to connect to AMQP broker")
		os.Exit(1)
	}
	defer res.Events.Close()

	exporter, err := cli.SheetsExporter(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	syncCfg := worker.DefaultSyncConfig(cfg.SheetsSyncUser)
	syncCfg.FlushInterval = cfg.SyncInterval
	syncCfg.MaxRetries = cfg.SyncMaxRetries
	syncWorker := worker.NewSyncWorker(res.Store, exporter, syncCfg, logger.Logger)

	// Catch up with changes made while the worker was down.
	logger.Info("Performing startup sync...")
	if n, err := syncWorker.Sync(ctx); err != nil {
		logger.Error("Failed startup sync", applog.FieldError, err)
		// Don't exit - continue with normal operation
	} else {
		logger.Info("Startup sync completed", applog.FieldCount, n)
	}

	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", applog.FieldError, err)
		os.Exit(1)
	}

	go func() {
		if err := res.Events.ConsumeEvents(ctx, syncWorker.HandleLedgerEvent); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", applog.FieldError, err)
			}
			cancel()
		}
	}()

	cli.WaitForShutdown(ctx, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down sheets-worker...")
	if err := syncWorker.Stop(shutdownCtx); err != nil {
		logger.Warn("Sync worker did not stop cleanly", applog.FieldError, err)
	}
	cancel()
	logger.Info("Sheets-worker shutdown complete")
}
