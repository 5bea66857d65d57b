package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
)

func main() {
	cfg, logger, err := cli.Setup(applog.ComponentRecurring)
	if err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting recurring-worker", "schedule", cfg.RecurringSchedule, "backend", cfg.DataBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ledger events go out through AMQP when configured, so the sheets-worker
	// picks up generated transactions.
	svc, err := cli.OpenService(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", applog.FieldError, err)
		os.Exit(1)
	}
	defer svc.Close()

	process := func() {
		now := time.Now()
		count, err := svc.ProcessRecurring(ctx, now)
		if err != nil {
			logger.Error("Recurring processing failed", applog.FieldError, err, "created", count)
			return
		}
		logger.Info("Recurring processing complete", "created", count)
	}

	// Run initial processing on startup
	logger.Info("Running initial recurring processing...")
	process()

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})))
	if _, err := c.AddFunc(cfg.RecurringSchedule, process); err != nil {
		logger.Error("Invalid recurring schedule", applog.FieldError, err)
		os.Exit(1)
	}
	c.Start()

	cli.WaitForShutdown(ctx, logger)

	// Wait for a running job, bounded by the shutdown timeout.
	stopped := c.Stop()
	select {
	case <-stopped.Done():
		logger.Info("Recurring-worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
	cancel()
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *applog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, applog.FieldError, err)...)
}
