package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(os.Stderr)
		return 2
	}

	cfg, logger, err := cli.Setup(applog.ComponentApp)
	if err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := cli.OpenService(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", applog.FieldError, err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close service", applog.FieldError, err)
		}
	}()

	r := &runner{
		svc: svc,
		out: os.Stdout,
		now: time.Now,
		sheets: func(ctx context.Context) (sheetExporter, error) {
			exp, err := cli.SheetsExporter(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return exp, nil
		},
	}
	if err := r.run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}
