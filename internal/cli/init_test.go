package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

func TestSetupAndOpenService(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("RECURRING_SCHEDULE", "")

	cfg, logger, err := Setup(applog.ComponentApp)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if logger.Component() != applog.ComponentApp {
		t.Errorf("logger component = %q", logger.Component())
	}

	ctx := context.Background()
	svc, err := OpenService(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("OpenService: %v", err)
	}
	defer svc.Close()

	tx, err := svc.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Type: core.Income, Amount: core.MustParseMoney("3"),
		Category: "Gift", Date: core.NewDate(2024, 1, 1), PaymentMethod: "Cash",
	}, "")
	if err != nil || tx.ID != "TXN001" {
		t.Fatalf("AddTransaction: %+v %v", tx, err)
	}

	if _, err := SheetsExporter(ctx, cfg, logger); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Errorf("SheetsExporter without spreadsheet = %v", err)
	}
}

func TestSetupReportsInvalidConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "nope")

	_, logger, err := Setup(applog.ComponentApp)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if logger == nil {
		t.Fatal("logger must be usable to report the error")
	}
}

func TestWaitForShutdownReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		WaitForShutdown(ctx, applog.New(applog.DefaultConfig()))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForShutdown did not return after cancel")
	}
}
