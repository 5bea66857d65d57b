// Package worker keeps a Google Sheets tab in step with one user's ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// Exporter replaces the sheet contents with a user's transactions.
type Exporter interface {
	Export(ctx context.Context, userID string, txns []core.Transaction) (int, error)
}

// SyncConfig holds configuration for the sync worker
type SyncConfig struct {
	// UserID is the user whose transactions are mirrored
	UserID string

	// FlushInterval is how often pending changes are written (default: 30s)
	FlushInterval time.Duration

	// MaxRetries is the number of failed flushes after which pending
	// changes are dropped until the next event (default: 3)
	MaxRetries int
}

func DefaultSyncConfig(userID string) SyncConfig {
	return SyncConfig{
		UserID:        userID,
		FlushInterval: 30 * time.Second,
		MaxRetries:    3,
	}
}

// SyncWorker coalesces ledger events into periodic full exports. Events only
// mark the sheet stale; the flush reloads the store, so lost or reordered
// events cannot leave stale rows behind.
type SyncWorker struct {
	store  storage.TransactionStore
	sheets Exporter
	config SyncConfig
	logger *slog.Logger

	mu       sync.Mutex
	dirty    bool
	attempts int
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSyncWorker(store storage.TransactionStore, sheets Exporter, config SyncConfig, logger *slog.Logger) *SyncWorker {
	if config.FlushInterval <= 0 {
		config.FlushInterval = 30 * time.Second
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 3
	}
	return &SyncWorker{
		store:  store,
		sheets: sheets,
		config: config,
		logger: applog.OrDefault(logger),
	}
}

// HandleLedgerEvent marks the sheet stale when the event concerns the
// mirrored user. Events of other users are acknowledged and ignored.
func (w *SyncWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev.UserID != w.config.UserID {
		w.logger.DebugContext(ctx, "Ignoring ledger event for other user",
			applog.FieldEvent, ev.Event,
			applog.FieldUserID, ev.UserID)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger event",
		applog.FieldEvent, ev.Event,
		applog.FieldTransactionID, ev.TransactionID)

	w.mu.Lock()
	w.dirty = true
	w.attempts = 0
	w.mu.Unlock()
	return nil
}

// Pending reports whether changes are waiting to be flushed.
func (w *SyncWorker) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// Sync exports the current state of the mirrored user's transactions.
func (w *SyncWorker) Sync(ctx context.Context) (int, error) {
	txns, err := w.store.LoadTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("load transactions: %w", err)
	}
	n, err := w.sheets.Export(ctx, w.config.UserID, txns)
	if err != nil {
		return 0, fmt.Errorf("export to sheets: %w", err)
	}
	return n, nil
}

// Flush syncs when changes are pending. A failed flush keeps the changes
// pending until MaxRetries attempts have failed.
func (w *SyncWorker) Flush(ctx context.Context) error {
	w.mu.Lock()
	if !w.dirty {
		w.mu.Unlock()
		return nil
	}
	w.dirty = false
	w.mu.Unlock()

	n, err := w.Sync(ctx)
	if err == nil {
		w.mu.Lock()
		w.attempts = 0
		w.mu.Unlock()
		w.logger.InfoContext(ctx, "Synced transactions to Google Sheets",
			applog.FieldUserID, w.config.UserID,
			applog.FieldCount, n)
		return nil
	}

	w.mu.Lock()
	w.attempts++
	attempts := w.attempts
	if attempts < w.config.MaxRetries {
		// A newer event may have set dirty meanwhile; either way retry.
		w.dirty = true
	} else {
		w.attempts = 0
	}
	w.mu.Unlock()

	if attempts >= w.config.MaxRetries {
		w.logger.ErrorContext(ctx, "Sheets sync failed permanently after max retries",
			applog.FieldUserID, w.config.UserID,
			"attempts", attempts,
			applog.FieldError, err)
	} else {
		w.logger.WarnContext(ctx, "Sheets sync failed",
			applog.FieldUserID, w.config.UserID,
			"attempt", attempts,
			applog.FieldError, err)
	}
	return err
}

// Start begins the flush loop. Returns an error if already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stop, done)

	w.logger.InfoContext(ctx, "Sync worker started",
		applog.FieldUserID, w.config.UserID,
		"flush_interval", w.config.FlushInterval)
	return nil
}

// Stop signals the loop, flushes what is pending and waits for completion.
// It is safe to call concurrently and again after a timed-out Stop.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		w.logger.InfoContext(ctx, "Sync worker stopped gracefully")
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	if w.doneCh == done {
		w.running = false
	}
	w.mu.Unlock()
	return nil
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			_ = w.Flush(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = w.Flush(ctx)
		}
	}
}
