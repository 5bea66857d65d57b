package amqp

import (
	"context"
	"log/slog"

	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
)

// EventPublisher is implemented by *Client.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *LedgerEvent) error
}

// Hook returns a ledger hook that publishes every committed mutation.
// Publish failures are logged and never reported to the ledger: events are
// best effort and the mutation is already durable.
func Hook(p EventPublisher, logger *slog.Logger) ledger.Hook {
	logger = applog.OrDefault(logger)
	return func(ctx context.Context, ev ledger.Event) error {
		msg := NewLedgerEvent(ev)
		if err := p.PublishEvent(ctx, msg); err != nil {
			logger.ErrorContext(ctx, "Failed to publish ledger event",
				applog.FieldOperation, applog.OpPublish,
				applog.FieldEvent, msg.Event,
				applog.FieldTransactionID, msg.TransactionID,
				applog.FieldError, err)
		}
		return nil
	}
}
