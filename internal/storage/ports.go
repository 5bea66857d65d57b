// Package storage defines the persistence ports of the ledger.
//
// Every Save call replaces the whole collection it names and is all-or-nothing:
// either the new collection is durable or the previous one is left intact.
// Stores substitute an empty collection for a stored document that cannot be
// decoded and log a warning instead of failing.
package storage

import (
	"context"

	"fintrack/internal/core"
)

type (
	TransactionStore interface {
		LoadTransactions(ctx context.Context) ([]core.Transaction, error)
		SaveTransactions(ctx context.Context, txns []core.Transaction) error
	}

	// GoalStore persists savings goals, one collection per user.
	GoalStore interface {
		LoadGoals(ctx context.Context, userID string) ([]core.Goal, error)
		SaveGoals(ctx context.Context, userID string, goals []core.Goal) error
	}

	RecurringStore interface {
		LoadRecurring(ctx context.Context) ([]core.RecurringEntry, error)
		SaveRecurring(ctx context.Context, entries []core.RecurringEntry) error
	}

	// Store is the full storage adapter used by the application.
	Store interface {
		TransactionStore
		GoalStore
		RecurringStore
		Close() error
	}
)
