package ledger

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

type EventKind string

const (
	TransactionAdded   EventKind = "transaction_added"
	TransactionUpdated EventKind = "transaction_updated"
	TransactionDeleted EventKind = "transaction_deleted"
)

// Event describes a committed mutation.
type Event struct {
	Kind        EventKind
	Transaction core.Transaction
	// Previous is the transaction before an update or the removed one on delete.
	Previous core.Transaction
	// Goal is the savings goal the caller selected when adding.
	Goal string
}

// Hook observes committed mutations. A returned error is reported to the
// caller but never undoes the mutation.
type Hook func(ctx context.Context, ev Event) error

// HookError is returned when the mutation committed but a hook failed.
type HookError struct {
	Event EventKind
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook: %v", e.Event, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

type addOptions struct {
	goal string
}

type AddOption func(*addOptions)

// WithGoal attributes a savings expense to the named goal.
func WithGoal(name string) AddOption {
	return func(o *addOptions) { o.goal = name }
}
