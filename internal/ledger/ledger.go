// Package ledger holds the authoritative in-memory transaction collection.
//
// Every mutation is persisted through the configured store before it becomes
// visible; when persistence fails the mutation is rolled back and a
// *core.PersistenceError is returned. Hooks run after a mutation committed.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

const idPrefix = "TXN"

var idPattern = regexp.MustCompile(`^TXN(\d+)$`)

type Ledger struct {
	store  storage.TransactionStore
	txns   []core.Transaction
	hooks  []Hook
	logger *slog.Logger
}

// Open loads the stored transactions into a new ledger.
func Open(ctx context.Context, store storage.TransactionStore, logger *slog.Logger) (*Ledger, error) {
	txns, err := store.LoadTransactions(ctx)
	if err != nil {
		return nil, &core.PersistenceError{Op: "load transactions", Err: err}
	}
	l := &Ledger{
		store:  store,
		txns:   txns,
		logger: applog.OrDefault(logger),
	}
	l.logger.Debug("Ledger loaded", applog.FieldCount, len(txns))
	return l, nil
}

// OnChange registers a hook fired after every committed mutation.
func (l *Ledger) OnChange(h Hook) {
	l.hooks = append(l.hooks, h)
}

// Add validates tx, assigns it the next ID and persists the ledger. Any ID set
// on tx is ignored. Hook failures do not undo the add; they are returned as a
// *HookError together with the committed transaction.
func (l *Ledger) Add(ctx context.Context, tx core.Transaction, opts ...AddOption) (core.Transaction, error) {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	tx.UserID = strings.TrimSpace(tx.UserID)
	tx.PaymentMethod = strings.TrimSpace(tx.PaymentMethod)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = l.nextID()

	l.txns = append(l.txns, tx)
	if err := l.persist(ctx, "add transaction"); err != nil {
		l.txns = l.txns[:len(l.txns)-1]
		return core.Transaction{}, err
	}

	l.logger.Info("Transaction added",
		applog.FieldTransactionID, tx.ID,
		applog.FieldUserID, tx.UserID,
		applog.FieldAmount, tx.Amount.String())

	return tx, l.fire(ctx, Event{Kind: TransactionAdded, Transaction: tx, Goal: o.goal})
}

// Update applies patch to the transaction with the given ID. It reports false
// when no such transaction exists. The ID and owner cannot be changed.
func (l *Ledger) Update(ctx context.Context, id string, patch core.TransactionPatch) (bool, error) {
	i := l.index(id)
	if i < 0 {
		return false, nil
	}
	if patch.IsEmpty() {
		return true, nil
	}

	prev := l.txns[i]
	next := patch.Apply(prev)
	next.PaymentMethod = strings.TrimSpace(next.PaymentMethod)
	if err := next.Validate(); err != nil {
		return false, err
	}

	l.txns[i] = next
	if err := l.persist(ctx, "update transaction"); err != nil {
		l.txns[i] = prev
		return false, err
	}

	l.logger.Info("Transaction updated", applog.FieldTransactionID, id)
	return true, l.fire(ctx, Event{Kind: TransactionUpdated, Transaction: next, Previous: prev})
}

// Delete removes the transaction with the given ID, reporting false when it
// does not exist.
func (l *Ledger) Delete(ctx context.Context, id string) (bool, error) {
	i := l.index(id)
	if i < 0 {
		return false, nil
	}

	prev := l.txns
	removed := l.txns[i]
	// The three-index slice forces a copy, leaving prev intact for rollback.
	l.txns = append(l.txns[:i:i], l.txns[i+1:]...)
	if err := l.persist(ctx, "delete transaction"); err != nil {
		l.txns = prev
		return false, err
	}

	l.logger.Info("Transaction deleted", applog.FieldTransactionID, id)
	return true, l.fire(ctx, Event{Kind: TransactionDeleted, Transaction: removed, Previous: removed})
}

// Get returns the transaction with the given ID.
func (l *Ledger) Get(id string) (core.Transaction, bool) {
	if i := l.index(id); i >= 0 {
		return l.txns[i], true
	}
	return core.Transaction{}, false
}

// ListForUser returns userID's transactions in insertion order.
func (l *Ledger) ListForUser(userID string) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, tx := range l.txns {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

// Snapshot returns a copy of the full collection.
func (l *Ledger) Snapshot() []core.Transaction {
	return append([]core.Transaction(nil), l.txns...)
}

func (l *Ledger) Len() int { return len(l.txns) }

// ComputeTotals sums userID's income and expenses. Balance is income minus
// expense.
func (l *Ledger) ComputeTotals(userID string) core.Totals {
	return core.SumTotals(l.txns, userID)
}

func (l *Ledger) index(id string) int {
	for i, tx := range l.txns {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

// nextID is one more than the highest numeric TXN suffix in the ledger.
// IDs that do not match the pattern are ignored.
func (l *Ledger) nextID() string {
	highest := 0
	for _, tx := range l.txns {
		m := idPattern.FindStringSubmatch(tx.ID)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return FormatID(highest + 1)
}

// FormatID renders sequence n as a transaction ID, zero-padded to three digits.
func FormatID(n int) string {
	return fmt.Sprintf("%s%03d", idPrefix, n)
}

func (l *Ledger) persist(ctx context.Context, op string) error {
	if err := l.store.SaveTransactions(ctx, l.txns); err != nil {
		l.logger.Error("Failed to persist ledger",
			applog.FieldOperation, op,
			applog.FieldError, err)
		return &core.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (l *Ledger) fire(ctx context.Context, ev Event) error {
	var errs []error
	for _, h := range l.hooks {
		if err := h(ctx, ev); err != nil {
			l.logger.Warn("Ledger hook failed",
				applog.FieldEvent, string(ev.Kind),
				applog.FieldTransactionID, ev.Transaction.ID,
				applog.FieldError, err)
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &HookError{Event: ev.Kind, Err: errors.Join(errs...)}
}
