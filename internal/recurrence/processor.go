package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// Adder records a transaction; *ledger.Ledger satisfies it.
type Adder interface {
	Add(ctx context.Context, tx core.Transaction, opts ...ledger.AddOption) (core.Transaction, error)
}

var recIDPattern = regexp.MustCompile(`^REC(\d+)$`)

// Processor manages recurring entries and creates the transactions that
// became due.
type Processor struct {
	store  storage.RecurringStore
	adder  Adder
	logger *slog.Logger
}

func NewProcessor(store storage.RecurringStore, adder Adder, logger *slog.Logger) *Processor {
	return &Processor{store: store, adder: adder, logger: applog.OrDefault(logger)}
}

// AddEntry validates e, assigns it the next REC ID and stores it.
func (p *Processor) AddEntry(ctx context.Context, e core.RecurringEntry) (core.RecurringEntry, error) {
	e.UserID = strings.TrimSpace(e.UserID)
	e.PaymentMethod = strings.TrimSpace(e.PaymentMethod)
	if e.Every == core.Monthly {
		e.Month = 0
	}
	if err := e.Validate(); err != nil {
		return core.RecurringEntry{}, err
	}

	entries, err := p.store.LoadRecurring(ctx)
	if err != nil {
		return core.RecurringEntry{}, &core.PersistenceError{Op: "load recurring", Err: err}
	}
	e.ID = nextRecurringID(entries)
	e.LastGenerated = core.Date{}

	if err := p.store.SaveRecurring(ctx, append(entries, e)); err != nil {
		return core.RecurringEntry{}, &core.PersistenceError{Op: "save recurring", Err: err}
	}
	p.logger.Info("Recurring entry added",
		applog.FieldRecurringID, e.ID,
		applog.FieldUserID, e.UserID)
	return e, nil
}

// Entries returns userID's recurring entries.
func (p *Processor) Entries(ctx context.Context, userID string) ([]core.RecurringEntry, error) {
	entries, err := p.store.LoadRecurring(ctx)
	if err != nil {
		return nil, &core.PersistenceError{Op: "load recurring", Err: err}
	}
	out := make([]core.RecurringEntry, 0)
	for _, e := range entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// RemoveEntry deletes userID's entry id, reporting false when there is none.
func (p *Processor) RemoveEntry(ctx context.Context, userID, id string) (bool, error) {
	entries, err := p.store.LoadRecurring(ctx)
	if err != nil {
		return false, &core.PersistenceError{Op: "load recurring", Err: err}
	}
	for i, e := range entries {
		if e.ID == id && e.UserID == userID {
			rest := append(entries[:i:i], entries[i+1:]...)
			if err := p.store.SaveRecurring(ctx, rest); err != nil {
				return false, &core.PersistenceError{Op: "save recurring", Err: err}
			}
			return true, nil
		}
	}
	return false, nil
}

// ProcessDue adds every occurrence due up to and including now's date and
// records the last generated date on each entry. It returns the number of
// transactions created. An entry whose add fails keeps the dates created so
// far and is retried on the next run.
func (p *Processor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	entries, err := p.store.LoadRecurring(ctx)
	if err != nil {
		return 0, &core.PersistenceError{Op: "load recurring", Err: err}
	}

	today := core.DateOf(now)
	created := 0
	changed := false

	for i := range entries {
		e := &entries[i]
		if err := e.Validate(); err != nil {
			p.logger.WarnContext(ctx, "Skipping invalid recurring entry",
				applog.FieldRecurringID, e.ID,
				applog.FieldError, err)
			continue
		}

		dates, err := Occurrences(*e, today)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to compute occurrences",
				applog.FieldRecurringID, e.ID,
				applog.FieldError, err)
			continue
		}

		for _, d := range dates {
			tx, err := p.adder.Add(ctx, e.Occurrence(d))
			// A hook failure still returns the committed transaction.
			if err != nil && tx.ID == "" {
				p.logger.ErrorContext(ctx, "Failed to create transaction from recurring entry",
					applog.FieldRecurringID, e.ID,
					applog.FieldDate, d.String(),
					applog.FieldError, err)
				break
			}
			e.LastGenerated = d
			changed = true
			created++
			p.logger.InfoContext(ctx, "Created transaction from recurring entry",
				applog.FieldRecurringID, e.ID,
				applog.FieldTransactionID, tx.ID,
				applog.FieldDate, d.String(),
				"frequency", string(e.Every))
		}
	}

	if changed {
		if err := p.store.SaveRecurring(ctx, entries); err != nil {
			return created, &core.PersistenceError{Op: "save recurring", Err: err}
		}
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		applog.FieldCount, created,
		"total_checked", len(entries))
	return created, nil
}

func nextRecurringID(entries []core.RecurringEntry) string {
	highest := 0
	for _, e := range entries {
		if m := recIDPattern.FindStringSubmatch(e.ID); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
				highest = n
			}
		}
	}
	return fmt.Sprintf("REC%03d", highest+1)
}
