// Package services orchestrates the ledger, goal tracking, recurring entries
// and event publishing for the command-line tools.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/goals"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/recurrence"
	"fintrack/internal/storage"
	"fintrack/internal/transfer"
)

// Deps are the collaborators of a FinanceService. Events may be nil.
type Deps struct {
	Store  storage.Store
	Events amqp.EventPublisher
	Logger *applog.Logger
}

type FinanceService struct {
	store     storage.Store
	events    amqp.EventPublisher
	ledger    *ledger.Ledger
	goals     *goals.Tracker
	recurring *recurrence.Processor
	logger    *applog.Logger
}

// NewFinanceService loads the ledger and wires the goal tracker and, when
// configured, the event publisher as post-commit hooks.
func NewFinanceService(ctx context.Context, deps Deps) (*FinanceService, error) {
	logger := applog.OrNew(deps.Logger)

	l, err := ledger.Open(ctx, deps.Store, logger.WithComponent(applog.ComponentLedger).Logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	tracker := goals.NewTracker(deps.Store, logger.WithComponent(applog.ComponentGoals).Logger)
	l.OnChange(tracker.Hook(l.Snapshot))
	if deps.Events != nil {
		l.OnChange(amqp.Hook(deps.Events, logger.WithComponent(applog.ComponentAMQP).Logger))
	}

	return &FinanceService{
		store:     deps.Store,
		events:    deps.Events,
		ledger:    l,
		goals:     tracker,
		recurring: recurrence.NewProcessor(deps.Store, l, logger.WithComponent(applog.ComponentRecurring).Logger),
		logger:    logger,
	}, nil
}

// AddTransaction records tx for its user. A savings expense needs goal to
// name one of the user's active goals whenever the user has any.
func (s *FinanceService) AddTransaction(ctx context.Context, tx core.Transaction, goal string) (core.Transaction, error) {
	if tx.IsSavingsContribution() {
		if err := s.goals.RequireSelection(ctx, tx.UserID, goal, s.ledger.Snapshot()); err != nil {
			return core.Transaction{}, err
		}
	} else {
		goal = ""
	}
	return s.ledger.Add(ctx, tx, ledger.WithGoal(goal))
}

// UpdateTransaction patches userID's transaction id. Transactions of other
// users are reported as absent.
func (s *FinanceService) UpdateTransaction(ctx context.Context, userID, id string, patch core.TransactionPatch) (bool, error) {
	if !s.owns(userID, id) {
		return false, nil
	}
	return s.ledger.Update(ctx, id, patch)
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, userID, id string) (bool, error) {
	if !s.owns(userID, id) {
		return false, nil
	}
	return s.ledger.Delete(ctx, id)
}

func (s *FinanceService) owns(userID, id string) bool {
	tx, ok := s.ledger.Get(id)
	return ok && tx.UserID == userID
}

func (s *FinanceService) Transactions(userID string) []core.Transaction {
	return s.ledger.ListForUser(userID)
}

func (s *FinanceService) Totals(userID string) core.Totals {
	return s.ledger.ComputeTotals(userID)
}

// Snapshot is a copy of every user's transactions, for reports.
func (s *FinanceService) Snapshot() []core.Transaction {
	return s.ledger.Snapshot()
}

func (s *FinanceService) SetGoal(ctx context.Context, userID, name string, target core.Money) (goals.Progress, error) {
	return s.goals.CreateOrUpdate(ctx, userID, name, target, s.ledger.Snapshot())
}

func (s *FinanceService) Goals(ctx context.Context, userID string) ([]goals.Progress, error) {
	return s.goals.Active(ctx, userID, s.ledger.Snapshot())
}

func (s *FinanceService) AddRecurring(ctx context.Context, e core.RecurringEntry) (core.RecurringEntry, error) {
	return s.recurring.AddEntry(ctx, e)
}

func (s *FinanceService) RecurringEntries(ctx context.Context, userID string) ([]core.RecurringEntry, error) {
	return s.recurring.Entries(ctx, userID)
}

func (s *FinanceService) RemoveRecurring(ctx context.Context, userID, id string) (bool, error) {
	return s.recurring.RemoveEntry(ctx, userID, id)
}

// ProcessRecurring creates the transactions of every recurring entry due by now.
func (s *FinanceService) ProcessRecurring(ctx context.Context, now time.Time) (int, error) {
	return s.recurring.ProcessDue(ctx, now)
}

func (s *FinanceService) ExportCSV(w io.Writer, userID string) (int, error) {
	return transfer.ExportCSV(w, userID, s.ledger.Snapshot())
}

func (s *FinanceService) ImportCSV(ctx context.Context, r io.Reader, userID string) (transfer.ImportResult, error) {
	return transfer.ImportCSV(ctx, r, userID, s.ledger, s.logger.WithComponent(applog.ComponentTransfer).Logger)
}

// Close releases the store and the event publisher.
func (s *FinanceService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.events.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
