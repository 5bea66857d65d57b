// Package goals tracks savings goals per user.
//
// A goal's saved amount is recomputed from history: it is the sum of the
// goal's contributing transactions that are still in the ledger and still
// savings expenses of the goal's owner. Editing or deleting a contribution
// therefore corrects the goal. A goal whose saved amount reaches a positive
// target is completed and removed.
package goals

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

var (
	ErrGoalNotFound = errors.New("goal not found")
	// ErrGoalSelectionRequired is returned when a savings expense is recorded
	// for a user with active goals but no goal was chosen.
	ErrGoalSelectionRequired = errors.New("a goal must be selected for savings contributions")
)

// Progress is a goal together with its derived figures.
type Progress struct {
	Goal      core.Goal       `json:"goal"`
	Remaining core.Money      `json:"remaining"`
	Pct       decimal.Decimal `json:"progress_pct"`
	Completed bool            `json:"completed"`
}

func progressOf(g core.Goal) Progress {
	return Progress{
		Goal:      g,
		Remaining: g.Remaining(),
		Pct:       g.ProgressPct(),
		Completed: g.Complete(),
	}
}

type Tracker struct {
	store  storage.GoalStore
	logger *slog.Logger
}

func NewTracker(store storage.GoalStore, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, logger: applog.OrDefault(logger)}
}

// CreateOrUpdate sets the target of userID's goal called name, matching names
// case-insensitively, or creates it with nothing saved. If the recomputed
// saved amount already meets a new positive target the goal is completed and
// removed.
func (t *Tracker) CreateOrUpdate(ctx context.Context, userID, name string, target core.Money, snapshot []core.Transaction) (Progress, error) {
	g := core.Goal{Name: strings.TrimSpace(name), Target: target}
	if err := g.Validate(); err != nil {
		return Progress{}, err
	}

	goals, err := t.load(ctx, userID)
	if err != nil {
		return Progress{}, err
	}

	i := find(goals, g.Name)
	if i >= 0 {
		goals[i].Target = target
	} else {
		goals = append(goals, g)
		i = len(goals) - 1
	}
	goals[i].Saved = savedFrom(goals[i], userID, snapshot)

	p := progressOf(goals[i])
	if p.Completed {
		goals = slices.Delete(goals, i, i+1)
		t.logger.InfoContext(ctx, "Goal completed",
			applog.FieldUserID, userID,
			applog.FieldGoal, p.Goal.Name)
	}
	if err := t.save(ctx, userID, goals); err != nil {
		return Progress{}, err
	}
	return p, nil
}

// Contribute attributes txn to userID's goal goalName and recomputes the
// goal's saved amount from snapshot, which must already contain txn.
func (t *Tracker) Contribute(ctx context.Context, userID, goalName string, txn core.Transaction, snapshot []core.Transaction) (Progress, error) {
	goals, err := t.load(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	i := find(goals, goalName)
	if i < 0 {
		return Progress{}, ErrGoalNotFound
	}

	// A transaction counts towards one goal only.
	for j := range goals {
		goals[j].Contributions = slices.DeleteFunc(goals[j].Contributions, func(id string) bool { return id == txn.ID })
	}
	goals[i].Contributions = append(goals[i].Contributions, txn.ID)
	goals[i].Saved = savedFrom(goals[i], userID, snapshot)

	p := progressOf(goals[i])
	goals = t.settle(ctx, userID, goals, snapshot)
	if err := t.save(ctx, userID, goals); err != nil {
		return Progress{}, err
	}

	t.logger.InfoContext(ctx, "Goal contribution recorded",
		applog.FieldUserID, userID,
		applog.FieldGoal, p.Goal.Name,
		applog.FieldTransactionID, txn.ID,
		"saved", p.Goal.Saved.String(),
		"completed", p.Completed)
	return p, nil
}

// Active returns userID's goals that are not complete, with saved amounts
// recomputed from snapshot.
func (t *Tracker) Active(ctx context.Context, userID string, snapshot []core.Transaction) ([]Progress, error) {
	goals, err := t.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Progress, 0, len(goals))
	for _, g := range goals {
		g.Saved = savedFrom(g, userID, snapshot)
		if p := progressOf(g); !p.Completed {
			out = append(out, p)
		}
	}
	return out, nil
}

// RequireSelection checks a goal choice before a savings expense is added:
// goalName must name an active goal, and may only be empty when userID has
// no active goals. Saved amounts are recomputed from snapshot.
func (t *Tracker) RequireSelection(ctx context.Context, userID, goalName string, snapshot []core.Transaction) error {
	active, err := t.Active(ctx, userID, snapshot)
	if err != nil {
		return err
	}
	if strings.TrimSpace(goalName) == "" {
		if len(active) > 0 {
			return ErrGoalSelectionRequired
		}
		return nil
	}
	for _, p := range active {
		if strings.EqualFold(p.Goal.Name, strings.TrimSpace(goalName)) {
			return nil
		}
	}
	return ErrGoalNotFound
}

// Hook keeps goals in step with the ledger: a savings expense added with a
// goal selection becomes a contribution, an edited contribution is
// re-settled, and a deleted transaction stops counting. snapshot reads the
// ledger after the mutation.
func (t *Tracker) Hook(snapshot func() []core.Transaction) ledger.Hook {
	return func(ctx context.Context, ev ledger.Event) error {
		switch ev.Kind {
		case ledger.TransactionAdded:
			if ev.Goal == "" || !ev.Transaction.IsSavingsContribution() {
				return nil
			}
			_, err := t.Contribute(ctx, ev.Transaction.UserID, ev.Goal, ev.Transaction, snapshot())
			return err
		case ledger.TransactionUpdated:
			return t.resettle(ctx, ev.Transaction.UserID, ev.Transaction.ID, snapshot())
		case ledger.TransactionDeleted:
			return t.detach(ctx, ev.Transaction.UserID, ev.Transaction.ID)
		}
		return nil
	}
}

// resettle recomputes userID's goals after the transaction id changed and
// removes those it completed. Goals that do not list id are left alone.
func (t *Tracker) resettle(ctx context.Context, userID, id string, snapshot []core.Transaction) error {
	goals, err := t.load(ctx, userID)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(goals, func(g core.Goal) bool { return slices.Contains(g.Contributions, id) }) {
		return nil
	}
	return t.save(ctx, userID, t.settle(ctx, userID, goals, snapshot))
}

// settle recomputes every goal's saved amount from snapshot and drops the
// completed ones.
func (t *Tracker) settle(ctx context.Context, userID string, goals []core.Goal, snapshot []core.Transaction) []core.Goal {
	for i := range goals {
		goals[i].Saved = savedFrom(goals[i], userID, snapshot)
	}
	return slices.DeleteFunc(goals, func(g core.Goal) bool {
		if !g.Complete() {
			return false
		}
		t.logger.InfoContext(ctx, "Goal completed",
			applog.FieldUserID, userID,
			applog.FieldGoal, g.Name)
		return true
	})
}

// detach removes id from every goal of userID, so a later transaction that
// reuses the ID is not counted.
func (t *Tracker) detach(ctx context.Context, userID, id string) error {
	goals, err := t.load(ctx, userID)
	if err != nil {
		return err
	}
	changed := false
	for i := range goals {
		before := len(goals[i].Contributions)
		goals[i].Contributions = slices.DeleteFunc(goals[i].Contributions, func(c string) bool { return c == id })
		changed = changed || len(goals[i].Contributions) != before
	}
	if !changed {
		return nil
	}
	return t.save(ctx, userID, goals)
}

func (t *Tracker) load(ctx context.Context, userID string) ([]core.Goal, error) {
	goals, err := t.store.LoadGoals(ctx, userID)
	if err != nil {
		return nil, &core.PersistenceError{Op: "load goals", Err: err}
	}
	return goals, nil
}

func (t *Tracker) save(ctx context.Context, userID string, goals []core.Goal) error {
	if err := t.store.SaveGoals(ctx, userID, goals); err != nil {
		t.logger.ErrorContext(ctx, "Failed to save goals",
			applog.FieldUserID, userID,
			applog.FieldError, err)
		return &core.PersistenceError{Op: "save goals", Err: err}
	}
	return nil
}

func find(goals []core.Goal, name string) int {
	name = strings.TrimSpace(name)
	for i, g := range goals {
		if strings.EqualFold(g.Name, name) {
			return i
		}
	}
	return -1
}

// savedFrom sums the goal's contributions that are still savings expenses of
// userID in snapshot.
func savedFrom(g core.Goal, userID string, snapshot []core.Transaction) core.Money {
	var saved core.Money
	for _, tx := range snapshot {
		if tx.UserID == userID && tx.IsSavingsContribution() && slices.Contains(g.Contributions, tx.ID) {
			saved = saved.Add(tx.Amount)
		}
	}
	return saved
}
