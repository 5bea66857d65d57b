// Package memory is an in-process storage.Store, used for tests and for
// DATA_BACKEND=memory sessions that should leave nothing on disk.
package memory

import (
	"context"
	"strings"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu        sync.Mutex
	txns      []core.Transaction
	goals     map[string][]core.Goal
	recurring []core.RecurringEntry
}

func New() *Store {
	return &Store{goals: map[string][]core.Goal{}}
}

// NewWithTransactions seeds the store with txns.
func NewWithTransactions(txns []core.Transaction) *Store {
	s := New()
	s.txns = append([]core.Transaction(nil), txns...)
	return s
}

func (s *Store) LoadTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txns...), nil
}

func (s *Store) SaveTransactions(_ context.Context, txns []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns = append([]core.Transaction(nil), txns...)
	return nil
}

func (s *Store) LoadGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyGoals(s.goals[userKey(userID)]), nil
}

func (s *Store) SaveGoals(_ context.Context, userID string, goals []core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(goals) == 0 {
		delete(s.goals, userKey(userID))
		return nil
	}
	s.goals[userKey(userID)] = copyGoals(goals)
	return nil
}

func (s *Store) LoadRecurring(_ context.Context) ([]core.RecurringEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RecurringEntry(nil), s.recurring...), nil
}

func (s *Store) SaveRecurring(_ context.Context, entries []core.RecurringEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurring = append([]core.RecurringEntry(nil), entries...)
	return nil
}

func (s *Store) Close() error { return nil }

func userKey(userID string) string {
	return strings.TrimSpace(userID)
}

// copyGoals copies the contribution slices too, so callers never share
// backing arrays with the store.
func copyGoals(in []core.Goal) []core.Goal {
	if in == nil {
		return nil
	}
	out := make([]core.Goal, len(in))
	for i, g := range in {
		g.Contributions = append([]string(nil), g.Contributions...)
		out[i] = g
	}
	return out
}
