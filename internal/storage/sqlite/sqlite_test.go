package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"fintrack/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "fintrack.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTransactionsRoundTripPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	want := []core.Transaction{
		{ID: "TXN002", UserID: "u1", Type: core.Expense, Amount: core.MustParseMoney("0.01"),
			Category: "Food", Date: core.NewDate(2024, 2, 29), PaymentMethod: "cash"},
		{ID: "TXN001", UserID: "u1", Type: core.Income, Amount: core.MustParseMoney("10.10"),
			Category: "Salary", Date: core.NewDate(2024, 1, 5), Description: "jan", PaymentMethod: "bank"},
	}
	if err := s.SaveTransactions(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadTransactions(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].ID != "TXN002" || got[1].ID != "TXN001" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got[1].Amount.Equal(core.MustParseMoney("10.1")) || !got[0].Date.Equal(core.NewDate(2024, 2, 29)) {
		t.Fatalf("values changed: %+v", got)
	}

	// Full replace: saving a shorter list drops the missing rows.
	if err := s.SaveTransactions(ctx, want[:1]); err != nil {
		t.Fatalf("save shorter: %v", err)
	}
	got, _ = s.LoadTransactions(ctx)
	if len(got) != 1 {
		t.Fatalf("expected 1 row after replace, got %d", len(got))
	}
}

func TestSaveTransactionsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := []core.Transaction{{ID: "TXN001", UserID: "u1", Type: core.Income,
		Amount: core.MustParseMoney("1"), Date: core.NewDate(2024, 1, 1), PaymentMethod: "cash"}}
	if err := s.SaveTransactions(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Duplicate IDs violate the unique constraint and abort the whole save.
	dup := append(first, first[0])
	if err := s.SaveTransactions(ctx, dup); err == nil {
		t.Fatal("expected constraint error")
	}
	got, _ := s.LoadTransactions(ctx)
	if len(got) != 1 {
		t.Fatalf("failed save must leave previous data, got %d rows", len(got))
	}
}

func TestGoalsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	goals := []core.Goal{
		{Name: "bike", Target: core.MustParseMoney("100"), Saved: core.MustParseMoney("60"), Contributions: []string{"TXN001"}},
		{Name: "trip", Target: core.MustParseMoney("0")},
	}
	if err := s.SaveGoals(ctx, "u1", goals); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadGoals(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].Name != "bike" || len(got[0].Contributions) != 1 || len(got[1].Contributions) != 0 {
		t.Fatalf("unexpected goals: %+v", got)
	}
	other, _ := s.LoadGoals(ctx, "u2")
	if len(other) != 0 {
		t.Fatalf("goals leaked to u2: %+v", other)
	}
}

func TestRecurringRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	entries := []core.RecurringEntry{{
		ID: "REC001", UserID: "u1", Type: core.Expense, Amount: core.MustParseMoney("12.5"),
		Category: "Rent", PaymentMethod: "bank", Every: core.Yearly, Day: 29, Month: 2,
		StartDate: core.NewDate(2024, 1, 1), LastGenerated: core.NewDate(2024, 2, 29),
	}}
	if err := s.SaveRecurring(ctx, entries); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadRecurring(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("load: %+v err=%v", got, err)
	}
	e := got[0]
	if e.Every != core.Yearly || e.Month != 2 || !e.EndDate.IsZero() || !e.LastGenerated.Equal(core.NewDate(2024, 2, 29)) {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestInMemoryDatabaseIsMigrated(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	txns := []core.Transaction{{ID: "TXN001", UserID: "u1", Type: core.Income,
		Amount: core.MustParseMoney("3"), Date: core.NewDate(2024, 1, 1), PaymentMethod: "cash"}}
	if err := s.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadTransactions(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "TXN001" {
		t.Fatalf("unexpected transactions %+v", got)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fintrack.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	txns := []core.Transaction{{ID: "TXN001", UserID: "u1", Type: core.Income,
		Amount: core.MustParseMoney("5"), Date: core.NewDate(2024, 3, 1), PaymentMethod: "cash"}}
	if err := s.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	s, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, _ := s.LoadTransactions(ctx)
	if len(got) != 1 {
		t.Fatalf("expected data after reopen, got %d", len(got))
	}
}
