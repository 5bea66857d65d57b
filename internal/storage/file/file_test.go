package file

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
)

func sampleTxns() []core.Transaction {
	return []core.Transaction{
		{ID: "TXN001", UserID: "u1", Type: core.Income, Amount: core.MustParseMoney("10.10"),
			Category: "Salary", Date: core.NewDate(2024, 1, 5), PaymentMethod: "bank"},
		{ID: "TXN002", UserID: "u1", Type: core.Expense, Amount: core.MustParseMoney("0.01"),
			Category: "Food", Date: core.NewDate(2024, 1, 6), Description: "gum, mint", PaymentMethod: "cash"},
	}
}

func TestSaveLoadTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	want := sampleTxns()
	if err := s.SaveTransactions(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadTransactions(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d transactions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || !got[i].Amount.Equal(want[i].Amount) ||
			!got[i].Date.Equal(want[i].Date) || got[i].Description != want[i].Description {
			t.Fatalf("row %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	// Saving what was loaded must not change the document.
	before, _ := os.ReadFile(filepath.Join(dir, TransactionsFile))
	if err := s.SaveTransactions(ctx, got); err != nil {
		t.Fatalf("resave: %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(dir, TransactionsFile))
	if !bytes.Equal(before, after) {
		t.Fatalf("document changed on round trip:\n%s\n---\n%s", before, after)
	}
}

func TestSaveTransactionsWritesCSVMirror(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir, 0)
	if err := s.SaveTransactions(context.Background(), sampleTxns()); err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, TransactionsCSV))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(core.CSVHeader, ",") {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[2][3] != "0.01" || rows[2][5] != "06/01/2024" || rows[2][6] != "gum, mint" {
		t.Fatalf("unexpected row %v", rows[2])
	}
}

func TestLoadCorruptDocumentStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, TransactionsFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	s, _ := Open(dir, 0, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	got, err := s.LoadTransactions(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty collection, got %d", len(got))
	}
	if !strings.Contains(logs.String(), "corrupt stored data") {
		t.Fatalf("expected a corrupt-data warning, got %q", logs.String())
	}
}

func TestLoadMissingDocuments(t *testing.T) {
	ctx := context.Background()
	s, _ := Open(t.TempDir(), 0)

	txns, err := s.LoadTransactions(ctx)
	if err != nil || len(txns) != 0 {
		t.Fatalf("transactions: %v err=%v", txns, err)
	}
	goals, err := s.LoadGoals(ctx, "u1")
	if err != nil || len(goals) != 0 {
		t.Fatalf("goals: %v err=%v", goals, err)
	}
	rec, err := s.LoadRecurring(ctx)
	if err != nil || len(rec) != 0 {
		t.Fatalf("recurring: %v err=%v", rec, err)
	}
}

func TestGoalsArePerUser(t *testing.T) {
	ctx := context.Background()
	s, _ := Open(t.TempDir(), 0)

	if err := s.SaveGoals(ctx, "u1", []core.Goal{{Name: "bike", Target: core.MustParseMoney("100")}}); err != nil {
		t.Fatalf("save u1: %v", err)
	}
	if err := s.SaveGoals(ctx, "u2", []core.Goal{{Name: "car", Target: core.MustParseMoney("5000")}}); err != nil {
		t.Fatalf("save u2: %v", err)
	}

	g1, _ := s.LoadGoals(ctx, "u1")
	g2, _ := s.LoadGoals(ctx, "u2")
	if len(g1) != 1 || g1[0].Name != "bike" || len(g2) != 1 || g2[0].Name != "car" {
		t.Fatalf("unexpected goals u1=%+v u2=%+v", g1, g2)
	}

	if err := s.SaveGoals(ctx, "u1", nil); err != nil {
		t.Fatalf("clear u1: %v", err)
	}
	g1, _ = s.LoadGoals(ctx, "u1")
	g2, _ = s.LoadGoals(ctx, "u2")
	if len(g1) != 0 || len(g2) != 1 {
		t.Fatalf("clearing u1 affected u2: u1=%+v u2=%+v", g1, g2)
	}
}

func TestRecurringRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := Open(t.TempDir(), 0)
	entries := []core.RecurringEntry{{
		ID: "REC001", UserID: "u1", Type: core.Expense, Amount: core.MustParseMoney("9.99"),
		PaymentMethod: "card", Every: core.Monthly, Day: 31, StartDate: core.NewDate(2024, 1, 1),
	}}
	if err := s.SaveRecurring(ctx, entries); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadRecurring(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("load: %v err=%v", got, err)
	}
	if got[0].Day != 31 || !got[0].EndDate.IsZero() || !got[0].StartDate.Equal(core.NewDate(2024, 1, 1)) {
		t.Fatalf("unexpected entry %+v", got[0])
	}
}

func TestSaveCreatesTimestampedBackups(t *testing.T) {
	dir := t.TempDir()
	stamp := time.Date(2025, 10, 19, 14, 30, 45, 0, time.UTC)
	s, _ := Open(dir, 0, WithClock(func() time.Time { return stamp }))

	if err := s.SaveTransactions(context.Background(), sampleTxns()); err != nil {
		t.Fatalf("save: %v", err)
	}
	for _, name := range []string{TransactionsFile, TransactionsCSV} {
		want := filepath.Join(dir, BackupDir, name+"_20251019_143045.bak")
		if _, err := os.Stat(want); err != nil {
			t.Fatalf("expected backup %s: %v", want, err)
		}
	}
}

func TestCleanupBackupsByAge(t *testing.T) {
	dir := t.TempDir()
	backups := filepath.Join(dir, BackupDir)
	if err := os.MkdirAll(backups, 0o755); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	old := filepath.Join(backups, "transactions.json_20200101_000000.bak")
	fresh := filepath.Join(backups, "transactions.json_20991231_000000.bak")
	other := filepath.Join(backups, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := now.Add(-11 * 24 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(other, past, past); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(dir, 10*24*time.Hour); err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old backup should be removed, stat err=%v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh backup should remain: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("non-backup file should remain: %v", err)
	}
}
