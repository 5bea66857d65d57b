package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/goals"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

type stubSheets struct {
	user string
	n    int
}

func (s *stubSheets) Export(_ context.Context, userID string, txns []core.Transaction) (int, error) {
	s.user = userID
	for _, tx := range txns {
		if tx.UserID == userID {
			s.n++
		}
	}
	return s.n, nil
}

func newRunner(t *testing.T) (*runner, *bytes.Buffer, *stubSheets) {
	t.Helper()
	svc, err := services.NewFinanceService(context.Background(), services.Deps{Store: memory.New()})
	if err != nil {
		t.Fatalf("NewFinanceService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	out := &bytes.Buffer{}
	sheets := &stubSheets{}
	return &runner{
		svc: svc,
		out: out,
		now: func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
		sheets: func(context.Context) (sheetExporter, error) {
			return sheets, nil
		},
	}, out, sheets
}

func mustRun(t *testing.T, r *runner, args ...string) {
	t.Helper()
	if err := r.run(context.Background(), args); err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
}

func TestRun_Usage(t *testing.T) {
	r, _, _ := newRunner(t)

	tests := [][]string{
		nil,
		{"bogus"},
		{"add", "-type", "income"},
		{"goal"},
		{"recurring", "nope"},
		{"list", "-user", "u1", "-unknown"},
	}
	for _, args := range tests {
		if err := r.run(context.Background(), args); !errors.Is(err, errUsage) {
			t.Errorf("run %v: expected usage error, got %v", args, err)
		}
	}
}

func TestRun_AddListSummary(t *testing.T) {
	r, out, _ := newRunner(t)

	mustRun(t, r, "add", "-user", "u1", "-type", "income", "-amount", "1000", "-category", "Salary", "-date", "01/03/2024", "-payment", "Bank")
	mustRun(t, r, "add", "-user", "u1", "-type", "expense", "-amount", "12,50", "-category", "Food", "-payment", "Card")
	if !strings.Contains(out.String(), "added TXN001") || !strings.Contains(out.String(), "added TXN002") {
		t.Fatalf("unexpected add output:\n%s", out)
	}

	txns := r.svc.Transactions("u1")
	if got := txns[1].Date.String(); got != "15/03/2024" {
		t.Errorf("default date = %s, want today 15/03/2024", got)
	}

	out.Reset()
	mustRun(t, r, "summary", "-user", "u1")
	for _, want := range []string{"Income:  1000.00", "Expense: 12.50", "Balance: 987.50", "Transactions: 2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	out.Reset()
	mustRun(t, r, "list", "-user", "u1", "-sort", "amount", "-order", "asc")
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "TXN002") {
		t.Fatalf("unexpected sorted list:\n%s", out)
	}

	out.Reset()
	mustRun(t, r, "list", "-user", "u1", "-category", "food", "-min", "10", "-from", "01/03/2024", "-to", "31/03/2024")
	if !strings.Contains(out.String(), "TXN002") || strings.Contains(out.String(), "TXN001") {
		t.Fatalf("unexpected filtered list:\n%s", out)
	}

	out.Reset()
	mustRun(t, r, "list", "-user", "u1", "-from", "15/03/2024")
	if !strings.Contains(out.String(), "TXN002") || strings.Contains(out.String(), "TXN001") {
		t.Fatalf("unexpected list with only -from:\n%s", out)
	}

	out.Reset()
	mustRun(t, r, "list", "-user", "u1", "-to", "01/03/2024")
	if !strings.Contains(out.String(), "TXN001") || strings.Contains(out.String(), "TXN002") {
		t.Fatalf("unexpected list with only -to:\n%s", out)
	}

	if err := r.run(context.Background(), []string{"list", "-user", "u1", "-from", "bogus"}); !core.IsValidation(err) {
		t.Fatalf("expected validation error for bad -from, got %v", err)
	}
	if err := r.run(context.Background(), []string{"list", "-user", "u1", "-from", "31/03/2024", "-to", "01/03/2024"}); !core.IsValidation(err) {
		t.Fatalf("expected validation error for reversed range, got %v", err)
	}
}

func TestRun_AddRejectsInvalidInput(t *testing.T) {
	r, _, _ := newRunner(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad type", []string{"add", "-user", "u1", "-type", "gift", "-amount", "1", "-payment", "Cash"}},
		{"zero amount", []string{"add", "-user", "u1", "-type", "income", "-amount", "0", "-payment", "Cash"}},
		{"bad date", []string{"add", "-user", "u1", "-type", "income", "-amount", "1", "-date", "2024-01-01", "-payment", "Cash"}},
		{"no payment", []string{"add", "-user", "u1", "-type", "income", "-amount", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.run(context.Background(), tt.args); !core.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if n := len(r.svc.Snapshot()); n != 0 {
		t.Fatalf("invalid input must not be recorded, ledger has %d", n)
	}
}

func TestRun_UpdateDelete(t *testing.T) {
	r, out, _ := newRunner(t)
	mustRun(t, r, "add", "-user", "u1", "-type", "expense", "-amount", "5", "-category", "Food", "-payment", "Cash")

	mustRun(t, r, "update", "-user", "u1", "-id", "TXN001", "-amount", "7.25", "-desc", "coffee")
	tx := r.svc.Transactions("u1")[0]
	if tx.Amount.String() != "7.25" || tx.Description != "coffee" || tx.Category != "Food" {
		t.Fatalf("unexpected transaction after update %+v", tx)
	}

	if err := r.run(context.Background(), []string{"update", "-user", "u2", "-id", "TXN001", "-desc", "x"}); err == nil {
		t.Fatalf("update of another user's transaction should fail")
	}
	if err := r.run(context.Background(), []string{"delete", "-user", "u1", "-id", "TXN999"}); err == nil {
		t.Fatalf("delete of missing transaction should fail")
	}

	out.Reset()
	mustRun(t, r, "delete", "-user", "u1", "-id", "TXN001")
	if strings.TrimSpace(out.String()) != "deleted TXN001" {
		t.Fatalf("unexpected delete output %q", out)
	}
}

func TestRun_GoalsAndSavings(t *testing.T) {
	r, out, _ := newRunner(t)
	mustRun(t, r, "goal", "set", "-user", "u1", "-name", "Car", "-target", "100")

	err := r.run(context.Background(), []string{"add", "-user", "u1", "-type", "expense", "-amount", "60", "-category", "savings", "-payment", "Bank"})
	if !errors.Is(err, goals.ErrGoalSelectionRequired) || !strings.Contains(err.Error(), "Car") {
		t.Fatalf("expected goal selection error naming Car, got %v", err)
	}

	mustRun(t, r, "add", "-user", "u1", "-type", "expense", "-amount", "60", "-category", "savings", "-payment", "Bank", "-goal", "car")
	out.Reset()
	mustRun(t, r, "goal", "list", "-user", "u1")
	if !strings.Contains(out.String(), "60.00") || !strings.Contains(out.String(), "40.00") {
		t.Fatalf("unexpected goal list:\n%s", out)
	}

	mustRun(t, r, "add", "-user", "u1", "-type", "expense", "-amount", "50", "-category", "Savings", "-payment", "Bank", "-goal", "Car")
	out.Reset()
	mustRun(t, r, "goal", "list", "-user", "u1")
	if strings.Contains(out.String(), "Car") {
		t.Fatalf("completed goal should no longer be listed:\n%s", out)
	}
}

func TestRun_Reports(t *testing.T) {
	r, out, _ := newRunner(t)
	mustRun(t, r, "add", "-user", "u1", "-type", "expense", "-amount", "30", "-category", "Food", "-date", "10/01/2024", "-payment", "Cash")
	mustRun(t, r, "add", "-user", "u1", "-type", "expense", "-amount", "20", "-category", "Rent", "-date", "05/03/2024", "-payment", "Bank")

	out.Reset()
	mustRun(t, r, "monthly", "-user", "u1", "-year", "2024", "-month", "1")
	if !strings.Contains(out.String(), "Report for 2024-01") || !strings.Contains(out.String(), "Expense: 30.00") {
		t.Fatalf("unexpected monthly report:\n%s", out)
	}

	out.Reset()
	mustRun(t, r, "categories", "-user", "u1")
	if !strings.Contains(out.String(), "Food") || !strings.Contains(out.String(), "Rent") {
		t.Fatalf("unexpected categories:\n%s", out)
	}

	out.Reset()
	mustRun(t, r, "trends", "-user", "u1")
	if !strings.Contains(out.String(), "2024-01") || !strings.Contains(out.String(), "2024-03") {
		t.Fatalf("unexpected trends:\n%s", out)
	}

	out.Reset()
	mustRun(t, r, "last-months", "-user", "u1", "-n", "3")
	got := out.String()
	for _, want := range []string{"2024-01  30.00", "2024-02  0.00", "2024-03  20.00"} {
		if !strings.Contains(got, want) {
			t.Errorf("last-months missing %q:\n%s", want, got)
		}
	}

	if err := r.run(context.Background(), []string{"monthly", "-user", "u1", "-month", "13"}); !core.IsValidation(err) {
		t.Fatalf("expected validation error for month 13, got %v", err)
	}
}

func TestRun_Recurring(t *testing.T) {
	r, out, _ := newRunner(t)
	mustRun(t, r, "recurring", "add", "-user", "u1", "-type", "expense", "-amount", "800", "-category", "Rent",
		"-payment", "Bank", "-every", "monthly", "-day", "1", "-start", "01/01/2024")

	out.Reset()
	mustRun(t, r, "recurring", "run")
	if strings.TrimSpace(out.String()) != "created 3 transactions" {
		t.Fatalf("unexpected run output %q", out)
	}

	out.Reset()
	mustRun(t, r, "recurring", "list", "-user", "u1")
	if !strings.Contains(out.String(), "REC001") || !strings.Contains(out.String(), "01/03/2024") {
		t.Fatalf("unexpected recurring list:\n%s", out)
	}

	mustRun(t, r, "recurring", "remove", "-user", "u1", "-id", "REC001")
	if err := r.run(context.Background(), []string{"recurring", "remove", "-user", "u1", "-id", "REC001"}); err == nil {
		t.Fatalf("removing a missing entry should fail")
	}
}

func TestRun_ExportImport(t *testing.T) {
	r, out, sheets := newRunner(t)
	mustRun(t, r, "add", "-user", "u1", "-type", "income", "-amount", "10", "-category", "Gift", "-date", "02/02/2024", "-payment", "Cash")

	path := filepath.Join(t.TempDir(), "export.csv")
	mustRun(t, r, "export", "-user", "u1", "-out", path)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "transaction_id,user_id,type,amount,category,date,description,payment_method") {
		t.Fatalf("unexpected export:\n%s", data)
	}

	out.Reset()
	mustRun(t, r, "import", "-user", "u2", "-file", path)
	if !strings.Contains(out.String(), "imported 1 transactions, 0 duplicates skipped, 0 rows rejected") {
		t.Fatalf("unexpected import output %q", out)
	}
	if got := r.svc.Transactions("u2"); len(got) != 1 || got[0].ID != "TXN002" {
		t.Fatalf("unexpected imported transactions %+v", got)
	}

	mustRun(t, r, "export", "-user", "u1", "-sheets")
	if sheets.user != "u1" || sheets.n != 1 {
		t.Fatalf("unexpected sheets export user=%s n=%d", sheets.user, sheets.n)
	}
}
