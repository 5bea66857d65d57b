// Package report derives read-only views from a ledger snapshot. Every
// function is pure: it never mutates its input and never touches storage.
package report

import (
	"sort"
	"strings"

	"fintrack/internal/core"
)

// Summary is the dashboard view of one user's finances.
type Summary struct {
	core.Totals
	Count int `json:"count"`
}

// DashboardSummary totals every transaction of userID.
func DashboardSummary(snapshot []core.Transaction, userID string) Summary {
	s := Summary{Totals: core.SumTotals(snapshot, userID)}
	for _, tx := range snapshot {
		if tx.UserID == userID {
			s.Count++
		}
	}
	return s
}

// Monthly is the report for one calendar month.
type Monthly struct {
	Year         int                `json:"year"`
	Month        int                `json:"month"`
	Totals       core.Totals        `json:"totals"`
	Transactions []core.Transaction `json:"transactions"`
}

// MonthlyReport totals only userID's transactions dated in the given month.
// A month without transactions yields all-zero totals.
func MonthlyReport(snapshot []core.Transaction, userID string, year, month int) (Monthly, error) {
	if month < 1 || month > 12 {
		return Monthly{}, core.Invalid("month", core.ErrInvalidMonth)
	}
	in := make([]core.Transaction, 0)
	for _, tx := range snapshot {
		if tx.UserID == userID && tx.Date.Year() == year && tx.Date.Month() == month {
			in = append(in, tx)
		}
	}
	return Monthly{
		Year:         year,
		Month:        month,
		Totals:       core.SumTotals(in, userID),
		Transactions: in,
	}, nil
}

// CategoryBreakdown reports income and expense per category, keyed by the
// category text exactly as stored and sorted by name.
func CategoryBreakdown(snapshot []core.Transaction, userID string) []core.CategoryAmount {
	byName := map[string]*core.CategoryAmount{}
	for _, tx := range snapshot {
		if tx.UserID != userID {
			continue
		}
		ca, ok := byName[tx.Category]
		if !ok {
			ca = &core.CategoryAmount{Name: tx.Category}
			byName[tx.Category] = ca
		}
		switch tx.Type {
		case core.Income:
			ca.Income = ca.Income.Add(tx.Amount)
		case core.Expense:
			ca.Expense = ca.Expense.Add(tx.Amount)
		}
	}

	out := make([]core.CategoryAmount, 0, len(byName))
	for _, ca := range byName {
		out = append(out, *ca)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SpendingTrends sums userID's expenses per YYYY-MM month, ascending. Months
// without expenses are omitted.
func SpendingTrends(snapshot []core.Transaction, userID string) []core.MonthAmount {
	byMonth := map[string]core.Money{}
	for _, tx := range snapshot {
		if tx.UserID == userID && tx.Type == core.Expense {
			key := tx.Date.MonthKey()
			byMonth[key] = byMonth[key].Add(tx.Amount)
		}
	}

	out := make([]core.MonthAmount, 0, len(byMonth))
	for month, amount := range byMonth {
		out = append(out, core.MonthAmount{Month: month, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// LastMonths returns userID's expense totals for the n months ending with the
// month of until, oldest first. Months without expenses are zero.
func LastMonths(snapshot []core.Transaction, userID string, until core.Date, n int) []core.MonthAmount {
	if n <= 0 {
		return []core.MonthAmount{}
	}
	trends := map[string]core.Money{}
	for _, m := range SpendingTrends(snapshot, userID) {
		trends[m.Month] = m.Amount
	}

	out := make([]core.MonthAmount, n)
	for i := 0; i < n; i++ {
		// time.Date normalizes months below 1 into the previous years.
		month := core.NewDate(until.Year(), until.Month()-(n-1-i), 1)
		key := month.MonthKey()
		out[i] = core.MonthAmount{Month: key, Amount: trends[key]}
	}
	return out
}

// FilterByCategory keeps transactions whose category equals category, ignoring
// case and surrounding space.
func FilterByCategory(txns []core.Transaction, category string) []core.Transaction {
	want := strings.TrimSpace(category)
	return filter(txns, func(tx core.Transaction) bool {
		return strings.EqualFold(strings.TrimSpace(tx.Category), want)
	})
}

// FilterByDateRange keeps transactions dated within [start, end], both given
// as dd/mm/yyyy.
func FilterByDateRange(txns []core.Transaction, start, end string) ([]core.Transaction, error) {
	from, err := core.ParseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := core.ParseDate(end)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, core.Invalid("date_range", core.ErrInvalidRange)
	}
	return filter(txns, func(tx core.Transaction) bool {
		return !tx.Date.Before(from) && !tx.Date.After(to)
	}), nil
}

// FilterByAmountRange keeps transactions with min <= amount <= max.
func FilterByAmountRange(txns []core.Transaction, min, max core.Money) ([]core.Transaction, error) {
	if min.Cmp(max) > 0 {
		return nil, core.Invalid("amount_range", core.ErrInvalidRange)
	}
	return filter(txns, func(tx core.Transaction) bool {
		return tx.Amount.Cmp(min) >= 0 && tx.Amount.Cmp(max) <= 0
	}), nil
}

func filter(txns []core.Transaction, keep func(core.Transaction) bool) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, tx := range txns {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}
