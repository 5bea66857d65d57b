package core

// Totals is the income/expense/balance triple shared by the ledger and reports.
type Totals struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// SumTotals sums the amounts of userID's transactions by type.
// Balance is always Income - Expense.
func SumTotals(txns []Transaction, userID string) Totals {
	var t Totals
	for _, tx := range txns {
		if tx.UserID != userID {
			continue
		}
		switch tx.Type {
		case Income:
			t.Income = t.Income.Add(tx.Amount)
		case Expense:
			t.Expense = t.Expense.Add(tx.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// CategoryAmount represents income and expense aggregated by category name.
type CategoryAmount struct {
	Name    string `json:"name"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
}

// MonthAmount is an amount keyed by a "YYYY-MM" month.
type MonthAmount struct {
	Month  string `json:"month"`
	Amount Money  `json:"amount"`
}
