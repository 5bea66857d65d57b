package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"

	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"

	// SavingsCategory marks expenses that contribute to a savings goal.
	SavingsCategory = "savings"
)

type (
	TxType string

	Frequency string

	Transaction struct {
		ID            string `json:"transaction_id"`
		UserID        string `json:"user_id"`
		Type          TxType `json:"type"`
		Amount        Money  `json:"amount"`
		Category      string `json:"category"`
		Date          Date   `json:"date"`
		Description   string `json:"description"`
		PaymentMethod string `json:"payment_method"`
	}

	// TransactionPatch is a partial update; nil fields are left unchanged.
	TransactionPatch struct {
		Type          *TxType
		Amount        *Money
		Category      *string
		Date          *Date
		Description   *string
		PaymentMethod *string
	}

	Goal struct {
		Name   string `json:"name"`
		Target Money  `json:"target"`
		Saved  Money  `json:"saved"`
		// Contributions lists the transaction IDs attributed to this goal.
		Contributions []string `json:"contributions,omitempty"`
	}

	RecurringEntry struct {
		ID            string    `json:"id"`
		UserID        string    `json:"user_id"`
		Type          TxType    `json:"type"`
		Amount        Money     `json:"amount"`
		Category      string    `json:"category"`
		Description   string    `json:"description"`
		PaymentMethod string    `json:"payment_method"`
		Every         Frequency `json:"every"`
		Day           int       `json:"day"`
		Month         int       `json:"month,omitempty"` // yearly only
		StartDate     Date      `json:"start_date"`
		EndDate       Date      `json:"end_date"`
		LastGenerated Date      `json:"last_generated"`
	}
)

// ParseTxType accepts "income" or "expense" in any case.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", Invalid("type", ErrInvalidType)
	}
	return t, nil
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// ParseFrequency accepts "monthly" or "yearly" in any case.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if f != Monthly && f != Yearly {
		return "", Invalid("every", ErrInvalidFrequency)
	}
	return f, nil
}

// IsSavingsContribution reports whether t is a savings-category expense.
func (t Transaction) IsSavingsContribution() bool {
	return t.Type == Expense && strings.EqualFold(strings.TrimSpace(t.Category), SavingsCategory)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return Invalid("user_id", ErrEmptyUser)
	}
	if !t.Type.Valid() {
		return Invalid("type", ErrInvalidType)
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.PaymentMethod) == "" {
		return Invalid("payment_method", ErrEmptyPaymentMethod)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Type == nil && p.Amount == nil && p.Category == nil &&
		p.Date == nil && p.Description == nil && p.PaymentMethod == nil
}

// Apply returns t with the patch applied. The ID and owner never change.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.PaymentMethod != nil {
		t.PaymentMethod = *p.PaymentMethod
	}
	return t
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return Invalid("name", ErrEmptyGoalName)
	}
	if g.Target.IsNegative() {
		return Invalid("target", ErrInvalidTarget)
	}
	return nil
}

// Remaining is max(0, target - saved).
func (g Goal) Remaining() Money {
	return g.Target.Sub(g.Saved).NonNegative()
}

// ProgressPct is 0 for a non-positive target, else min(100, saved/target*100),
// rounded to two decimal places.
func (g Goal) ProgressPct() decimal.Decimal {
	if !g.Target.IsPositive() {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	pct := g.Saved.Decimal().Mul(hundred).DivRound(g.Target.Decimal(), 2)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// Complete reports saved >= target > 0.
func (g Goal) Complete() bool {
	return g.Target.IsPositive() && g.Saved.Cmp(g.Target) >= 0
}

func (re RecurringEntry) Validate() error {
	if strings.TrimSpace(re.UserID) == "" {
		return Invalid("user_id", ErrEmptyUser)
	}
	if !re.Type.Valid() {
		return Invalid("type", ErrInvalidType)
	}
	if err := re.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(re.PaymentMethod) == "" {
		return Invalid("payment_method", ErrEmptyPaymentMethod)
	}
	if err := re.StartDate.Validate(); err != nil {
		return Invalid("start_date", ErrInvalidDate)
	}
	if !re.EndDate.IsZero() && re.EndDate.Before(re.StartDate) {
		return Invalid("end_date", ErrInvalidRange)
	}
	if re.Day < 1 || re.Day > 31 {
		return Invalid("day", ErrInvalidDay)
	}
	switch re.Every {
	case Monthly:
	case Yearly:
		if re.Month < 1 || re.Month > 12 {
			return Invalid("month", ErrInvalidMonth)
		}
	default:
		return Invalid("every", ErrInvalidFrequency)
	}
	return nil
}

// Occurrence builds the transaction this entry produces on date d.
func (re RecurringEntry) Occurrence(d Date) Transaction {
	return Transaction{
		UserID:        re.UserID,
		Type:          re.Type,
		Amount:        re.Amount,
		Category:      re.Category,
		Date:          d,
		Description:   re.Description,
		PaymentMethod: re.PaymentMethod,
	}
}
