package report

import (
	"sort"
	"strings"

	"fintrack/internal/core"
)

type SortKey string

const (
	ByDate   SortKey = "date"
	ByAmount SortKey = "amount"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseSortKey accepts "date" or "amount" in any case.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case ByDate, ByAmount:
		return k, nil
	}
	return "", core.Invalid("sort_key", core.ErrInvalidRange)
}

// ParseDirection accepts "asc" or "desc" in any case; empty means asc.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Asc, nil
	case Asc, Desc:
		return d, nil
	}
	return "", core.Invalid("direction", core.ErrInvalidRange)
}

// Sort returns a copy of txns ordered by key. The sort is stable, so equal
// keys keep their input order in both directions.
func Sort(txns []core.Transaction, key SortKey, dir Direction) []core.Transaction {
	out := append([]core.Transaction(nil), txns...)

	var cmp func(a, b core.Transaction) int
	switch key {
	case ByAmount:
		cmp = func(a, b core.Transaction) int { return a.Amount.Cmp(b.Amount) }
	default:
		cmp = func(a, b core.Transaction) int { return a.Date.Compare(b.Date.Time) }
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}
