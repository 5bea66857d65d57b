// Package recurrence computes the dates of recurring entries and materializes
// the due ones into the ledger.
//
// Each frequency has its own Schedule; the registry maps a core.Frequency to
// the schedule that knows how to step it.
package recurrence

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Schedule steps a recurring entry to its next occurrence.
type Schedule interface {
	// Next returns the first occurrence of e strictly after after.
	Next(after core.Date, e core.RecurringEntry) core.Date
}

type MonthlySchedule struct{}

func (MonthlySchedule) Next(after core.Date, e core.RecurringEntry) core.Date {
	return NextMonthly(after, e.Day)
}

type YearlySchedule struct{}

func (YearlySchedule) Next(after core.Date, e core.RecurringEntry) core.Date {
	return NextYearly(after, e.Day, e.Month)
}

var schedules = map[core.Frequency]Schedule{
	core.Monthly: MonthlySchedule{},
	core.Yearly:  YearlySchedule{},
}

// GetSchedule returns the schedule for a frequency.
func GetSchedule(f core.Frequency) (Schedule, error) {
	s, ok := schedules[f]
	if !ok {
		return nil, fmt.Errorf("unknown repetition type: %s", f)
	}
	return s, nil
}

// NextMonthly returns the first date strictly after after that falls on day,
// clamped to the last day of its month. A 31st target yields the 30th in
// 30-day months and the 28th or 29th in February.
//
//	NextMonthly(31/01/2024, 31) -> 29/02/2024
//	NextMonthly(29/02/2024, 31) -> 31/03/2024
//	NextMonthly(10/01/2024, 15) -> 15/01/2024
func NextMonthly(after core.Date, day int) core.Date {
	candidate := clamped(after.Year(), after.Month(), day)
	if candidate.After(after) {
		return candidate
	}
	return clamped(after.Year(), after.Month()+1, day)
}

// NextYearly returns the first date strictly after after that falls on
// (month, day), with the day clamped as in NextMonthly. A 29 February target
// becomes 28 February in non-leap years.
func NextYearly(after core.Date, day, month int) core.Date {
	candidate := clamped(after.Year(), month, day)
	if candidate.After(after) {
		return candidate
	}
	return clamped(after.Year()+1, month, day)
}

// clamped builds (year, month, day) with day limited to the month's length.
// month may be 13, which time.Date normalizes into January of the next year.
func clamped(year, month, day int) core.Date {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

// Occurrences lists the dates e is due on after its last generated occurrence
// (or from its start date) up to and including until, never past its end date.
func Occurrences(e core.RecurringEntry, until core.Date) ([]core.Date, error) {
	s, err := GetSchedule(e.Every)
	if err != nil {
		return nil, err
	}

	limit := until
	if !e.EndDate.IsZero() && e.EndDate.Before(limit) {
		limit = e.EndDate
	}

	from := e.LastGenerated
	if from.IsZero() || from.Before(e.StartDate) {
		from = core.DateOf(e.StartDate.AddDate(0, 0, -1))
	}

	var out []core.Date
	for {
		next := s.Next(from, e)
		if next.After(limit) {
			return out, nil
		}
		out = append(out, next)
		from = next
	}
}
