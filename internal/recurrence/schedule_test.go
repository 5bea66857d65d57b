package recurrence

import (
	"testing"

	"fintrack/internal/core"
)

func d(y, m, day int) core.Date { return core.NewDate(y, m, day) }

func TestNextMonthly(t *testing.T) {
	tests := []struct {
		name  string
		after core.Date
		day   int
		want  core.Date
	}{
		{"leap february clamps to 29", d(2024, 1, 31), 31, d(2024, 2, 29)},
		{"non-leap february clamps to 28", d(2025, 1, 31), 31, d(2025, 2, 28)},
		{"after clamped february back to 31", d(2024, 2, 29), 31, d(2024, 3, 31)},
		{"30-day month clamps", d(2024, 3, 31), 31, d(2024, 4, 30)},
		{"later this month", d(2024, 1, 10), 15, d(2024, 1, 15)},
		{"already passed this month", d(2024, 1, 20), 15, d(2024, 2, 15)},
		{"same day moves to next month", d(2024, 1, 15), 15, d(2024, 2, 15)},
		{"december rolls into january", d(2024, 12, 31), 5, d(2025, 1, 5)},
		{"day 30 in february", d(2023, 1, 30), 30, d(2023, 2, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextMonthly(tt.after, tt.day); !got.Equal(tt.want) {
				t.Errorf("NextMonthly(%s, %d) = %s, want %s", tt.after, tt.day, got, tt.want)
			}
		})
	}
}

func TestNextYearly(t *testing.T) {
	tests := []struct {
		name       string
		after      core.Date
		day, month int
		want       core.Date
	}{
		{"later this year", d(2024, 1, 1), 15, 6, d(2024, 6, 15)},
		{"already passed", d(2024, 7, 1), 15, 6, d(2025, 6, 15)},
		{"feb 29 in leap year", d(2024, 1, 1), 29, 2, d(2024, 2, 29)},
		{"feb 29 clamps in non-leap year", d(2024, 3, 1), 29, 2, d(2025, 2, 28)},
		{"feb 29 from non-leap start", d(2023, 1, 1), 29, 2, d(2023, 2, 28)},
		{"april 31 clamps", d(2024, 1, 1), 31, 4, d(2024, 4, 30)},
		{"same day moves to next year", d(2024, 3, 10), 10, 3, d(2025, 3, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextYearly(tt.after, tt.day, tt.month); !got.Equal(tt.want) {
				t.Errorf("NextYearly(%s, %d, %d) = %s, want %s", tt.after, tt.day, tt.month, got, tt.want)
			}
		})
	}
}

func TestOccurrencesMonthlyAcrossShortMonths(t *testing.T) {
	e := core.RecurringEntry{Every: core.Monthly, Day: 31, StartDate: d(2024, 1, 31)}

	got, err := Occurrences(e, d(2024, 5, 15))
	if err != nil {
		t.Fatalf("Occurrences: %v", err)
	}
	want := []core.Date{d(2024, 1, 31), d(2024, 2, 29), d(2024, 3, 31), d(2024, 4, 30)}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("occurrence %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOccurrencesResumesAfterLastGenerated(t *testing.T) {
	e := core.RecurringEntry{
		Every: core.Monthly, Day: 1, StartDate: d(2024, 1, 1),
		LastGenerated: d(2024, 2, 1),
	}
	got, _ := Occurrences(e, d(2024, 3, 1))
	if len(got) != 1 || !got[0].Equal(d(2024, 3, 1)) {
		t.Fatalf("got %v, want [01/03/2024]", got)
	}
}

func TestOccurrencesIncludeStartDateOnce(t *testing.T) {
	e := core.RecurringEntry{Every: core.Yearly, Day: 10, Month: 3, StartDate: d(2024, 3, 10)}

	got, _ := Occurrences(e, d(2025, 3, 10))
	if len(got) != 2 || !got[0].Equal(d(2024, 3, 10)) || !got[1].Equal(d(2025, 3, 10)) {
		t.Fatalf("got %v, want [10/03/2024 10/03/2025]", got)
	}

	e.LastGenerated = got[1]
	if again, _ := Occurrences(e, d(2025, 3, 10)); len(again) != 0 {
		t.Fatalf("last generated occurrence repeated: %v", again)
	}
}

func TestOccurrencesStopsAtEndDate(t *testing.T) {
	e := core.RecurringEntry{
		Every: core.Yearly, Day: 29, Month: 2,
		StartDate: d(2024, 1, 1), EndDate: d(2026, 1, 1),
	}
	got, _ := Occurrences(e, d(2030, 1, 1))
	if len(got) != 2 || !got[0].Equal(d(2024, 2, 29)) || !got[1].Equal(d(2025, 2, 28)) {
		t.Fatalf("got %v", got)
	}
}

func TestGetScheduleUnknown(t *testing.T) {
	if _, err := GetSchedule("weekly"); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}
