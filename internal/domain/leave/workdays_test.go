package leave

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWorkingDays(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"single weekday", day(2025, 3, 3), day(2025, 3, 3), 1},
		{"monday to friday", day(2025, 3, 3), day(2025, 3, 7), 5},
		{"weekend only", day(2025, 3, 8), day(2025, 3, 9), 0},
		{"friday to monday", day(2025, 3, 7), day(2025, 3, 10), 2},
		{"two full weeks", day(2025, 3, 3), day(2025, 3, 16), 10},
		{"across month end", day(2025, 2, 27), day(2025, 3, 4), 4},
		{"inverted", day(2025, 3, 7), day(2025, 3, 3), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := WorkingDays(tc.start, tc.end); got != tc.want {
				t.Fatalf("WorkingDays = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestWorkingDaysMatchesDayByDayCount(t *testing.T) {
	start := day(2024, 12, 1)
	for offset := 0; offset < 60; offset++ {
		end := start.AddDate(0, 0, offset)
		want := 0
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
				want++
			}
		}
		if got := WorkingDays(start, end); got != want {
			t.Fatalf("WorkingDays(%s, %s) = %d, want %d", start.Format(time.DateOnly), end.Format(time.DateOnly), got, want)
		}
	}
}

func TestCalendarDaysInclusive(t *testing.T) {
	if got := CalendarDays(day(2025, 1, 10), day(2025, 1, 10)); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}
	if got := CalendarDays(day(2025, 1, 10), day(2025, 1, 12)); got != 3 {
		t.Fatalf("expected 3 days, got %d", got)
	}
	if got := CalendarDays(day(2025, 1, 12), day(2025, 1, 10)); got != 0 {
		t.Fatalf("expected 0 for inverted range, got %d", got)
	}
}

func TestRangesOverlap(t *testing.T) {
	if !rangesOverlap(day(2025, 3, 3), day(2025, 3, 7), day(2025, 3, 7), day(2025, 3, 10)) {
		t.Fatal("expected shared end date to overlap")
	}
	if rangesOverlap(day(2025, 3, 3), day(2025, 3, 7), day(2025, 3, 8), day(2025, 3, 10)) {
		t.Fatal("expected adjacent ranges not to overlap")
	}
}
