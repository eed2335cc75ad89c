package leave

import "time"

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WorkingDays counts Monday to Friday dates in [start, end], inclusive.
// It returns 0 when end is before start.
func WorkingDays(start, end time.Time) int {
	start, end = DateOnly(start), DateOnly(end)
	if end.Before(start) {
		return 0
	}
	span := CalendarDays(start, end)
	weeks := span / 7
	count := weeks * 5
	day := start.AddDate(0, 0, weeks*7)
	for !day.After(end) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

// CalendarDays is the inclusive day span from start to end.
func CalendarDays(start, end time.Time) int {
	start, end = DateOnly(start), DateOnly(end)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// DaysBetween is the number of whole days from earlier to later.
func DaysBetween(earlier, later time.Time) int {
	return int(DateOnly(later).Sub(DateOnly(earlier)).Hours() / 24)
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !DateOnly(aStart).After(DateOnly(bEnd)) && !DateOnly(bStart).After(DateOnly(aEnd))
}
