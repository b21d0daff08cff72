package domain

import "time"

// MondayIndex maps time.Weekday onto the 0=Monday..6=Sunday numbering
// used by Recurrence.Weekdays.
func MondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// NextRun computes the next fire instant after the given run. Returns
// ok=false when the recurrence is exhausted (Once, or past EndAt).
// The wall-clock time of day is preserved across advances.
func NextRun(rec Recurrence, after time.Time) (time.Time, bool) {
	after = after.UTC()

	var next time.Time
	switch rec.Repeat {
	case RepeatOnce, "":
		return time.Time{}, false
	case RepeatDaily:
		next = after.AddDate(0, 0, 1)
	case RepeatWeekly:
		n, ok := nextWeekday(rec.Weekdays, after)
		if !ok {
			return time.Time{}, false
		}
		next = n
	case RepeatMonthly:
		next = addMonthClamped(after)
	default:
		return time.Time{}, false
	}

	if rec.EndAt != nil && next.After(rec.EndAt.UTC()) {
		return time.Time{}, false
	}
	return next, true
}

// nextWeekday advances to the closest following day whose weekday is in
// the set, wrapping to the next week when none remain.
func nextWeekday(weekdays []int, after time.Time) (time.Time, bool) {
	if len(weekdays) == 0 {
		return time.Time{}, false
	}
	set := make(map[int]bool, len(weekdays))
	for _, d := range weekdays {
		if d >= 0 && d <= 6 {
			set[d] = true
		}
	}
	if len(set) == 0 {
		return time.Time{}, false
	}
	for offset := 1; offset <= 7; offset++ {
		candidate := after.AddDate(0, 0, offset)
		if set[MondayIndex(candidate.Weekday())] {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// addMonthClamped adds one calendar month, clamping the day of month to
// the target month's last day (Jan 31 -> Feb 28/29, never Mar 3).
func addMonthClamped(t time.Time) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	firstOfTarget := time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}
