package reminder

import "time"

// NextOccurrence computes the occurrence following base under the given
// rule. The second return is false when the rule produces no further
// occurrence: non-recurring type, malformed rule, or the computed date
// falling past the rule's end date. A false result degrades the reminder to
// one-shot; this function never panics, so a bad rule can't take down a
// scheduler tick.
func NextOccurrence(base time.Time, rule Recurrence) (time.Time, bool) {
	if !rule.IsRecurring() {
		return time.Time{}, false
	}
	if rule.Validate() != nil {
		return time.Time{}, false
	}

	var next time.Time
	switch rule.Type {
	case RecurrenceMinutely:
		next = base.Add(time.Duration(rule.Interval) * time.Minute)
	case RecurrenceHourly:
		next = base.Add(time.Duration(rule.Interval) * time.Hour)
	case RecurrenceDaily:
		next = base.AddDate(0, 0, rule.Interval)
	case RecurrenceWeekly:
		if len(rule.DaysOfWeek) == 0 {
			next = base.AddDate(0, 0, 7*rule.Interval)
		} else {
			next = nextWeekday(base, rule.DaysOfWeek, rule.Interval)
		}
	case RecurrenceMonthly:
		next = addMonthsClamped(base, rule.Interval, rule.DayOfMonth)
	default:
		return time.Time{}, false
	}

	if rule.EndDate != nil && next.After(*rule.EndDate) {
		return time.Time{}, false
	}
	return next, true
}

// Preview returns up to n upcoming occurrences starting after base.
// Used by callers that show "next occurrence will be …" without mutating
// anything.
func Preview(base time.Time, rule Recurrence, n int) []time.Time {
	var out []time.Time
	cur := base
	for len(out) < n {
		next, ok := NextOccurrence(cur, rule)
		if !ok {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out
}

// nextWeekday finds the first date after base whose weekday is in days.
// Remaining matching days in base's own week (Monday-anchored) fire first;
// once the week is exhausted, the scan jumps ahead by the rule's interval
// in whole weeks, so "every 2 weeks on Mon/Wed" skips alternate weeks
// rather than firing weekly.
func nextWeekday(base time.Time, days []time.Weekday, interval int) time.Time {
	inSet := func(d time.Weekday) bool {
		for _, want := range days {
			if d == want {
				return true
			}
		}
		return false
	}

	// Rest of the current week.
	weekEnd := startOfWeek(base).AddDate(0, 0, 7)
	for c := base.AddDate(0, 0, 1); c.Before(weekEnd); c = c.AddDate(0, 0, 1) {
		if inSet(c.Weekday()) {
			return c
		}
	}

	// Jump to the next occurrence week and take its first matching day.
	c := startOfWeek(base).AddDate(0, 0, 7*interval)
	for i := 0; i < 7; i++ {
		if inSet(c.Weekday()) {
			return c
		}
		c = c.AddDate(0, 0, 1)
	}
	return c // unreachable: days is validated non-empty with valid values
}

// startOfWeek returns the Monday of t's week, preserving clock time.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return t.AddDate(0, 0, -offset)
}

// addMonthsClamped advances by the given number of months, targeting
// dayOfMonth when positive (otherwise the base's day), clamped to the last
// valid day of the target month: day 31 in a 30-day month yields day 30,
// Feb 30 yields Feb 28 (29 in leap years). time.AddDate normalizes
// overflow instead of clamping, so the month is computed from its first
// day.
func addMonthsClamped(base time.Time, months, dayOfMonth int) time.Time {
	day := base.Day()
	if dayOfMonth > 0 {
		day = dayOfMonth
	}

	firstOfTarget := time.Date(base.Year(), base.Month(), 1,
		base.Hour(), base.Minute(), base.Second(), base.Nanosecond(),
		base.Location()).AddDate(0, months, 0)

	if last := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month()); day > last {
		day = last
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		base.Hour(), base.Minute(), base.Second(), base.Nanosecond(),
		base.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
