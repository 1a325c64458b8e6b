package schedule

import "time"

// DateOnly formats an instant as a local calendar date. Built from local
// date components so the day never shifts across time zones.
func DateOnly(t time.Time) string {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).Format(DateLayout)
}

// Midnight truncates an instant to the start of its local calendar day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextOccurrence advances a past due date to the first cadence-aligned date
// at or after today. Dates are compared day-only. A due date already at or
// past today is returned unchanged. Returns false when no advancement is
// defined: cadence "None", an unparseable date, or Daily (daily recurrence
// regenerates same-day occurrences instead of moving the template's date).
func NextOccurrence(dueDate, cadence string, today time.Time) (string, bool) {
	switch cadence {
	case RepeatWeekly, RepeatMonthly, RepeatYearly:
	default:
		return "", false
	}

	due, err := time.ParseInLocation(DateLayout, dueDate, today.Location())
	if err != nil {
		return "", false
	}

	floor := Midnight(today)
	for due.Before(floor) {
		switch cadence {
		case RepeatWeekly:
			due = due.AddDate(0, 0, 7)
		case RepeatMonthly:
			due = due.AddDate(0, 1, 0)
		case RepeatYearly:
			due = due.AddDate(1, 0, 0)
		}
	}
	return due.Format(DateLayout), true
}
