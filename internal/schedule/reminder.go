package schedule

import (
	"regexp"
	"time"
)

// Domain selects which reminder/repeat vocabulary applies. Tasks and
// countdowns use disjoint label sets and must not be mixed.
type Domain int

const (
	DomainTask Domain = iota
	DomainCountdown
)

// DateLayout is the calendar-date form used everywhere in the planner.
// Dates are wall-clock days in the user's local calendar, no zone attached.
const DateLayout = "2006-01-02"

const (
	ReminderNone = "None"

	RepeatNone    = "None"
	RepeatDaily   = "Daily"
	RepeatWeekly  = "Weekly"
	RepeatMonthly = "Monthly"
	RepeatYearly  = "Yearly"
)

// reminderAnchorHour is the default hour a reminder fires at when the label
// does not reference the record's own time of day.
const reminderAnchorHour = 9

// offset describes how a reminder label shifts the anchor instant.
type offset struct {
	onToday   bool          // anchor to today instead of the due date
	usesClock bool          // reference the record's time of day
	before    time.Duration // subtracted from the time-of-day instant
	days      int           // calendar days subtracted from the anchor
	months    int           // calendar months subtracted from the anchor
}

var taskOffsets = map[string]offset{
	"At time of task":   {usesClock: true},
	"5 minutes before":  {usesClock: true, before: 5 * time.Minute},
	"10 minutes before": {usesClock: true, before: 10 * time.Minute},
	"30 minutes before": {usesClock: true, before: 30 * time.Minute},
	"1 hour before":     {usesClock: true, before: time.Hour},
	"On the day":        {onToday: true},
	"1 day early":       {days: 1},
}

var countdownOffsets = map[string]offset{
	"On the day":    {onToday: true},
	"1 day early":   {days: 1},
	"2 day early":   {days: 2},
	"5 day early":   {days: 5},
	"1 week early":  {days: 7},
	"2 week early":  {days: 14},
	"1 month early": {months: 1},
}

var taskBodies = map[string]string{
	"At time of task":   "Time for ",
	"5 minutes before":  "Scheduled in 5 minutes: ",
	"10 minutes before": "Scheduled in 10 minutes: ",
	"30 minutes before": "Scheduled in 30 minutes: ",
	"1 hour before":     "Scheduled in 1 hour: ",
	"On the day":        "Today: ",
	"1 day early":       "Due tomorrow: ",
}

var countdownBodies = map[string]string{
	"On the day":    "Today: ",
	"1 day early":   "1 day left to ",
	"2 day early":   "2 days left to ",
	"5 day early":   "5 days left to ",
	"1 week early":  "1 week left to ",
	"2 week early":  "2 weeks left to ",
	"1 month early": "1 month left to ",
}

// TaskReminders lists the valid task/subtask reminder labels in menu order.
func TaskReminders() []string {
	return []string{
		ReminderNone, "At time of task", "5 minutes before", "10 minutes before",
		"30 minutes before", "1 hour before", "On the day", "1 day early",
	}
}

// CountdownReminders lists the valid countdown reminder labels in menu order.
func CountdownReminders() []string {
	return []string{
		ReminderNone, "On the day", "1 day early", "2 day early", "5 day early",
		"1 week early", "2 week early", "1 month early",
	}
}

// TaskRepeats lists the repeat cadences tasks and subtasks support.
func TaskRepeats() []string {
	return []string{RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly}
}

// CountdownRepeats lists the repeat cadences countdowns support. Countdowns
// repeat yearly but never daily; the asymmetry with tasks is deliberate.
func CountdownRepeats() []string {
	return []string{RepeatNone, RepeatWeekly, RepeatMonthly, RepeatYearly}
}

func offsetsFor(domain Domain) map[string]offset {
	if domain == DomainCountdown {
		return countdownOffsets
	}
	return taskOffsets
}

// ValidReminder reports whether label belongs to the domain's vocabulary.
func ValidReminder(domain Domain, label string) bool {
	if label == ReminderNone {
		return true
	}
	_, ok := offsetsFor(domain)[label]
	return ok
}

// ValidRepeat reports whether cadence belongs to the domain's vocabulary.
func ValidRepeat(domain Domain, cadence string) bool {
	for _, c := range repeatsFor(domain) {
		if c == cadence {
			return true
		}
	}
	return false
}

func repeatsFor(domain Domain) []string {
	if domain == DomainCountdown {
		return CountdownRepeats()
	}
	return TaskRepeats()
}

// Clock is a parsed wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

var clockPattern = regexp.MustCompile(`^(0?[1-9]|1[0-2]):([0-5][0-9]) (AM|PM)$`)

// ParseClock parses a time-of-day string of the exact form "H:MM AM|PM"
// (12-hour clock, optional leading zero on the hour). Any other form is
// unparseable and the caller falls back to the default anchor.
func ParseClock(s string) (Clock, bool) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, false
	}
	hour := int(m[1][len(m[1])-1] - '0')
	if len(m[1]) == 2 && m[1][0] == '1' {
		hour += 10
	}
	minute := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if hour == 12 {
		hour = 0
	}
	if m[3] == "PM" {
		hour += 12
	}
	return Clock{Hour: hour, Minute: minute}, true
}

// ReminderAt maps a due date, optional time of day and reminder label to the
// instant the notification should fire. Pure; the only clock input is now,
// used for the "On the day" label which anchors to the current day rather
// than the due date (kept as-is for compatibility, surprising as it reads).
// Returns false when no reminder applies: label "None", an unknown label, or
// an unparseable due date.
func ReminderAt(dueDate, dueTime, label string, domain Domain, now time.Time) (time.Time, bool) {
	if label == "" || label == ReminderNone {
		return time.Time{}, false
	}
	off, ok := offsetsFor(domain)[label]
	if !ok {
		return time.Time{}, false
	}

	due, err := time.ParseInLocation(DateLayout, dueDate, now.Location())
	if err != nil {
		return time.Time{}, false
	}

	anchor := time.Date(due.Year(), due.Month(), due.Day(), reminderAnchorHour, 0, 0, 0, now.Location())

	switch {
	case off.onToday:
		return time.Date(now.Year(), now.Month(), now.Day(), reminderAnchorHour, 0, 0, 0, now.Location()), true
	case off.usesClock:
		clock, ok := ParseClock(dueTime)
		if !ok {
			// Degraded mode: no usable time of day, keep the 09:00 anchor.
			return anchor, true
		}
		at := time.Date(due.Year(), due.Month(), due.Day(), clock.Hour, clock.Minute, 0, 0, now.Location())
		return at.Add(-off.before), true
	default:
		return anchor.AddDate(0, -off.months, -off.days), true
	}
}

// ReminderBody builds the notification text for a record's reminder. Labels
// map to a short prefix in front of the display name. A task with label
// "None" yields the bare name while a countdown yields an empty string; the
// asymmetry is inherited behavior.
func ReminderBody(label, name string, domain Domain) string {
	if domain == DomainCountdown {
		if prefix, ok := countdownBodies[label]; ok {
			return prefix + name
		}
		return ""
	}
	if prefix, ok := taskBodies[label]; ok {
		return prefix + name
	}
	return name
}
