package schedule

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.Local)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		hour   int
		minute int
		ok     bool
	}{
		{"5:30 PM", 17, 30, true},
		{"05:30 PM", 17, 30, true},
		{"5:30 AM", 5, 30, true},
		{"12:00 AM", 0, 0, true},
		{"12:15 PM", 12, 15, true},
		{"11:59 PM", 23, 59, true},
		{"1:05 AM", 1, 5, true},
		{"17:30", 0, 0, false},
		{"5:30pm", 0, 0, false},
		{"5:30 pm", 0, 0, false},
		{"13:00 PM", 0, 0, false},
		{"5:60 PM", 0, 0, false},
		{"0:30 AM", 0, 0, false},
		{"None", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			clock, ok := ParseClock(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseClock(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if !ok {
				return
			}
			if clock.Hour != tt.hour || clock.Minute != tt.minute {
				t.Errorf("ParseClock(%q) = %d:%02d, want %d:%02d", tt.in, clock.Hour, clock.Minute, tt.hour, tt.minute)
			}
		})
	}
}

func TestReminderAt(t *testing.T) {
	now := date(2024, time.June, 1, 14, 0)

	tests := []struct {
		name    string
		dueDate string
		dueTime string
		label   string
		domain  Domain
		want    time.Time
		ok      bool
	}{
		{
			name: "none yields no reminder", dueDate: "2024-06-10", label: ReminderNone,
			domain: DomainTask, ok: false,
		},
		{
			name: "unknown label yields no reminder", dueDate: "2024-06-10", label: "3 fortnights early",
			domain: DomainTask, ok: false,
		},
		{
			name: "unparseable due date yields no reminder", dueDate: "10.06.2024", label: "1 day early",
			domain: DomainTask, ok: false,
		},
		{
			name: "on the day anchors to today not the due date", dueDate: "2024-06-10", label: "On the day",
			domain: DomainTask, want: date(2024, time.June, 1, 9, 0), ok: true,
		},
		{
			name: "one day early", dueDate: "2024-06-10", label: "1 day early",
			domain: DomainTask, want: date(2024, time.June, 9, 9, 0), ok: true,
		},
		{
			name: "at time of task", dueDate: "2024-06-10", dueTime: "5:30 PM", label: "At time of task",
			domain: DomainTask, want: date(2024, time.June, 10, 17, 30), ok: true,
		},
		{
			name: "one hour before", dueDate: "2024-06-10", dueTime: "5:30 PM", label: "1 hour before",
			domain: DomainTask, want: date(2024, time.June, 10, 16, 30), ok: true,
		},
		{
			name: "five minutes before", dueDate: "2024-06-10", dueTime: "9:00 AM", label: "5 minutes before",
			domain: DomainTask, want: date(2024, time.June, 10, 8, 55), ok: true,
		},
		{
			name: "missing time falls back to anchor", dueDate: "2024-06-10", dueTime: "", label: "1 hour before",
			domain: DomainTask, want: date(2024, time.June, 10, 9, 0), ok: true,
		},
		{
			name: "24h time is unparseable and falls back", dueDate: "2024-06-10", dueTime: "17:30", label: "At time of task",
			domain: DomainTask, want: date(2024, time.June, 10, 9, 0), ok: true,
		},
		{
			name: "countdown one week early", dueDate: "2024-06-10", label: "1 week early",
			domain: DomainCountdown, want: date(2024, time.June, 3, 9, 0), ok: true,
		},
		{
			name: "countdown two weeks early", dueDate: "2024-06-20", label: "2 week early",
			domain: DomainCountdown, want: date(2024, time.June, 6, 9, 0), ok: true,
		},
		{
			name: "countdown one month early uses calendar arithmetic", dueDate: "2024-07-31", label: "1 month early",
			domain: DomainCountdown, want: date(2024, time.July, 1, 9, 0), ok: true,
		},
		{
			name: "task label is not valid for countdowns", dueDate: "2024-06-10", label: "1 hour before",
			domain: DomainCountdown, ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReminderAt(tt.dueDate, tt.dueTime, tt.label, tt.domain, now)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ReminderAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReminderBody(t *testing.T) {
	tests := []struct {
		name   string
		label  string
		record string
		domain Domain
		want   string
	}{
		{"task none keeps bare name", ReminderNone, "Buy milk", DomainTask, "Buy milk"},
		{"task five minutes", "5 minutes before", "Standup", DomainTask, "Scheduled in 5 minutes: Standup"},
		{"task on the day", "On the day", "Dentist", DomainTask, "Today: Dentist"},
		{"countdown one day", "1 day early", "Anniversary", DomainCountdown, "1 day left to Anniversary"},
		{"countdown none is empty", ReminderNone, "Anniversary", DomainCountdown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReminderBody(tt.label, tt.record, tt.domain); got != tt.want {
				t.Errorf("ReminderBody = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidReminder(t *testing.T) {
	if !ValidReminder(DomainTask, "1 hour before") {
		t.Error("1 hour before should be valid for tasks")
	}
	if ValidReminder(DomainCountdown, "1 hour before") {
		t.Error("1 hour before should not be valid for countdowns")
	}
	if !ValidReminder(DomainCountdown, "2 week early") {
		t.Error("2 week early should be valid for countdowns")
	}
	if !ValidReminder(DomainTask, ReminderNone) || !ValidReminder(DomainCountdown, ReminderNone) {
		t.Error("None should be valid in both domains")
	}
}

func TestValidRepeat(t *testing.T) {
	if !ValidRepeat(DomainTask, RepeatDaily) {
		t.Error("tasks should support Daily")
	}
	if ValidRepeat(DomainCountdown, RepeatDaily) {
		t.Error("countdowns should not support Daily")
	}
	if !ValidRepeat(DomainCountdown, RepeatYearly) {
		t.Error("countdowns should support Yearly")
	}
	if ValidRepeat(DomainTask, RepeatYearly) {
		t.Error("tasks should not support Yearly")
	}
}
