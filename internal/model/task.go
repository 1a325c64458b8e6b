package model

import "time"

// Task is a single schedulable item in the planner. Date is a local calendar
// day in YYYY-MM-DD form; ClockTime is an optional "H:MM AM|PM" time of day
// or "None". A task with a repeat cadence and IsRepeated unset is a template:
// the materializer clones it into dated occurrences. Generated occurrences
// carry IsRepeated and are never templates themselves.
type Task struct {
	ID             uint `gorm:"primaryKey"`
	UserID         uint `gorm:"index"`
	Title          string
	Description    string
	Date           string `gorm:"index"`
	ClockTime      string
	Reminder       string
	Repeat         string
	IsRepeated     bool `gorm:"default:false"`
	IsCompleted    bool `gorm:"default:false"`
	NotificationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Subtasks       []Subtask `gorm:"foreignKey:TaskID"`
}

// IsTemplate reports whether the task drives recurrence materialization.
func (t Task) IsTemplate() bool {
	return !t.IsRepeated && t.Repeat != "" && t.Repeat != "None"
}
