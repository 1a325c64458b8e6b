package model

import "time"

// Subtask is a schedulable child of a task. TaskID is a lookup-only back
// reference; subtasks are scheduled and materialized independently of their
// parent, scoped by (user, task).
type Subtask struct {
	ID             uint `gorm:"primaryKey"`
	UserID         uint `gorm:"index"`
	TaskID         uint `gorm:"index"`
	Title          string
	Date           string `gorm:"index"`
	ClockTime      string
	Reminder       string
	Repeat         string
	IsRepeated     bool `gorm:"default:false"`
	IsCompleted    bool `gorm:"default:false"`
	NotificationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTemplate reports whether the subtask drives recurrence materialization.
func (s Subtask) IsTemplate() bool {
	return !s.IsRepeated && s.Repeat != "" && s.Repeat != "None"
}
