package model

import "time"

// Countdown counts days toward a target date (birthday, trip, deadline).
// Repeating countdowns are advanced in place when the date passes, never
// cloned: there is always exactly one row per countdown.
type Countdown struct {
	ID             uint `gorm:"primaryKey"`
	UserID         uint `gorm:"index"`
	Title          string
	Date           string `gorm:"index"`
	Reminder       string
	Repeat         string
	NotificationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
