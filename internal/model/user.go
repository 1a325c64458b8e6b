package model

import "time"

// User is a Telegram account the planner knows about. Tasks, countdowns and
// habits all hang off its ID; TelegramID matters only at the chat boundary
// and as the reminder delivery target.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
