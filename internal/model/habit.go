package model

import "time"

// Habit is a recurring practice without completion state; it is checked in,
// never finished.
type Habit struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Logs      []HabitLog `gorm:"foreignKey:HabitID"`
}

// HabitLog records one day's check-in. The unique (habit_id, day) index makes
// check-in idempotent at the storage layer.
type HabitLog struct {
	ID        uint   `gorm:"primaryKey"`
	HabitID   uint   `gorm:"index;index:idx_habit_log_day,unique"`
	Day       string `gorm:"index:idx_habit_log_day,unique"`
	Note      string
	CreatedAt time.Time
}
