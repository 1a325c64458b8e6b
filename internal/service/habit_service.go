package service

import (
	"context"
	"time"

	"pocket-planner/internal/model"
	"pocket-planner/internal/repository"
	"pocket-planner/internal/schedule"
)

// HabitService tracks recurring practices. A habit has no completion state;
// it accumulates one log row per checked-in day.
type HabitService struct {
	habits *repository.HabitRepository
}

func NewHabitService(habits *repository.HabitRepository) *HabitService {
	return &HabitService{habits: habits}
}

// CheckIn logs today for the named habit, creating the habit on first use.
// Checking in twice on one day is a no-op.
func (s *HabitService) CheckIn(ctx context.Context, user *model.User, name string, now time.Time) (*model.Habit, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}

	habit, err := s.habits.GetOrCreate(ctx, user.ID, name)
	if err != nil {
		return nil, err
	}
	if err := s.habits.LogDay(ctx, habit.ID, schedule.DateOnly(now), ""); err != nil {
		return nil, err
	}
	return habit, nil
}

func (s *HabitService) ListHabits(ctx context.Context, user *model.User) ([]model.Habit, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	return s.habits.ListByUser(ctx, user.ID)
}

func (s *HabitService) DeleteHabit(ctx context.Context, user *model.User, habitID uint) error {
	if user == nil || user.ID == 0 {
		return ErrNoOwner
	}
	return s.habits.Delete(ctx, user.ID, habitID)
}

// Streak returns the habit's current run of consecutive checked-in days. A
// streak is alive if its most recent day is today or yesterday; otherwise it
// is zero.
func (s *HabitService) Streak(ctx context.Context, habit *model.Habit, now time.Time) (int, error) {
	days, err := s.habits.ListDays(ctx, habit.ID)
	if err != nil {
		return 0, err
	}
	if len(days) == 0 {
		return 0, nil
	}

	cursor := schedule.Midnight(now)
	if days[0] != schedule.DateOnly(cursor) {
		cursor = cursor.AddDate(0, 0, -1)
		if days[0] != schedule.DateOnly(cursor) {
			return 0, nil
		}
	}

	streak := 0
	for _, day := range days {
		if day != schedule.DateOnly(cursor) {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak, nil
}

// CheckedInOn reports whether the habit has a log for the given day.
func (s *HabitService) CheckedInOn(ctx context.Context, habit *model.Habit, day string) (bool, error) {
	days, err := s.habits.ListDays(ctx, habit.ID)
	if err != nil {
		return false, err
	}
	for _, d := range days {
		if d == day {
			return true, nil
		}
	}
	return false, nil
}
