package service

import (
	"context"
	"testing"
	"time"

	"pocket-planner/internal/model"
	"pocket-planner/internal/repository"
)

func TestHabitCheckInIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habits := NewHabitService(repository.NewHabitRepository(f.db))

	now := time.Date(2024, time.March, 12, 21, 0, 0, 0, time.Local)
	habit, err := habits.CheckIn(ctx, f.user, "Stretch", now)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := habits.CheckIn(ctx, f.user, "Stretch", now); err != nil {
		t.Fatal(err)
	}

	var count int64
	if err := f.db.Model(&model.HabitLog{}).Where("habit_id = ?", habit.ID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("log rows = %d, want 1 after double check-in", count)
	}
}

func TestDeleteHabitRemovesLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habits := NewHabitService(repository.NewHabitRepository(f.db))

	now := time.Date(2024, time.March, 12, 21, 0, 0, 0, time.Local)
	habit, err := habits.CheckIn(ctx, f.user, "Run", now)
	if err != nil {
		t.Fatal(err)
	}

	if err := habits.DeleteHabit(ctx, f.user, habit.ID); err != nil {
		t.Fatal(err)
	}

	remaining, err := habits.ListHabits(ctx, f.user)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("habits after delete = %d, want 0", len(remaining))
	}
	var logs int64
	if err := f.db.Model(&model.HabitLog{}).Where("habit_id = ?", habit.ID).Count(&logs).Error; err != nil {
		t.Fatal(err)
	}
	if logs != 0 {
		t.Errorf("log rows after delete = %d, want 0", logs)
	}

	if err := habits.DeleteHabit(ctx, nil, habit.ID); err != ErrNoOwner {
		t.Errorf("nil user error = %v, want ErrNoOwner", err)
	}
}

func TestHabitStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := repository.NewHabitRepository(f.db)
	habits := NewHabitService(repo)

	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.Local)
	habit, err := habits.CheckIn(ctx, f.user, "Read", now)
	if err != nil {
		t.Fatal(err)
	}
	for _, day := range []string{"2024-03-14", "2024-03-13", "2024-03-10"} {
		if err := repo.LogDay(ctx, habit.ID, day, ""); err != nil {
			t.Fatal(err)
		}
	}

	streak, err := habits.Streak(ctx, habit, now)
	if err != nil {
		t.Fatal(err)
	}
	if streak != 3 {
		t.Errorf("streak = %d, want 3 (gap on the 11th breaks it)", streak)
	}
}

func TestHabitStreakSurvivesMissingToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := repository.NewHabitRepository(f.db)
	habits := NewHabitService(repo)

	habit, err := repo.GetOrCreate(ctx, f.user.ID, "Meditate")
	if err != nil {
		t.Fatal(err)
	}
	for _, day := range []string{"2024-03-14", "2024-03-13"} {
		if err := repo.LogDay(ctx, habit.ID, day, ""); err != nil {
			t.Fatal(err)
		}
	}

	// Not checked in today yet: yesterday's run still counts.
	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.Local)
	streak, err := habits.Streak(ctx, habit, now)
	if err != nil {
		t.Fatal(err)
	}
	if streak != 2 {
		t.Errorf("streak = %d, want 2", streak)
	}

	// Two days without a check-in resets it.
	later := now.AddDate(0, 0, 2)
	streak, err = habits.Streak(ctx, habit, later)
	if err != nil {
		t.Fatal(err)
	}
	if streak != 0 {
		t.Errorf("stale streak = %d, want 0", streak)
	}
}
