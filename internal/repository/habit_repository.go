package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pocket-planner/internal/model"
)

// HabitRepository manages habits and their check-in logs.
type HabitRepository struct {
	db *gorm.DB
}

func NewHabitRepository(db *gorm.DB) *HabitRepository {
	return &HabitRepository{db: db}
}

func (r *HabitRepository) GetOrCreate(ctx context.Context, userID uint, name string) (*model.Habit, error) {
	if name == "" {
		return nil, fmt.Errorf("habit name is required")
	}

	var habit model.Habit
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ? AND name = ?", userID, name).First(&habit).Error
	switch {
	case err == nil:
		return &habit, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		habit = model.Habit{UserID: userID, Name: name}
		if err := db.Create(&habit).Error; err != nil {
			return nil, fmt.Errorf("create habit: %w", err)
		}
		return &habit, nil
	default:
		return nil, fmt.Errorf("find habit: %w", err)
	}
}

func (r *HabitRepository) ListByUser(ctx context.Context, userID uint) ([]model.Habit, error) {
	var habits []model.Habit
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&habits).Error; err != nil {
		return nil, err
	}
	return habits, nil
}

func (r *HabitRepository) FindByID(ctx context.Context, userID, habitID uint) (*model.Habit, error) {
	var habit model.Habit
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, habitID).First(&habit).Error; err != nil {
		return nil, err
	}
	return &habit, nil
}

func (r *HabitRepository) Delete(ctx context.Context, userID, habitID uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("habit_id = ?", habitID).Delete(&model.HabitLog{}).Error; err != nil {
		return fmt.Errorf("delete habit logs: %w", err)
	}
	if err := db.Where("user_id = ? AND id = ?", userID, habitID).Delete(&model.Habit{}).Error; err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

// LogDay records a check-in for the given calendar day. The unique
// (habit_id, day) index makes repeated check-ins a no-op.
func (r *HabitRepository) LogDay(ctx context.Context, habitID uint, day, note string) error {
	entry := model.HabitLog{HabitID: habitID, Day: day, Note: note}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "habit_id"}, {Name: "day"}},
			DoNothing: true,
		}).
		Create(&entry).Error; err != nil {
		return fmt.Errorf("log habit day: %w", err)
	}
	return nil
}

// ListDays returns the logged days for a habit, most recent first.
func (r *HabitRepository) ListDays(ctx context.Context, habitID uint) ([]string, error) {
	var days []string
	if err := r.db.WithContext(ctx).Model(&model.HabitLog{}).
		Where("habit_id = ?", habitID).
		Order("day DESC").
		Pluck("day", &days).Error; err != nil {
		return nil, err
	}
	return days, nil
}
