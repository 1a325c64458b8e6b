package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"pocket-planner/internal/model"
)

// CountdownRepository handles CRUD for countdowns.
type CountdownRepository struct {
	db *gorm.DB
}

func NewCountdownRepository(db *gorm.DB) *CountdownRepository {
	return &CountdownRepository{db: db}
}

func (r *CountdownRepository) Create(ctx context.Context, countdown *model.Countdown) error {
	if err := r.db.WithContext(ctx).Create(countdown).Error; err != nil {
		return fmt.Errorf("create countdown: %w", err)
	}
	return nil
}

func (r *CountdownRepository) FindByID(ctx context.Context, userID, countdownID uint) (*model.Countdown, error) {
	var countdown model.Countdown
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, countdownID).First(&countdown).Error; err != nil {
		return nil, err
	}
	return &countdown, nil
}

func (r *CountdownRepository) ListByUser(ctx context.Context, userID uint) ([]model.Countdown, error) {
	var countdowns []model.Countdown
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date ASC").
		Find(&countdowns).Error; err != nil {
		return nil, err
	}
	return countdowns, nil
}

// ListRepeatingBefore returns repeating countdowns whose date is strictly
// before the given day, i.e. the ones due for in-place advancement.
func (r *CountdownRepository) ListRepeatingBefore(ctx context.Context, userID uint, date string) ([]model.Countdown, error) {
	var countdowns []model.Countdown
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND repeat <> ? AND repeat <> ? AND date < ?", userID, "", "None", date).
		Find(&countdowns).Error; err != nil {
		return nil, err
	}
	return countdowns, nil
}

func (r *CountdownRepository) Update(ctx context.Context, countdown *model.Countdown, fields map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(countdown).Updates(fields).Error; err != nil {
		return fmt.Errorf("update countdown: %w", err)
	}
	return nil
}

func (r *CountdownRepository) Delete(ctx context.Context, userID, countdownID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, countdownID).
		Delete(&model.Countdown{}).Error; err != nil {
		return fmt.Errorf("delete countdown: %w", err)
	}
	return nil
}

func (r *CountdownRepository) ListWithReminders(ctx context.Context, userID uint) ([]model.Countdown, error) {
	var countdowns []model.Countdown
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND reminder <> ? AND reminder <> ?", userID, "", "None").
		Find(&countdowns).Error; err != nil {
		return nil, err
	}
	return countdowns, nil
}
