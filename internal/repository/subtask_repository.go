package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"pocket-planner/internal/model"
)

// SubtaskRepository handles CRUD for subtasks.
type SubtaskRepository struct {
	db *gorm.DB
}

func NewSubtaskRepository(db *gorm.DB) *SubtaskRepository {
	return &SubtaskRepository{db: db}
}

func (r *SubtaskRepository) Create(ctx context.Context, subtask *model.Subtask) error {
	if err := r.db.WithContext(ctx).Create(subtask).Error; err != nil {
		return fmt.Errorf("create subtask: %w", err)
	}
	return nil
}

func (r *SubtaskRepository) FindByID(ctx context.Context, userID, subtaskID uint) (*model.Subtask, error) {
	var subtask model.Subtask
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, subtaskID).First(&subtask).Error; err != nil {
		return nil, err
	}
	return &subtask, nil
}

func (r *SubtaskRepository) ListByTask(ctx context.Context, userID, taskID uint) ([]model.Subtask, error) {
	var subtasks []model.Subtask
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Order("is_completed ASC, created_at ASC").
		Find(&subtasks).Error; err != nil {
		return nil, err
	}
	return subtasks, nil
}

// ListTemplates returns a task's template subtasks for one repeat cadence.
func (r *SubtaskRepository) ListTemplates(ctx context.Context, userID, taskID uint, cadence string) ([]model.Subtask, error) {
	var subtasks []model.Subtask
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ? AND repeat = ? AND is_repeated = ?", userID, taskID, cadence, false).
		Find(&subtasks).Error; err != nil {
		return nil, err
	}
	return subtasks, nil
}

// TemplateParents returns the distinct parent task ids that still have
// template subtasks, so a catch-up pass knows which scopes to materialize.
func (r *SubtaskRepository) TemplateParents(ctx context.Context, userID uint) ([]uint, error) {
	var taskIDs []uint
	if err := r.db.WithContext(ctx).Model(&model.Subtask{}).
		Where("user_id = ? AND is_repeated = ? AND repeat <> ? AND repeat <> ?", userID, false, "", "None").
		Distinct().
		Pluck("task_id", &taskIDs).Error; err != nil {
		return nil, err
	}
	return taskIDs, nil
}

func (r *SubtaskRepository) Update(ctx context.Context, subtask *model.Subtask, fields map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(subtask).Updates(fields).Error; err != nil {
		return fmt.Errorf("update subtask: %w", err)
	}
	return nil
}

func (r *SubtaskRepository) Delete(ctx context.Context, userID, subtaskID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, subtaskID).
		Delete(&model.Subtask{}).Error; err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	return nil
}

func (r *SubtaskRepository) ListWithReminders(ctx context.Context, userID uint) ([]model.Subtask, error) {
	var subtasks []model.Subtask
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND reminder <> ? AND reminder <> ?", userID, "", "None").
		Find(&subtasks).Error; err != nil {
		return nil, err
	}
	return subtasks, nil
}
