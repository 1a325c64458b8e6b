package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"pocket-planner/internal/model"
	"pocket-planner/internal/repository"
	"pocket-planner/internal/schedule"
)

// SubtaskInput carries the user-provided fields of a subtask.
type SubtaskInput struct {
	Title     string
	Date      string
	ClockTime string
	Reminder  string
	Repeat    string
}

func (in SubtaskInput) validate() error {
	if in.Title == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := time.Parse(schedule.DateLayout, in.Date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", in.Date)
	}
	if in.Reminder != "" && !schedule.ValidReminder(schedule.DomainTask, in.Reminder) {
		return fmt.Errorf("unknown reminder %q", in.Reminder)
	}
	if in.Repeat != "" && !schedule.ValidRepeat(schedule.DomainTask, in.Repeat) {
		return fmt.Errorf("unknown repeat %q", in.Repeat)
	}
	return nil
}

// SubtaskService wraps subtask business logic. Subtasks share the task
// reminder/repeat vocabulary and are scoped to a parent task.
type SubtaskService struct {
	subtasks *repository.SubtaskRepository
	tasks    *repository.TaskRepository
	notifier Notifier
	hub      *Hub
}

func NewSubtaskService(subtasks *repository.SubtaskRepository, tasks *repository.TaskRepository, notifier Notifier, hub *Hub) *SubtaskService {
	return &SubtaskService{subtasks: subtasks, tasks: tasks, notifier: notifier, hub: hub}
}

func (s *SubtaskService) publish(userID uint) {
	if s.hub != nil {
		s.hub.Publish(CollectionSubtasks, userID)
	}
}

func (s *SubtaskService) CreateSubtask(ctx context.Context, user *model.User, taskID uint, input SubtaskInput) (*model.Subtask, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	// The parent must exist and belong to the same owner.
	if _, err := s.tasks.FindByID(ctx, user.ID, taskID); err != nil {
		return nil, fmt.Errorf("parent task: %w", err)
	}

	subtask := model.Subtask{
		UserID:    user.ID,
		TaskID:    taskID,
		Title:     input.Title,
		Date:      input.Date,
		ClockTime: input.ClockTime,
		Reminder:  normalizeLabel(input.Reminder),
		Repeat:    normalizeLabel(input.Repeat),
	}

	if at, ok := schedule.ReminderAt(subtask.Date, subtask.ClockTime, subtask.Reminder, schedule.DomainTask, time.Now()); ok {
		body := schedule.ReminderBody(subtask.Reminder, subtask.Title, schedule.DomainTask)
		handle, err := s.notifier.Schedule(subtask.Title, body, at, user.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("schedule reminder: %w", err)
		}
		subtask.NotificationID = handle
	}

	if err := s.subtasks.Create(ctx, &subtask); err != nil {
		if subtask.NotificationID != "" {
			if cerr := s.notifier.Cancel(subtask.NotificationID); cerr != nil {
				log.Printf("subtask: cancel orphaned reminder: %v", cerr)
			}
		}
		return nil, err
	}
	s.publish(user.ID)
	return &subtask, nil
}

func (s *SubtaskService) CompleteSubtask(ctx context.Context, user *model.User, subtaskID uint) (*model.Subtask, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}

	subtask, err := s.subtasks.FindByID(ctx, user.ID, subtaskID)
	if err != nil {
		return nil, err
	}

	s.cancelReminder(subtask.NotificationID)
	if err := s.subtasks.Update(ctx, subtask, map[string]interface{}{
		"is_completed":    true,
		"notification_id": "",
	}); err != nil {
		return nil, err
	}
	s.publish(user.ID)
	return subtask, nil
}

func (s *SubtaskService) DeleteSubtask(ctx context.Context, user *model.User, subtaskID uint) error {
	if user == nil || user.ID == 0 {
		return ErrNoOwner
	}

	subtask, err := s.subtasks.FindByID(ctx, user.ID, subtaskID)
	if err != nil {
		return err
	}
	s.cancelReminder(subtask.NotificationID)

	if err := s.subtasks.Delete(ctx, user.ID, subtaskID); err != nil {
		return err
	}
	s.publish(user.ID)
	return nil
}

func (s *SubtaskService) ListByTask(ctx context.Context, user *model.User, taskID uint) ([]model.Subtask, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	return s.subtasks.ListByTask(ctx, user.ID, taskID)
}

func (s *SubtaskService) cancelReminder(handle string) {
	if handle == "" {
		return
	}
	if err := s.notifier.Cancel(handle); err != nil {
		log.Printf("subtask: cancel reminder: %v", err)
	}
}
