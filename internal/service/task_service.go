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

// TaskInput carries the user-provided fields of a task.
type TaskInput struct {
	Title       string
	Description string
	Date        string
	ClockTime   string
	Reminder    string
	Repeat      string
}

func (in TaskInput) validate() error {
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

// TaskService wraps task business logic: create, edit, complete and delete,
// keeping at most one live reminder handle per record.
type TaskService struct {
	tasks    *repository.TaskRepository
	subtasks *repository.SubtaskRepository
	notifier Notifier
	hub      *Hub
}

func NewTaskService(tasks *repository.TaskRepository, subtasks *repository.SubtaskRepository, notifier Notifier, hub *Hub) *TaskService {
	return &TaskService{tasks: tasks, subtasks: subtasks, notifier: notifier, hub: hub}
}

func (s *TaskService) publish(userID uint) {
	if s.hub != nil {
		s.hub.Publish(CollectionTasks, userID)
	}
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:      user.ID,
		Title:       input.Title,
		Description: input.Description,
		Date:        input.Date,
		ClockTime:   input.ClockTime,
		Reminder:    normalizeLabel(input.Reminder),
		Repeat:      normalizeLabel(input.Repeat),
	}

	if at, ok := schedule.ReminderAt(task.Date, task.ClockTime, task.Reminder, schedule.DomainTask, time.Now()); ok {
		body := schedule.ReminderBody(task.Reminder, task.Title, schedule.DomainTask)
		handle, err := s.notifier.Schedule(task.Title, body, at, user.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("schedule reminder: %w", err)
		}
		task.NotificationID = handle
	}

	if err := s.tasks.Create(ctx, &task); err != nil {
		if task.NotificationID != "" {
			if cerr := s.notifier.Cancel(task.NotificationID); cerr != nil {
				log.Printf("task: cancel orphaned reminder: %v", cerr)
			}
		}
		return nil, err
	}
	s.publish(user.ID)
	return &task, nil
}

// EditTask replaces a task's schedulable fields. The previous reminder handle
// is cancelled before a new one is armed; the record never holds two.
func (s *TaskService) EditTask(ctx context.Context, user *model.User, taskID uint, input TaskInput) (*model.Task, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}

	s.cancelReminder(task.NotificationID)
	task.Title = input.Title
	task.Description = input.Description
	task.Date = input.Date
	task.ClockTime = input.ClockTime
	task.Reminder = normalizeLabel(input.Reminder)
	task.Repeat = normalizeLabel(input.Repeat)
	task.NotificationID = ""

	if at, ok := schedule.ReminderAt(task.Date, task.ClockTime, task.Reminder, schedule.DomainTask, time.Now()); ok {
		body := schedule.ReminderBody(task.Reminder, task.Title, schedule.DomainTask)
		handle, err := s.notifier.Schedule(task.Title, body, at, user.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("schedule reminder: %w", err)
		}
		task.NotificationID = handle
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	s.publish(user.ID)
	return task, nil
}

// CompleteTask marks a task done and disarms its pending reminder.
func (s *TaskService) CompleteTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}

	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}

	s.cancelReminder(task.NotificationID)
	if err := s.tasks.Update(ctx, task, map[string]interface{}{
		"is_completed":    true,
		"notification_id": "",
	}); err != nil {
		return nil, err
	}
	s.publish(user.ID)
	return task, nil
}

// DeleteTask removes a task, its subtasks, and any pending reminders.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	if user == nil || user.ID == 0 {
		return ErrNoOwner
	}

	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return err
	}
	s.cancelReminder(task.NotificationID)

	subtasks, err := s.subtasks.ListByTask(ctx, user.ID, taskID)
	if err != nil {
		return err
	}
	for _, sub := range subtasks {
		s.cancelReminder(sub.NotificationID)
		if err := s.subtasks.Delete(ctx, user.ID, sub.ID); err != nil {
			return err
		}
	}

	if err := s.tasks.Delete(ctx, user.ID, taskID); err != nil {
		return err
	}
	s.publish(user.ID)
	return nil
}

func (s *TaskService) ListByDate(ctx context.Context, user *model.User, date string) ([]model.Task, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	return s.tasks.ListByDate(ctx, user.ID, date)
}

func (s *TaskService) ListPending(ctx context.Context, user *model.User) ([]model.Task, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	return s.tasks.ListPending(ctx, user.ID)
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	return s.tasks.FindByID(ctx, user.ID, taskID)
}

// cancelReminder disarms a handle if present. Cancellation failures are
// logged and absorbed; the caller proceeds either way.
func (s *TaskService) cancelReminder(handle string) {
	if handle == "" {
		return
	}
	if err := s.notifier.Cancel(handle); err != nil {
		log.Printf("task: cancel reminder: %v", err)
	}
}

// normalizeLabel maps the empty string to the explicit "None" label so
// storage and display always carry a value from the vocabulary.
func normalizeLabel(label string) string {
	if label == "" {
		return "None"
	}
	return label
}
