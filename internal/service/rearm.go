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

// Rearmer rebuilds in-process reminder timers from persisted records after a
// restart. Reminder instants already in the past are dropped and their stale
// handles cleared; future ones get fresh timers and handles.
type Rearmer struct {
	users      *repository.UserRepository
	tasks      *repository.TaskRepository
	subtasks   *repository.SubtaskRepository
	countdowns *repository.CountdownRepository
	notifier   Notifier
}

func NewRearmer(
	users *repository.UserRepository,
	tasks *repository.TaskRepository,
	subtasks *repository.SubtaskRepository,
	countdowns *repository.CountdownRepository,
	notifier Notifier,
) *Rearmer {
	return &Rearmer{users: users, tasks: tasks, subtasks: subtasks, countdowns: countdowns, notifier: notifier}
}

// RearmAll re-arms reminders for every known user. Per-record failures are
// logged and skipped; a user's failure does not stop the rest.
func (r *Rearmer) RearmAll(ctx context.Context, now time.Time) error {
	users, err := r.users.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, user := range users {
		u := user
		if err := r.rearmUser(ctx, &u, now); err != nil {
			log.Printf("rearm user %d: %v", user.ID, err)
		}
	}
	return nil
}

func (r *Rearmer) rearmUser(ctx context.Context, user *model.User, now time.Time) error {
	tasks, err := r.tasks.ListWithReminders(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if task.IsCompleted {
			continue
		}
		handle := r.rearmOne(task.Title, task.Date, task.ClockTime, task.Reminder, schedule.DomainTask, user.TelegramID, now)
		if handle == task.NotificationID {
			continue
		}
		t := task
		if err := r.tasks.Update(ctx, &t, map[string]interface{}{"notification_id": handle}); err != nil {
			log.Printf("rearm: save task %d handle: %v", task.ID, err)
		}
	}

	subtasks, err := r.subtasks.ListWithReminders(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, subtask := range subtasks {
		if subtask.IsCompleted {
			continue
		}
		handle := r.rearmOne(subtask.Title, subtask.Date, subtask.ClockTime, subtask.Reminder, schedule.DomainTask, user.TelegramID, now)
		if handle == subtask.NotificationID {
			continue
		}
		st := subtask
		if err := r.subtasks.Update(ctx, &st, map[string]interface{}{"notification_id": handle}); err != nil {
			log.Printf("rearm: save subtask %d handle: %v", subtask.ID, err)
		}
	}

	countdowns, err := r.countdowns.ListWithReminders(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, cd := range countdowns {
		handle := r.rearmOne(cd.Title, cd.Date, "", cd.Reminder, schedule.DomainCountdown, user.TelegramID, now)
		if handle == cd.NotificationID {
			continue
		}
		c := cd
		if err := r.countdowns.Update(ctx, &c, map[string]interface{}{"notification_id": handle}); err != nil {
			log.Printf("rearm: save countdown %d handle: %v", cd.ID, err)
		}
	}

	return nil
}

// rearmOne schedules a fresh timer for one record and returns the new
// handle, or "" when the reminder instant has already passed.
func (r *Rearmer) rearmOne(title, date, clockTime, reminder string, domain schedule.Domain, chatID int64, now time.Time) string {
	at, ok := schedule.ReminderAt(date, clockTime, reminder, domain, now)
	if !ok || at.Before(now) {
		return ""
	}
	body := schedule.ReminderBody(reminder, title, domain)
	handle, err := r.notifier.Schedule(title, body, at, chatID)
	if err != nil {
		log.Printf("rearm: schedule %q: %v", title, err)
		return ""
	}
	return handle
}
