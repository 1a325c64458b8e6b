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

// Notifier schedules and cancels one-shot reminder deliveries.
type Notifier interface {
	Schedule(title, body string, at time.Time, chatID int64) (string, error)
	Cancel(handle string) error
}

// Materializer keeps recurring records up to date: template tasks and
// subtasks are cloned into dated occurrences once per cadence boundary, and
// repeating countdowns whose date has passed are advanced in place. Every
// pass is gated by a persisted marker, so invoking it any number of times
// within one boundary has a single visible effect. Per-record failures are
// reported through OnError and never abort the remaining records.
type Materializer struct {
	tasks      *repository.TaskRepository
	subtasks   *repository.SubtaskRepository
	countdowns *repository.CountdownRepository
	markers    *repository.MarkerRepository
	notifier   Notifier
	hub        *Hub

	// OnError receives per-record failures. Defaults to log.Printf.
	OnError func(error)
}

func NewMaterializer(
	tasks *repository.TaskRepository,
	subtasks *repository.SubtaskRepository,
	countdowns *repository.CountdownRepository,
	markers *repository.MarkerRepository,
	notifier Notifier,
	hub *Hub,
) *Materializer {
	return &Materializer{
		tasks:      tasks,
		subtasks:   subtasks,
		countdowns: countdowns,
		markers:    markers,
		notifier:   notifier,
		hub:        hub,
	}
}

func (m *Materializer) fail(err error) {
	if m.OnError != nil {
		m.OnError(err)
		return
	}
	log.Printf("materializer: %v", err)
}

// cadencePass describes one clone pass: its marker name and the additional
// calendar gate on top of the daily marker.
type cadencePass struct {
	cadence string
	due     func(now time.Time) bool
}

var clonePasses = []cadencePass{
	{cadence: schedule.RepeatDaily, due: func(time.Time) bool { return true }},
	{cadence: schedule.RepeatWeekly, due: func(now time.Time) bool { return now.Weekday() == time.Monday }},
	{cadence: schedule.RepeatMonthly, due: func(now time.Time) bool { return now.Day() == 1 }},
}

func markerKey(cadence, scope string, ids ...uint) string {
	key := fmt.Sprintf("%s|%s", cadence, scope)
	for _, id := range ids {
		key = fmt.Sprintf("%s|%d", key, id)
	}
	return key
}

// passDone reports whether the marker for key already covers today.
func (m *Materializer) passDone(ctx context.Context, key, today string) (bool, error) {
	marker, err := m.markers.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return marker != nil && marker.Done && marker.Date == today, nil
}

// EnsureTaskRecurrences runs the clone passes for a user's template tasks.
// Daily templates are cloned every day, Weekly ones on Mondays, Monthly ones
// on the first of the month. The marker is written only after a fully clean
// batch, so a failed record is retried on the next invocation.
func (m *Materializer) EnsureTaskRecurrences(ctx context.Context, user *model.User, now time.Time) error {
	if user == nil || user.ID == 0 {
		return fmt.Errorf("ensure task recurrences: %w", ErrNoOwner)
	}

	today := schedule.DateOnly(now)
	changed := false

	for _, pass := range clonePasses {
		if !pass.due(now) {
			continue
		}
		key := markerKey(pass.cadence, "task", user.ID)
		done, err := m.passDone(ctx, key, today)
		if err != nil {
			m.fail(err)
			continue
		}
		if done {
			continue
		}

		templates, err := m.tasks.ListTemplates(ctx, user.ID, pass.cadence)
		if err != nil {
			m.fail(fmt.Errorf("list %s task templates: %w", pass.cadence, err))
			continue
		}

		clean := true
		for _, tpl := range templates {
			if err := m.cloneTask(ctx, user, tpl, today, now); err != nil {
				m.fail(err)
				clean = false
			} else {
				changed = true
			}
		}
		if clean {
			if err := m.markers.Put(ctx, key, today, true); err != nil {
				m.fail(err)
			}
		}
	}

	if changed && m.hub != nil {
		m.hub.Publish(CollectionTasks, user.ID)
	}
	return nil
}

func (m *Materializer) cloneTask(ctx context.Context, user *model.User, tpl model.Task, today string, now time.Time) error {
	occurrence := model.Task{
		UserID:      user.ID,
		Title:       tpl.Title,
		Description: tpl.Description,
		Date:        today,
		ClockTime:   tpl.ClockTime,
		Reminder:    tpl.Reminder,
		Repeat:      tpl.Repeat,
		IsRepeated:  true,
	}

	if at, ok := schedule.ReminderAt(today, tpl.ClockTime, tpl.Reminder, schedule.DomainTask, now); ok {
		body := schedule.ReminderBody(tpl.Reminder, tpl.Title, schedule.DomainTask)
		handle, err := m.notifier.Schedule(tpl.Title, body, at, user.TelegramID)
		if err != nil {
			return fmt.Errorf("schedule reminder for task %q: %w", tpl.Title, err)
		}
		occurrence.NotificationID = handle
	}

	if err := m.tasks.Create(ctx, &occurrence); err != nil {
		// The occurrence never made it to storage; its reminder must not
		// fire against a record that does not exist.
		if occurrence.NotificationID != "" {
			if cerr := m.notifier.Cancel(occurrence.NotificationID); cerr != nil {
				log.Printf("materializer: cancel orphaned reminder: %v", cerr)
			}
		}
		return fmt.Errorf("clone task %q: %w", tpl.Title, err)
	}
	return nil
}

// EnsureSubtaskRecurrences runs the clone passes for the template subtasks of
// one parent task. The marker is scoped per (user, task) so sibling parents
// catch up independently.
func (m *Materializer) EnsureSubtaskRecurrences(ctx context.Context, user *model.User, taskID uint, now time.Time) error {
	if user == nil || user.ID == 0 {
		return fmt.Errorf("ensure subtask recurrences: %w", ErrNoOwner)
	}

	today := schedule.DateOnly(now)
	changed := false

	for _, pass := range clonePasses {
		if !pass.due(now) {
			continue
		}
		key := markerKey(pass.cadence, "subtask", user.ID, taskID)
		done, err := m.passDone(ctx, key, today)
		if err != nil {
			m.fail(err)
			continue
		}
		if done {
			continue
		}

		templates, err := m.subtasks.ListTemplates(ctx, user.ID, taskID, pass.cadence)
		if err != nil {
			m.fail(fmt.Errorf("list %s subtask templates: %w", pass.cadence, err))
			continue
		}

		clean := true
		for _, tpl := range templates {
			if err := m.cloneSubtask(ctx, user, tpl, today, now); err != nil {
				m.fail(err)
				clean = false
			} else {
				changed = true
			}
		}
		if clean {
			if err := m.markers.Put(ctx, key, today, true); err != nil {
				m.fail(err)
			}
		}
	}

	if changed && m.hub != nil {
		m.hub.Publish(CollectionSubtasks, user.ID)
	}
	return nil
}

func (m *Materializer) cloneSubtask(ctx context.Context, user *model.User, tpl model.Subtask, today string, now time.Time) error {
	occurrence := model.Subtask{
		UserID:     user.ID,
		TaskID:     tpl.TaskID,
		Title:      tpl.Title,
		Date:       today,
		ClockTime:  tpl.ClockTime,
		Reminder:   tpl.Reminder,
		Repeat:     tpl.Repeat,
		IsRepeated: true,
	}

	if at, ok := schedule.ReminderAt(today, tpl.ClockTime, tpl.Reminder, schedule.DomainTask, now); ok {
		body := schedule.ReminderBody(tpl.Reminder, tpl.Title, schedule.DomainTask)
		handle, err := m.notifier.Schedule(tpl.Title, body, at, user.TelegramID)
		if err != nil {
			return fmt.Errorf("schedule reminder for subtask %q: %w", tpl.Title, err)
		}
		occurrence.NotificationID = handle
	}

	if err := m.subtasks.Create(ctx, &occurrence); err != nil {
		if occurrence.NotificationID != "" {
			if cerr := m.notifier.Cancel(occurrence.NotificationID); cerr != nil {
				log.Printf("materializer: cancel orphaned reminder: %v", cerr)
			}
		}
		return fmt.Errorf("clone subtask %q: %w", tpl.Title, err)
	}
	return nil
}

// AdvanceCountdowns moves every repeating countdown whose date has passed to
// its next occurrence. Advancement is in place and needs no marker: once the
// date is at or past today the countdown no longer matches the query.
func (m *Materializer) AdvanceCountdowns(ctx context.Context, user *model.User, now time.Time) error {
	if user == nil || user.ID == 0 {
		return fmt.Errorf("advance countdowns: %w", ErrNoOwner)
	}

	today := schedule.DateOnly(now)
	due, err := m.countdowns.ListRepeatingBefore(ctx, user.ID, today)
	if err != nil {
		return fmt.Errorf("list due countdowns: %w", err)
	}

	changed := false
	for _, cd := range due {
		next, ok := schedule.NextOccurrence(cd.Date, cd.Repeat, now)
		if !ok || next == cd.Date {
			continue
		}

		// Cancel before rescheduling so the record never carries two live
		// handles. A failed cancel is logged and absorbed.
		if cd.NotificationID != "" {
			if err := m.notifier.Cancel(cd.NotificationID); err != nil {
				log.Printf("materializer: cancel reminder for countdown %q: %v", cd.Title, err)
			}
		}

		fields := map[string]interface{}{
			"date":            next,
			"notification_id": "",
		}
		if at, ok := schedule.ReminderAt(next, "", cd.Reminder, schedule.DomainCountdown, now); ok {
			body := schedule.ReminderBody(cd.Reminder, cd.Title, schedule.DomainCountdown)
			handle, err := m.notifier.Schedule(cd.Title, body, at, user.TelegramID)
			if err != nil {
				m.fail(fmt.Errorf("schedule reminder for countdown %q: %w", cd.Title, err))
			} else {
				fields["notification_id"] = handle
			}
		}

		countdown := cd
		if err := m.countdowns.Update(ctx, &countdown, fields); err != nil {
			m.fail(fmt.Errorf("advance countdown %q: %w", cd.Title, err))
			continue
		}
		changed = true
	}

	if changed && m.hub != nil {
		m.hub.Publish(CollectionCountdowns, user.ID)
	}
	return nil
}

// RunCatchUp performs every materialization pass for one user: tasks, the
// subtasks of each parent that has templates, and countdowns. Used by the
// periodic background job; subscriptions run the narrower passes directly.
func (m *Materializer) RunCatchUp(ctx context.Context, user *model.User, now time.Time) error {
	if err := m.EnsureTaskRecurrences(ctx, user, now); err != nil {
		return err
	}
	parents, err := m.subtasks.TemplateParents(ctx, user.ID)
	if err != nil {
		m.fail(fmt.Errorf("list subtask template parents: %w", err))
	} else {
		for _, taskID := range parents {
			if err := m.EnsureSubtaskRecurrences(ctx, user, taskID, now); err != nil {
				return err
			}
		}
	}
	return m.AdvanceCountdowns(ctx, user, now)
}
