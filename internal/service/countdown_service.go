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

// CountdownInput carries the user-provided fields of a countdown.
type CountdownInput struct {
	Title    string
	Date     string
	Reminder string
	Repeat   string
}

func (in CountdownInput) validate() error {
	if in.Title == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := time.Parse(schedule.DateLayout, in.Date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", in.Date)
	}
	if in.Reminder != "" && !schedule.ValidReminder(schedule.DomainCountdown, in.Reminder) {
		return fmt.Errorf("unknown reminder %q", in.Reminder)
	}
	if in.Repeat != "" && !schedule.ValidRepeat(schedule.DomainCountdown, in.Repeat) {
		return fmt.Errorf("unknown repeat %q", in.Repeat)
	}
	return nil
}

// CountdownService wraps countdown business logic. Countdowns use their own
// reminder/repeat vocabulary: no daily cadence, no time-of-day offsets.
type CountdownService struct {
	countdowns *repository.CountdownRepository
	notifier   Notifier
	hub        *Hub
}

func NewCountdownService(countdowns *repository.CountdownRepository, notifier Notifier, hub *Hub) *CountdownService {
	return &CountdownService{countdowns: countdowns, notifier: notifier, hub: hub}
}

func (s *CountdownService) publish(userID uint) {
	if s.hub != nil {
		s.hub.Publish(CollectionCountdowns, userID)
	}
}

func (s *CountdownService) CreateCountdown(ctx context.Context, user *model.User, input CountdownInput) (*model.Countdown, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	countdown := model.Countdown{
		UserID:   user.ID,
		Title:    input.Title,
		Date:     input.Date,
		Reminder: normalizeLabel(input.Reminder),
		Repeat:   normalizeLabel(input.Repeat),
	}

	if at, ok := schedule.ReminderAt(countdown.Date, "", countdown.Reminder, schedule.DomainCountdown, time.Now()); ok {
		body := schedule.ReminderBody(countdown.Reminder, countdown.Title, schedule.DomainCountdown)
		handle, err := s.notifier.Schedule(countdown.Title, body, at, user.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("schedule reminder: %w", err)
		}
		countdown.NotificationID = handle
	}

	if err := s.countdowns.Create(ctx, &countdown); err != nil {
		if countdown.NotificationID != "" {
			if cerr := s.notifier.Cancel(countdown.NotificationID); cerr != nil {
				log.Printf("countdown: cancel orphaned reminder: %v", cerr)
			}
		}
		return nil, err
	}
	s.publish(user.ID)
	return &countdown, nil
}

// EditCountdown replaces a countdown's fields, cancelling the previous
// reminder before arming the new one.
func (s *CountdownService) EditCountdown(ctx context.Context, user *model.User, countdownID uint, input CountdownInput) (*model.Countdown, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	countdown, err := s.countdowns.FindByID(ctx, user.ID, countdownID)
	if err != nil {
		return nil, err
	}

	s.cancelReminder(countdown.NotificationID)
	fields := map[string]interface{}{
		"title":           input.Title,
		"date":            input.Date,
		"reminder":        normalizeLabel(input.Reminder),
		"repeat":          normalizeLabel(input.Repeat),
		"notification_id": "",
	}

	if at, ok := schedule.ReminderAt(input.Date, "", normalizeLabel(input.Reminder), schedule.DomainCountdown, time.Now()); ok {
		body := schedule.ReminderBody(normalizeLabel(input.Reminder), input.Title, schedule.DomainCountdown)
		handle, err := s.notifier.Schedule(input.Title, body, at, user.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("schedule reminder: %w", err)
		}
		fields["notification_id"] = handle
	}

	if err := s.countdowns.Update(ctx, countdown, fields); err != nil {
		return nil, err
	}
	s.publish(user.ID)
	return countdown, nil
}

func (s *CountdownService) DeleteCountdown(ctx context.Context, user *model.User, countdownID uint) error {
	if user == nil || user.ID == 0 {
		return ErrNoOwner
	}

	countdown, err := s.countdowns.FindByID(ctx, user.ID, countdownID)
	if err != nil {
		return err
	}
	s.cancelReminder(countdown.NotificationID)

	if err := s.countdowns.Delete(ctx, user.ID, countdownID); err != nil {
		return err
	}
	s.publish(user.ID)
	return nil
}

func (s *CountdownService) ListCountdowns(ctx context.Context, user *model.User) ([]model.Countdown, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNoOwner
	}
	return s.countdowns.ListByUser(ctx, user.ID)
}

// DaysLeft reports the whole calendar days between today and the countdown's
// date; negative when the date has passed.
func DaysLeft(countdown model.Countdown, now time.Time) int {
	target, err := time.ParseInLocation(schedule.DateLayout, countdown.Date, now.Location())
	if err != nil {
		return 0
	}
	return int(target.Sub(schedule.Midnight(now)).Hours() / 24)
}

func (s *CountdownService) cancelReminder(handle string) {
	if handle == "" {
		return
	}
	if err := s.notifier.Cancel(handle); err != nil {
		log.Printf("countdown: cancel reminder: %v", err)
	}
}
