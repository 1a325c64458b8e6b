package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"pocket-planner/internal/model"
	"pocket-planner/internal/repository"
	"pocket-planner/internal/schedule"
)

// AgendaService builds human-readable daily summaries for the report job.
type AgendaService struct {
	tasks      *repository.TaskRepository
	countdowns *repository.CountdownRepository
	habits     *HabitService
}

func NewAgendaService(tasks *repository.TaskRepository, countdowns *repository.CountdownRepository, habits *HabitService) *AgendaService {
	return &AgendaService{tasks: tasks, countdowns: countdowns, habits: habits}
}

// DailySummary renders the user's day: today's tasks, upcoming countdowns
// and habit streaks, formatted for Telegram HTML.
func (s *AgendaService) DailySummary(ctx context.Context, user *model.User, now time.Time) (string, error) {
	if user == nil || user.ID == 0 {
		return "", ErrNoOwner
	}

	today := schedule.DateOnly(now)
	tasks, err := s.tasks.ListByDate(ctx, user.ID, today)
	if err != nil {
		return "", err
	}
	countdowns, err := s.countdowns.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	habits, err := s.habits.ListHabits(ctx, user)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Your day</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", today))

	builder.WriteString("🔥 <b>Tasks for today</b>\n")
	if len(tasks) == 0 {
		builder.WriteString("— nothing due today\n")
	} else {
		for _, task := range tasks {
			builder.WriteString(formatTaskLine(task))
		}
	}

	upcoming := upcomingCountdowns(countdowns, now)
	if len(upcoming) > 0 {
		builder.WriteString("\n⏳ <b>Countdowns</b>\n")
		for _, cd := range upcoming {
			builder.WriteString(formatCountdownLine(cd, now))
		}
	}

	if len(habits) > 0 {
		builder.WriteString("\n🌱 <b>Habits</b>\n")
		for _, habit := range habits {
			h := habit
			streak, err := s.habits.Streak(ctx, &h, now)
			if err != nil {
				return "", err
			}
			checked, err := s.habits.CheckedInOn(ctx, &h, today)
			if err != nil {
				return "", err
			}
			builder.WriteString(formatHabitLine(h, streak, checked))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatTaskLine(task model.Task) string {
	var sb strings.Builder

	icon := "🟢"
	if task.IsCompleted {
		icon = "✅"
	} else if task.IsRepeated {
		icon = "♻️"
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(task.Title))))

	if task.ClockTime != "" && task.ClockTime != "None" {
		sb.WriteString(fmt.Sprintf(" · %s", html.EscapeString(task.ClockTime)))
	}
	if task.Reminder != "" && task.Reminder != schedule.ReminderNone {
		sb.WriteString(fmt.Sprintf("\n   🔔 %s", html.EscapeString(task.Reminder)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// upcomingCountdowns keeps countdowns due within the next 30 days, soonest
// first (the repository already orders by date).
func upcomingCountdowns(countdowns []model.Countdown, now time.Time) []model.Countdown {
	var upcoming []model.Countdown
	for _, cd := range countdowns {
		left := DaysLeft(cd, now)
		if left >= 0 && left <= 30 {
			upcoming = append(upcoming, cd)
		}
	}
	return upcoming
}

func formatCountdownLine(cd model.Countdown, now time.Time) string {
	left := DaysLeft(cd, now)
	title := html.EscapeString(strings.TrimSpace(cd.Title))
	switch left {
	case 0:
		return fmt.Sprintf("🎉 %s — today!\n", title)
	case 1:
		return fmt.Sprintf("⏳ %s — tomorrow\n", title)
	default:
		return fmt.Sprintf("⏳ %s — in %d days (%s)\n", title, left, cd.Date)
	}
}

func formatHabitLine(habit model.Habit, streak int, checkedToday bool) string {
	mark := "◻️"
	if checkedToday {
		mark = "☑️"
	}
	name := html.EscapeString(strings.TrimSpace(habit.Name))
	if streak > 1 {
		return fmt.Sprintf("%s %s — %d day streak\n", mark, name, streak)
	}
	return fmt.Sprintf("%s %s\n", mark, name)
}
