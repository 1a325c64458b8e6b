package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"pocket-planner/internal/model"
	"pocket-planner/internal/repository"
	"pocket-planner/internal/schedule"
	"pocket-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDate
	stageTime
	stageReminder
	stageRepeat
)

type draftKind int

const (
	draftTask draftKind = iota
	draftCountdown
)

const (
	cbCompletePrefix        = "complete:"
	cbDeletePrefix          = "delete:"
	cbSubCompletePrefix     = "subdone:"
	cbCountdownMovePrefix   = "cdmove:"
	cbCountdownDeletePrefix = "cddel:"
	cbHabitCheckPrefix      = "habit:"
	cbHabitDeletePrefix     = "habitdel:"
)

const (
	btnSkip         = "⏭️ Skip"
	btnCancelDialog = "⏪ Cancel"

	menuLabelNewTask      = "➕ New task"
	menuLabelToday        = "📋 Today"
	menuLabelAllTasks     = "🗂 All tasks"
	menuLabelCountdowns   = "⏳ Countdowns"
	menuLabelNewCountdown = "➕ New countdown"
	menuLabelHabits       = "🌱 Habits"
)

// draft accumulates a task or countdown through the add conversation. A
// non-zero editID turns the countdown flow into an edit of that record.
type draft struct {
	kind      draftKind
	stage     conversationStage
	editID    uint
	title     string
	date      string
	clockTime string
	reminder  string
	repeat    string
}

// Bot routes Telegram updates to the planner services.
type Bot struct {
	api        *tgbotapi.BotAPI
	users      *repository.UserRepository
	tasks      *service.TaskService
	subtasks   *service.SubtaskService
	countdowns *service.CountdownService
	habits     *service.HabitService
	agenda     *service.AgendaService
	watch      *service.WatchService
	mat        *service.Materializer

	mu     sync.Mutex
	drafts map[int64]*draft
}

func New(
	api *tgbotapi.BotAPI,
	users *repository.UserRepository,
	tasks *service.TaskService,
	subtasks *service.SubtaskService,
	countdowns *service.CountdownService,
	habits *service.HabitService,
	agenda *service.AgendaService,
	watch *service.WatchService,
	mat *service.Materializer,
) *Bot {
	return &Bot{
		api:        api,
		users:      users,
		tasks:      tasks,
		subtasks:   subtasks,
		countdowns: countdowns,
		habits:     habits,
		agenda:     agenda,
		watch:      watch,
		mat:        mat,
		drafts:     make(map[int64]*draft),
	}
}

// Start consumes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.users.UpsertFromTelegram(ctx, msg.From.ID, msg.From.FirstName, msg.From.LastName, msg.From.UserName)
	if err != nil {
		log.Printf("bot: upsert user: %v", err)
		return
	}

	text := strings.TrimSpace(msg.Text)

	if d := b.currentDraft(msg.Chat.ID); d != nil && !msg.IsCommand() {
		b.continueDraft(ctx, msg.Chat.ID, user, d, text)
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg, user)
	case text == menuLabelNewTask:
		b.beginDraft(msg.Chat.ID, draftTask)
	case text == menuLabelNewCountdown:
		b.beginDraft(msg.Chat.ID, draftCountdown)
	case text == menuLabelToday:
		b.sendToday(ctx, msg.Chat.ID, user)
	case text == menuLabelAllTasks:
		b.sendPendingTasks(ctx, msg.Chat.ID, user)
	case text == menuLabelCountdowns:
		b.sendCountdowns(ctx, msg.Chat.ID, user)
	case text == menuLabelHabits:
		b.sendHabits(ctx, msg.Chat.ID, user)
	case strings.HasPrefix(strings.ToLower(text), "habit "):
		b.checkInHabit(ctx, msg.Chat.ID, user, strings.TrimSpace(text[len("habit "):]))
	case strings.HasPrefix(strings.ToLower(text), "sub "):
		b.addSubtask(ctx, msg.Chat.ID, user, strings.TrimSpace(text[len("sub "):]))
	case strings.HasPrefix(strings.ToLower(text), "task "):
		b.sendTaskDetail(ctx, msg.Chat.ID, user, strings.TrimSpace(text[len("task "):]))
	default:
		if date, ok := parseDateInput(text, time.Now()); ok {
			b.sendTasksOn(ctx, msg.Chat.ID, user, date)
			return
		}
		b.sendMenu(msg.Chat.ID, "Pick an action from the menu, or send a date to browse a day.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *model.User) {
	switch msg.Command() {
	case "start":
		b.sendMenu(msg.Chat.ID, fmt.Sprintf("Hi %s! I keep your tasks, countdowns and habits.", user.FirstName))
	case "today":
		b.sendToday(ctx, msg.Chat.ID, user)
	case "tasks":
		b.sendPendingTasks(ctx, msg.Chat.ID, user)
	case "countdowns":
		b.sendCountdowns(ctx, msg.Chat.ID, user)
	case "habits":
		b.sendHabits(ctx, msg.Chat.ID, user)
	case "report":
		summary, err := b.agenda.DailySummary(ctx, user, time.Now())
		if err != nil {
			b.sendError(msg.Chat.ID, err)
			return
		}
		b.sendHTML(msg.Chat.ID, summary)
	case "cancel":
		b.clearDraft(msg.Chat.ID)
		b.sendMenu(msg.Chat.ID, "Cancelled.")
	default:
		b.sendMenu(msg.Chat.ID, "Unknown command.")
	}
}

// --- add conversation ---

func (b *Bot) currentDraft(chatID int64) *draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drafts[chatID]
}

func (b *Bot) clearDraft(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.drafts, chatID)
}

func (b *Bot) beginDraft(chatID int64, kind draftKind) {
	b.mu.Lock()
	b.drafts[chatID] = &draft{kind: kind, stage: stageTitle}
	b.mu.Unlock()

	what := "task"
	if kind == draftCountdown {
		what = "countdown"
	}
	b.sendWithKeyboard(chatID, fmt.Sprintf("What should the %s be called?", what), cancelKeyboard())
}

// beginCountdownEdit opens the countdown conversation at the date stage; the
// remaining stages re-pick the reminder and repeat for the moved record.
func (b *Bot) beginCountdownEdit(chatID int64, cd model.Countdown) {
	b.mu.Lock()
	b.drafts[chatID] = &draft{
		kind:   draftCountdown,
		stage:  stageDate,
		editID: cd.ID,
		title:  cd.Title,
	}
	b.mu.Unlock()

	b.sendWithKeyboard(chatID, fmt.Sprintf("New date for %q? Send YYYY-MM-DD, or \"today\" / \"tomorrow\".", cd.Title), cancelKeyboard())
}

func (b *Bot) continueDraft(ctx context.Context, chatID int64, user *model.User, d *draft, text string) {
	if text == btnCancelDialog {
		b.clearDraft(chatID)
		b.sendMenu(chatID, "Cancelled.")
		return
	}

	switch d.stage {
	case stageTitle:
		if text == "" {
			b.sendWithKeyboard(chatID, "A name is required. Try again.", cancelKeyboard())
			return
		}
		d.title = text
		d.stage = stageDate
		b.sendWithKeyboard(chatID, "When is it due? Send YYYY-MM-DD, or \"today\" / \"tomorrow\".", cancelKeyboard())

	case stageDate:
		date, ok := parseDateInput(text, time.Now())
		if !ok {
			b.sendWithKeyboard(chatID, "I could not read that date. Use YYYY-MM-DD.", cancelKeyboard())
			return
		}
		d.date = date
		if d.kind == draftCountdown {
			d.stage = stageReminder
			b.sendWithKeyboard(chatID, "Remind you ahead of it?", labelKeyboard(schedule.CountdownReminders()))
			return
		}
		d.stage = stageTime
		b.sendWithKeyboard(chatID, "At what time? Send e.g. \"5:30 PM\", or skip.", skipKeyboard())

	case stageTime:
		if text != btnSkip {
			if _, ok := schedule.ParseClock(text); !ok {
				b.sendWithKeyboard(chatID, "Times look like \"5:30 PM\". Try again or skip.", skipKeyboard())
				return
			}
			d.clockTime = text
		}
		d.stage = stageReminder
		b.sendWithKeyboard(chatID, "Remind you?", labelKeyboard(schedule.TaskReminders()))

	case stageReminder:
		domain := schedule.DomainTask
		if d.kind == draftCountdown {
			domain = schedule.DomainCountdown
		}
		if !schedule.ValidReminder(domain, text) {
			b.sendWithKeyboard(chatID, "Pick a reminder from the keyboard.", labelKeyboard(reminderLabels(domain)))
			return
		}
		d.reminder = text
		d.stage = stageRepeat
		b.sendWithKeyboard(chatID, "Should it repeat?", labelKeyboard(repeatLabels(domain)))

	case stageRepeat:
		domain := schedule.DomainTask
		if d.kind == draftCountdown {
			domain = schedule.DomainCountdown
		}
		if !schedule.ValidRepeat(domain, text) {
			b.sendWithKeyboard(chatID, "Pick a cadence from the keyboard.", labelKeyboard(repeatLabels(domain)))
			return
		}
		d.repeat = text
		b.clearDraft(chatID)
		b.saveDraft(ctx, chatID, user, d)
	}
}

func (b *Bot) saveDraft(ctx context.Context, chatID int64, user *model.User, d *draft) {
	if d.kind == draftCountdown {
		input := service.CountdownInput{
			Title:    d.title,
			Date:     d.date,
			Reminder: d.reminder,
			Repeat:   d.repeat,
		}
		if d.editID != 0 {
			countdown, err := b.countdowns.EditCountdown(ctx, user, d.editID, input)
			if err != nil {
				b.sendError(chatID, err)
				return
			}
			b.sendMenu(chatID, fmt.Sprintf("Countdown %q moved to %s.", countdown.Title, d.date))
			return
		}
		countdown, err := b.countdowns.CreateCountdown(ctx, user, input)
		if err != nil {
			b.sendError(chatID, err)
			return
		}
		b.sendMenu(chatID, fmt.Sprintf("Countdown %q saved for %s.", countdown.Title, countdown.Date))
		return
	}

	task, err := b.tasks.CreateTask(ctx, user, service.TaskInput{
		Title:     d.title,
		Date:      d.date,
		ClockTime: d.clockTime,
		Reminder:  d.reminder,
		Repeat:    d.repeat,
	})
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMenu(chatID, fmt.Sprintf("Task %q saved for %s.", task.Title, task.Date))
}

func reminderLabels(domain schedule.Domain) []string {
	if domain == schedule.DomainCountdown {
		return schedule.CountdownReminders()
	}
	return schedule.TaskReminders()
}

func repeatLabels(domain schedule.Domain) []string {
	if domain == schedule.DomainCountdown {
		return schedule.CountdownRepeats()
	}
	return schedule.TaskRepeats()
}

// --- listings ---

// sendToday goes through the live subscription so the recurrence catch-up
// pass fires before the listing, then detaches after the first snapshot.
func (b *Bot) sendToday(ctx context.Context, chatID int64, user *model.User) {
	snapshots, stop, err := b.watch.SubscribeToday(ctx, user, time.Now())
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	defer stop()

	select {
	case snap, ok := <-snapshots:
		if !ok {
			b.sendError(chatID, errors.New("subscription closed"))
			return
		}
		if len(snap.Tasks) == 0 {
			b.sendMenu(chatID, "Nothing due today. 🎉")
			return
		}
		for _, task := range snap.Tasks {
			b.sendTaskCard(ctx, chatID, user, task)
		}
	case <-ctx.Done():
	}
}

func (b *Bot) sendTaskCard(ctx context.Context, chatID int64, user *model.User, task model.Task) {
	var sb strings.Builder
	icon := "🟢"
	if task.IsCompleted {
		icon = "✅"
	} else if task.IsRepeated {
		icon = "♻️"
	}
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>", icon, html.EscapeString(task.Title)))
	if task.Date != "" {
		sb.WriteString(" — " + task.Date)
	}
	if task.ClockTime != "" && task.ClockTime != "None" {
		sb.WriteString(" · " + html.EscapeString(task.ClockTime))
	}
	if task.IsTemplate() {
		sb.WriteString(fmt.Sprintf(" · repeats %s", strings.ToLower(task.Repeat)))
	}
	if task.Description != "" {
		sb.WriteString("\n📝 " + html.EscapeString(task.Description))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if !task.IsCompleted {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbCompletePrefix+strconv.FormatUint(uint64(task.ID), 10)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbDeletePrefix+strconv.FormatUint(uint64(task.ID), 10)),
		))
	}

	subtasks, err := b.subtasks.ListByTask(ctx, user, task.ID)
	if err == nil {
		for _, sub := range subtasks {
			mark := "▫️"
			if sub.IsCompleted {
				mark = "✔️"
			}
			sb.WriteString(fmt.Sprintf("\n  %s %s", mark, html.EscapeString(sub.Title)))
			if !sub.IsCompleted {
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData(
						"✔️ "+sub.Title,
						cbSubCompletePrefix+strconv.FormatUint(uint64(sub.ID), 10),
					),
				))
			}
		}
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("bot: send task card: %v", err)
	}
}

// sendTaskDetail handles "task <id>": one card with its action buttons.
func (b *Bot) sendTaskDetail(ctx context.Context, chatID int64, user *model.User, rest string) {
	id, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		b.sendMenu(chatID, "Format: task <task id>")
		return
	}
	task, err := b.tasks.GetTask(ctx, user, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			b.sendMenu(chatID, "No such task.")
			return
		}
		b.sendError(chatID, err)
		return
	}
	b.sendTaskCard(ctx, chatID, user, *task)
}

// sendTasksOn lists the tasks due on one calendar day. Reached by sending a
// bare date, "today" or "tomorrow" outside of any conversation.
func (b *Bot) sendTasksOn(ctx context.Context, chatID int64, user *model.User, date string) {
	tasks, err := b.tasks.ListByDate(ctx, user, date)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if len(tasks) == 0 {
		b.sendMenu(chatID, fmt.Sprintf("Nothing due on %s.", date))
		return
	}
	for _, task := range tasks {
		b.sendTaskCard(ctx, chatID, user, task)
	}
}

func (b *Bot) sendPendingTasks(ctx context.Context, chatID int64, user *model.User) {
	tasks, err := b.tasks.ListPending(ctx, user)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if len(tasks) == 0 {
		b.sendMenu(chatID, "No open tasks.")
		return
	}
	for _, task := range tasks {
		b.sendTaskCard(ctx, chatID, user, task)
	}
}

// sendCountdowns advances overdue repeating countdowns first, fire and
// forget, then lists what is stored. A race with the advancement pass only
// means the next listing shows the moved dates.
func (b *Bot) sendCountdowns(ctx context.Context, chatID int64, user *model.User) {
	go func() {
		mctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := b.mat.AdvanceCountdowns(mctx, user, time.Now()); err != nil {
			log.Printf("bot: advance countdowns: %v", err)
		}
	}()

	countdowns, err := b.countdowns.ListCountdowns(ctx, user)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if len(countdowns) == 0 {
		b.sendMenu(chatID, "No countdowns yet.")
		return
	}

	now := time.Now()
	for _, cd := range countdowns {
		left := service.DaysLeft(cd, now)
		var line string
		switch {
		case left == 0:
			line = fmt.Sprintf("🎉 <b>%s</b> — today!", html.EscapeString(cd.Title))
		case left > 0:
			line = fmt.Sprintf("⏳ <b>%s</b> — %d days left (%s)", html.EscapeString(cd.Title), left, cd.Date)
		default:
			line = fmt.Sprintf("📆 <b>%s</b> — %d days ago (%s)", html.EscapeString(cd.Title), -left, cd.Date)
		}
		if cd.Repeat != "" && cd.Repeat != schedule.RepeatNone {
			line += fmt.Sprintf(" · repeats %s", strings.ToLower(cd.Repeat))
		}

		msg := tgbotapi.NewMessage(chatID, line)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📆 Move", cbCountdownMovePrefix+strconv.FormatUint(uint64(cd.ID), 10)),
				tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbCountdownDeletePrefix+strconv.FormatUint(uint64(cd.ID), 10)),
			),
		)
		if _, err := b.api.Send(msg); err != nil {
			log.Printf("bot: send countdown: %v", err)
		}
	}
}

func (b *Bot) sendHabits(ctx context.Context, chatID int64, user *model.User) {
	habits, err := b.habits.ListHabits(ctx, user)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if len(habits) == 0 {
		b.sendMenu(chatID, "No habits yet. Send \"habit <name>\" to start one.")
		return
	}

	now := time.Now()
	today := schedule.DateOnly(now)
	for _, habit := range habits {
		h := habit
		streak, err := b.habits.Streak(ctx, &h, now)
		if err != nil {
			b.sendError(chatID, err)
			return
		}
		checked, err := b.habits.CheckedInOn(ctx, &h, today)
		if err != nil {
			b.sendError(chatID, err)
			return
		}

		mark := "◻️"
		if checked {
			mark = "☑️"
		}
		line := fmt.Sprintf("%s <b>%s</b>", mark, html.EscapeString(h.Name))
		if streak > 1 {
			line += fmt.Sprintf(" — %d day streak 🔥", streak)
		}

		msg := tgbotapi.NewMessage(chatID, line)
		msg.ParseMode = tgbotapi.ModeHTML
		var row []tgbotapi.InlineKeyboardButton
		if !checked {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("☑️ Check in", cbHabitCheckPrefix+strconv.FormatUint(uint64(h.ID), 10)))
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbHabitDeletePrefix+strconv.FormatUint(uint64(h.ID), 10)))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(row...))
		if _, err := b.api.Send(msg); err != nil {
			log.Printf("bot: send habit: %v", err)
		}
	}
}

func (b *Bot) checkInHabit(ctx context.Context, chatID int64, user *model.User, name string) {
	if name == "" {
		b.sendMenu(chatID, "Which habit? Send \"habit <name>\".")
		return
	}
	habit, err := b.habits.CheckIn(ctx, user, name, time.Now())
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	streak, err := b.habits.Streak(ctx, habit, time.Now())
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if streak > 1 {
		b.sendMenu(chatID, fmt.Sprintf("%s checked in — %d days in a row. 🔥", habit.Name, streak))
		return
	}
	b.sendMenu(chatID, fmt.Sprintf("%s checked in.", habit.Name))
}

// addSubtask handles "sub <taskID> <title>": a quick subtask due today.
func (b *Bot) addSubtask(ctx context.Context, chatID int64, user *model.User, rest string) {
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) != 2 {
		b.sendMenu(chatID, "Format: sub <task id> <title>")
		return
	}
	taskID, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		b.sendMenu(chatID, "Format: sub <task id> <title>")
		return
	}

	subtask, err := b.subtasks.CreateSubtask(ctx, user, uint(taskID), service.SubtaskInput{
		Title: strings.TrimSpace(parts[1]),
		Date:  schedule.DateOnly(time.Now()),
	})
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMenu(chatID, fmt.Sprintf("Subtask %q added.", subtask.Title))
}

// --- callbacks ---

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	user, err := b.users.FindByTelegramID(ctx, cb.From.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			b.answerCallback(cb.ID, "Send /start first.")
			return
		}
		log.Printf("bot: find user: %v", err)
		return
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		if id, ok := parseID(data, cbCompletePrefix); ok {
			if _, err := b.tasks.CompleteTask(ctx, user, id); err != nil {
				b.answerCallback(cb.ID, "Could not complete the task.")
				return
			}
			b.answerCallback(cb.ID, "Done! ✅")
		}
	case strings.HasPrefix(data, cbDeletePrefix):
		if id, ok := parseID(data, cbDeletePrefix); ok {
			if err := b.tasks.DeleteTask(ctx, user, id); err != nil {
				b.answerCallback(cb.ID, "Could not delete the task.")
				return
			}
			b.answerCallback(cb.ID, "Deleted.")
		}
	case strings.HasPrefix(data, cbSubCompletePrefix):
		if id, ok := parseID(data, cbSubCompletePrefix); ok {
			if _, err := b.subtasks.CompleteSubtask(ctx, user, id); err != nil {
				b.answerCallback(cb.ID, "Could not complete the subtask.")
				return
			}
			b.answerCallback(cb.ID, "Done! ✅")
		}
	case strings.HasPrefix(data, cbCountdownMovePrefix):
		if id, ok := parseID(data, cbCountdownMovePrefix); ok {
			countdowns, err := b.countdowns.ListCountdowns(ctx, user)
			if err != nil {
				b.answerCallback(cb.ID, "Could not open the countdown.")
				return
			}
			for _, cd := range countdowns {
				if cd.ID == id {
					b.answerCallback(cb.ID, "")
					b.beginCountdownEdit(chatID, cd)
					return
				}
			}
			b.answerCallback(cb.ID, "Countdown not found.")
		}
	case strings.HasPrefix(data, cbCountdownDeletePrefix):
		if id, ok := parseID(data, cbCountdownDeletePrefix); ok {
			if err := b.countdowns.DeleteCountdown(ctx, user, id); err != nil {
				b.answerCallback(cb.ID, "Could not delete the countdown.")
				return
			}
			b.answerCallback(cb.ID, "Deleted.")
		}
	case strings.HasPrefix(data, cbHabitCheckPrefix):
		if id, ok := parseID(data, cbHabitCheckPrefix); ok {
			habits, err := b.habits.ListHabits(ctx, user)
			if err != nil {
				b.answerCallback(cb.ID, "Could not check in.")
				return
			}
			for _, h := range habits {
				if h.ID == id {
					if _, err := b.habits.CheckIn(ctx, user, h.Name, time.Now()); err != nil {
						b.answerCallback(cb.ID, "Could not check in.")
						return
					}
					b.answerCallback(cb.ID, "Checked in! ☑️")
					return
				}
			}
			b.answerCallback(cb.ID, "Habit not found.")
		}
	case strings.HasPrefix(data, cbHabitDeletePrefix):
		if id, ok := parseID(data, cbHabitDeletePrefix); ok {
			if err := b.habits.DeleteHabit(ctx, user, id); err != nil {
				b.answerCallback(cb.ID, "Could not delete the habit.")
				return
			}
			b.answerCallback(cb.ID, "Deleted.")
		}
	default:
		log.Printf("bot: unknown callback %q from chat %d", data, chatID)
	}
}

func parseID(data, prefix string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimPrefix(data, prefix), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		log.Printf("bot: answer callback: %v", err)
	}
}

// --- reports ---

// SendDailyReports pushes the agenda summary to every known user. Called by
// the cron daily job.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.users.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	now := time.Now()
	for _, user := range users {
		u := user
		if err := b.mat.RunCatchUp(ctx, &u, now); err != nil {
			log.Printf("bot: catch up for user %d: %v", u.ID, err)
		}
		summary, err := b.agenda.DailySummary(ctx, &u, now)
		if err != nil {
			log.Printf("bot: summary for user %d: %v", u.ID, err)
			continue
		}
		b.sendHTML(u.TelegramID, summary)
	}
	return nil
}

// RunCatchUpAll runs the recurrence catch-up for every user. Called by the
// periodic cron job so recurrences materialize even when nobody opens the
// bot.
func (b *Bot) RunCatchUpAll(ctx context.Context) error {
	users, err := b.users.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	now := time.Now()
	for _, user := range users {
		u := user
		if err := b.mat.RunCatchUp(ctx, &u, now); err != nil {
			log.Printf("bot: catch up for user %d: %v", u.ID, err)
		}
	}
	return nil
}

// --- helpers ---

func (b *Bot) sendMenu(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = menuKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("bot: send: %v", err)
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("bot: send: %v", err)
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, kb tgbotapi.ReplyKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("bot: send: %v", err)
	}
}

func (b *Bot) sendError(chatID int64, err error) {
	log.Printf("bot: %v", err)
	b.sendMenu(chatID, "Something went wrong: "+err.Error())
}

func menuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelAllTasks),
			tgbotapi.NewKeyboardButton(menuLabelCountdowns),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewCountdown),
			tgbotapi.NewKeyboardButton(menuLabelHabits),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// labelKeyboard lays labels out two per row plus a cancel row.
func labelKeyboard(labels []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(labels); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(labels[i])}
		if i+1 < len(labels) {
			row = append(row, tgbotapi.NewKeyboardButton(labels[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnCancelDialog)})
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func parseDateInput(text string, now time.Time) (string, bool) {
	switch strings.ToLower(text) {
	case "today":
		return schedule.DateOnly(now), true
	case "tomorrow":
		return schedule.DateOnly(now.AddDate(0, 0, 1)), true
	}
	if _, err := time.Parse(schedule.DateLayout, text); err != nil {
		return "", false
	}
	return text, true
}
