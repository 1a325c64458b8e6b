package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"pocket-planner/internal/model"
	"pocket-planner/internal/repository"
)

// fakeNotifier records schedule/cancel calls and can be told to fail
// scheduling for specific titles.
type fakeNotifier struct {
	mu        sync.Mutex
	n         int
	scheduled []scheduledReminder
	cancelled []string
	failFor   string
}

type scheduledReminder struct {
	title string
	body  string
	at    time.Time
}

func (f *fakeNotifier) Schedule(title, body string, at time.Time, chatID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && f.failFor == title {
		return "", fmt.Errorf("scheduling rejected for %q", title)
	}
	f.n++
	f.scheduled = append(f.scheduled, scheduledReminder{title: title, body: body, at: at})
	return fmt.Sprintf("handle-%d", f.n), nil
}

func (f *fakeNotifier) Cancel(handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, handle)
	return nil
}

func (f *fakeNotifier) scheduleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

type fixture struct {
	db         *gorm.DB
	user       *model.User
	tasks      *repository.TaskRepository
	subtasks   *repository.SubtaskRepository
	countdowns *repository.CountdownRepository
	markers    *repository.MarkerRepository
	notifier   *fakeNotifier
	mat        *Materializer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.NewDB(dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	user := &model.User{TelegramID: 42, FirstName: "Pat"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	notifier := &fakeNotifier{}
	f := &fixture{
		db:         db,
		user:       user,
		tasks:      repository.NewTaskRepository(db),
		subtasks:   repository.NewSubtaskRepository(db),
		countdowns: repository.NewCountdownRepository(db),
		markers:    repository.NewMarkerRepository(db),
		notifier:   notifier,
	}
	f.mat = NewMaterializer(f.tasks, f.subtasks, f.countdowns, f.markers, notifier, nil)
	return f
}

func (f *fixture) countTasks(t *testing.T, where string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&model.Task{}).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	return count
}

// Tuesday 2024-03-12: only the daily pass is due.
var tuesday = time.Date(2024, time.March, 12, 8, 0, 0, 0, time.Local)

// Monday 2024-03-11: daily and weekly passes are due.
var monday = time.Date(2024, time.March, 11, 8, 0, 0, 0, time.Local)

func TestDailyMaterializationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	template := model.Task{
		UserID:   f.user.ID,
		Title:    "Morning run",
		Date:     "2024-03-01",
		Reminder: "On the day",
		Repeat:   "Daily",
	}
	if err := f.tasks.Create(ctx, &template); err != nil {
		t.Fatal(err)
	}

	if err := f.mat.EnsureTaskRecurrences(ctx, f.user, tuesday); err != nil {
		t.Fatal(err)
	}
	if err := f.mat.EnsureTaskRecurrences(ctx, f.user, tuesday); err != nil {
		t.Fatal(err)
	}

	if got := f.countTasks(t, "is_repeated = ?", true); got != 1 {
		t.Fatalf("occurrences = %d, want exactly 1 after double invocation", got)
	}
	if got := f.notifier.scheduleCount(); got != 1 {
		t.Fatalf("scheduled reminders = %d, want 1", got)
	}

	var occurrence model.Task
	if err := f.db.Where("is_repeated = ?", true).First(&occurrence).Error; err != nil {
		t.Fatal(err)
	}
	if occurrence.Date != "2024-03-12" {
		t.Errorf("occurrence date = %q, want today", occurrence.Date)
	}
	if occurrence.IsCompleted {
		t.Error("occurrence should start pending")
	}
	if occurrence.NotificationID == "" {
		t.Error("occurrence should carry a reminder handle")
	}

	// The template itself is untouched.
	var tpl model.Task
	if err := f.db.First(&tpl, template.ID).Error; err != nil {
		t.Fatal(err)
	}
	if tpl.Date != "2024-03-01" || tpl.IsRepeated {
		t.Error("template must not be modified by materialization")
	}
}

func TestDailyMaterializationNextDayClonesAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	template := model.Task{UserID: f.user.ID, Title: "Journal", Date: "2024-03-01", Reminder: "None", Repeat: "Daily"}
	if err := f.tasks.Create(ctx, &template); err != nil {
		t.Fatal(err)
	}

	if err := f.mat.EnsureTaskRecurrences(ctx, f.user, tuesday); err != nil {
		t.Fatal(err)
	}
	wednesday := tuesday.AddDate(0, 0, 1)
	if err := f.mat.EnsureTaskRecurrences(ctx, f.user, wednesday); err != nil {
		t.Fatal(err)
	}

	if got := f.countTasks(t, "is_repeated = ?", true); got != 2 {
		t.Fatalf("occurrences = %d, want one per day", got)
	}
	// Occurrences are never templates: only the original was cloned.
	if got := f.countTasks(t, "is_repeated = ? AND date = ?", true, "2024-03-13"); got != 1 {
		t.Fatalf("occurrences for day two = %d, want 1", got)
	}
	// A reminder label of None schedules nothing.
	if got := f.notifier.scheduleCount(); got != 0 {
		t.Fatalf("scheduled reminders = %d, want 0", got)
	}
}

func TestWeeklyMaterializationGatedOnMonday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	template := model.Task{UserID: f.user.ID, Title: "Weekly review", Date: "2024-03-01", Reminder: "None", Repeat: "Weekly"}
	if err := f.tasks.Create(ctx, &template); err != nil {
		t.Fatal(err)
	}

	if err := f.mat.EnsureTaskRecurrences(ctx, f.user, tuesday); err != nil {
		t.Fatal(err)
	}
	if got := f.countTasks(t, "is_repeated = ?", true); got != 0 {
		t.Fatalf("occurrences on a Tuesday = %d, want 0", got)
	}

	if err := f.mat.EnsureTaskRecurrences(ctx, f.user, monday); err != nil {
		t.Fatal(err)
	}
	if err := f.mat.EnsureTaskRecurrences(ctx, f.user, monday); err != nil {
		t.Fatal(err)
	}
	if got := f.countTasks(t, "is_repeated = ?", true); got != 1 {
		t.Fatalf("occurrences after Monday = %d, want 1", got)
	}
}

func TestSubtaskMaterializationScopedPerParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent := model.Task{UserID: f.user.ID, Title: "Release", Date: "2024-03-12", Reminder: "None", Repeat: "None"}
	if err := f.tasks.Create(ctx, &parent); err != nil {
		t.Fatal(err)
	}
	other := model.Task{UserID: f.user.ID, Title: "Other", Date: "2024-03-12", Reminder: "None", Repeat: "None"}
	if err := f.tasks.Create(ctx, &other); err != nil {
		t.Fatal(err)
	}

	tpl := model.Subtask{UserID: f.user.ID, TaskID: parent.ID, Title: "Check CI", Date: "2024-03-01", Reminder: "None", Repeat: "Daily"}
	if err := f.subtasks.Create(ctx, &tpl); err != nil {
		t.Fatal(err)
	}

	if err := f.mat.EnsureSubtaskRecurrences(ctx, f.user, parent.ID, tuesday); err != nil {
		t.Fatal(err)
	}
	// Materializing a different parent is independently gated and clones
	// nothing here.
	if err := f.mat.EnsureSubtaskRecurrences(ctx, f.user, other.ID, tuesday); err != nil {
		t.Fatal(err)
	}
	if err := f.mat.EnsureSubtaskRecurrences(ctx, f.user, parent.ID, tuesday); err != nil {
		t.Fatal(err)
	}

	var count int64
	if err := f.db.Model(&model.Subtask{}).Where("is_repeated = ?", true).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("subtask occurrences = %d, want 1", count)
	}
}

func TestAdvanceCountdowns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	overdue := model.Countdown{
		UserID:         f.user.ID,
		Title:          "Rent",
		Date:           "2024-01-01",
		Reminder:       "1 week early",
		Repeat:         "Monthly",
		NotificationID: "stale-handle",
	}
	if err := f.countdowns.Create(ctx, &overdue); err != nil {
		t.Fatal(err)
	}
	silent := model.Countdown{
		UserID:   f.user.ID,
		Title:    "Water plants",
		Date:     "2024-03-06",
		Reminder: "None",
		Repeat:   "Weekly",
	}
	if err := f.countdowns.Create(ctx, &silent); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2024, time.March, 15, 8, 0, 0, 0, time.Local)
	if err := f.mat.AdvanceCountdowns(ctx, f.user, now); err != nil {
		t.Fatal(err)
	}

	var rent model.Countdown
	if err := f.db.First(&rent, overdue.ID).Error; err != nil {
		t.Fatal(err)
	}
	if rent.Date != "2024-04-01" {
		t.Errorf("rent date = %q, want 2024-04-01", rent.Date)
	}
	if rent.NotificationID == "" || rent.NotificationID == "stale-handle" {
		t.Errorf("rent handle = %q, want a fresh one", rent.NotificationID)
	}

	cancelled := false
	for _, h := range f.notifier.cancelled {
		if h == "stale-handle" {
			cancelled = true
		}
	}
	if !cancelled {
		t.Error("stale handle was not cancelled before rescheduling")
	}

	var plants model.Countdown
	if err := f.db.First(&plants, silent.ID).Error; err != nil {
		t.Fatal(err)
	}
	if plants.Date != "2024-03-20" {
		t.Errorf("plants date = %q, want 2024-03-20", plants.Date)
	}
	if plants.NotificationID != "" {
		t.Errorf("plants handle = %q, want cleared", plants.NotificationID)
	}

	// A second pass finds nothing due.
	before := f.notifier.scheduleCount()
	if err := f.mat.AdvanceCountdowns(ctx, f.user, now); err != nil {
		t.Fatal(err)
	}
	if f.notifier.scheduleCount() != before {
		t.Error("second pass rescheduled an already-advanced countdown")
	}
}

func TestMaterializerFailureIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.failFor = "Doomed"

	var reported []error
	f.mat.OnError = func(err error) { reported = append(reported, err) }

	good := model.Task{UserID: f.user.ID, Title: "Fine", Date: "2024-03-01", Reminder: "On the day", Repeat: "Daily"}
	bad := model.Task{UserID: f.user.ID, Title: "Doomed", Date: "2024-03-01", Reminder: "On the day", Repeat: "Daily"}
	if err := f.tasks.Create(ctx, &good); err != nil {
		t.Fatal(err)
	}
	if err := f.tasks.Create(ctx, &bad); err != nil {
		t.Fatal(err)
	}

	if err := f.mat.EnsureTaskRecurrences(ctx, f.user, tuesday); err != nil {
		t.Fatal(err)
	}

	if got := f.countTasks(t, "is_repeated = ? AND title = ?", true, "Fine"); got != 1 {
		t.Errorf("healthy sibling occurrences = %d, want 1", got)
	}
	if got := f.countTasks(t, "is_repeated = ? AND title = ?", true, "Doomed"); got != 0 {
		t.Errorf("failed record occurrences = %d, want 0", got)
	}
	if len(reported) == 0 {
		t.Error("failure was not surfaced to the error callback")
	}

	// The marker is withheld after a dirty batch so the next invocation
	// retries the failed record.
	marker, err := f.markers.Get(ctx, "Daily|task|"+fmt.Sprint(f.user.ID))
	if err != nil {
		t.Fatal(err)
	}
	if marker != nil && marker.Done && marker.Date == "2024-03-12" {
		t.Error("marker written despite a failed record")
	}
}

func TestMaterializerRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.mat.EnsureTaskRecurrences(ctx, nil, tuesday); err == nil {
		t.Error("nil user should fail fast")
	}
	if err := f.mat.AdvanceCountdowns(ctx, &model.User{}, tuesday); err == nil {
		t.Error("zero-id user should fail fast")
	}
}
