package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pocket-planner/internal/bot"
	"pocket-planner/internal/config"
	"pocket-planner/internal/notify"
	"pocket-planner/internal/repository"
	"pocket-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("telegram api: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	subtaskRepo := repository.NewSubtaskRepository(db)
	countdownRepo := repository.NewCountdownRepository(db)
	habitRepo := repository.NewHabitRepository(db)
	markerRepo := repository.NewMarkerRepository(db)

	notifier := notify.NewScheduler(notify.NewTelegramSender(api))
	defer notifier.Stop()

	hub := service.NewHub()
	materializer := service.NewMaterializer(taskRepo, subtaskRepo, countdownRepo, markerRepo, notifier, hub)
	taskSvc := service.NewTaskService(taskRepo, subtaskRepo, notifier, hub)
	subtaskSvc := service.NewSubtaskService(subtaskRepo, taskRepo, notifier, hub)
	countdownSvc := service.NewCountdownService(countdownRepo, notifier, hub)
	habitSvc := service.NewHabitService(habitRepo)
	agendaSvc := service.NewAgendaService(taskRepo, countdownRepo, habitSvc)
	watchSvc := service.NewWatchService(taskRepo, materializer, hub)

	// Reminder timers are in-process; rebuild them from storage on boot.
	rearmer := service.NewRearmer(userRepo, taskRepo, subtaskRepo, countdownRepo, notifier)
	{
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		if err := rearmer.RearmAll(rctx, time.Now()); err != nil {
			log.Printf("rearm reminders: %v", err)
		}
		cancel()
	}

	planner := bot.New(api, userRepo, taskSvc, subtaskSvc, countdownSvc, habitSvc, agendaSvc, watchSvc, materializer)

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleInterval(cfg.CatchupInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := planner.RunCatchUpAll(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("catch-up: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule catch-up: %v", err)
	}
	if _, err := scheduler.ScheduleDaily(cfg.DailyReportTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := planner.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("daily report: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule daily report: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Pocket planner started.")
	if err := planner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
