package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken   string        `toml:"telegram_token"`
	DatabaseURL     string        `toml:"database_url"`
	CatchupInterval time.Duration `toml:"-"`
	DailyReportTime string        `toml:"daily_report_time"`

	CatchupIntervalMinutes int `toml:"catchup_interval_minutes"`
}

// Load reads configuration from an optional TOML file (POCKET_PLANNER_CONFIG)
// overlaid with environment variables. Env vars win.
func Load() (Config, error) {
	var cfg Config

	if path := strings.TrimSpace(os.Getenv("POCKET_PLANNER_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); v != "" {
		cfg.TelegramToken = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DAILY_REPORT_TIME")); v != "" {
		cfg.DailyReportTime = v
	}
	if v := strings.TrimSpace(os.Getenv("CATCHUP_INTERVAL_MINUTES")); v != "" {
		var minutes int
		if _, err := fmt.Sscanf(v, "%d", &minutes); err == nil && minutes > 0 {
			cfg.CatchupIntervalMinutes = minutes
		}
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "pocket_planner.db"
	}
	if cfg.DailyReportTime == "" {
		cfg.DailyReportTime = "09:00"
	}
	if cfg.CatchupIntervalMinutes <= 0 {
		cfg.CatchupIntervalMinutes = 30
	}
	cfg.CatchupInterval = time.Duration(cfg.CatchupIntervalMinutes) * time.Minute

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}
