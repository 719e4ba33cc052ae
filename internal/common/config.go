package common

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Values load in order:
// defaults -> TOML file(s) -> environment overrides.
type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Redis       RedisConfig      `toml:"redis"`
	Database    DatabaseConfig   `toml:"database"`
	Platforms   PlatformsConfig  `toml:"platforms"`
	Validation  ValidationConfig `toml:"validation"`
	Results     ResultsConfig    `toml:"results"`
	Notify      NotifyConfig     `toml:"notify"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type RedisConfig struct {
	Addr     string `toml:"addr" env:"REDIS_ADDR"`
	Password string `toml:"password" env:"REDIS_PASSWORD"`
	DB       int    `toml:"db" env:"REDIS_DB"`
}

type DatabaseConfig struct {
	URL string `toml:"url" env:"DATABASE_URL"`
}

// PlatformsConfig points at the per-platform YAML directory.
type PlatformsConfig struct {
	Dir string `toml:"dir" env:"PLATFORMS_DIR"`
}

// ValidationConfig holds engine-wide scan knobs.
type ValidationConfig struct {
	MaxConsecutiveFailures int           `toml:"max_consecutive_failures" env:"VALIDATION_MAX_CONSECUTIVE_FAILURES"`
	PollInterval           time.Duration `toml:"poll_interval" env:"QUEUE_POLL_INTERVAL"`
	MaxFetchLimit          int           `toml:"max_fetch_limit"`
	BrowserHeadless        bool          `toml:"browser_headless"`
	UserAgent              string        `toml:"user_agent"`
}

// ResultsConfig holds output directories for JSONL artifacts and screenshots.
type ResultsConfig struct {
	Dir           string `toml:"dir" env:"RESULTS_DIR"`
	ScreenshotDir string `toml:"screenshot_dir" env:"SCREENSHOT_DIR"`
}

type NotifyConfig struct {
	WebhookURL     string        `toml:"webhook_url" env:"SLACK_WEBHOOK_URL"`
	AlertWebhook   string        `toml:"alert_webhook_url" env:"SLACK_ALERT_WEBHOOK_URL"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	FailureOnly    bool          `toml:"failure_only"`
}

// SchedulerConfig drives the periodic sync enqueuer. Schedules maps a
// platform name to a cron expression.
type SchedulerConfig struct {
	Enabled   bool              `toml:"enabled"`
	Schedules map[string]string `toml:"schedules"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" env:"LOG_LEVEL"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			ShutdownTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Platforms: PlatformsConfig{
			Dir: "./platforms",
		},
		Validation: ValidationConfig{
			MaxConsecutiveFailures: 2,
			PollInterval:           time.Second,
			MaxFetchLimit:          5000,
			BrowserHeadless:        true,
			UserAgent:              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Results: ResultsConfig{
			Dir:           "/app/results",
			ScreenshotDir: "/app/results/screenshots",
		},
		Notify: NotifyConfig{
			RequestTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadConfig loads defaults, then each TOML file in order (later files
// override earlier ones), then environment variables on top.
func LoadConfig(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if cfg.Validation.MaxConsecutiveFailures <= 0 {
		cfg.Validation.MaxConsecutiveFailures = 2
	}
	if cfg.Validation.PollInterval <= 0 {
		cfg.Validation.PollInterval = time.Second
	}

	return cfg, nil
}
