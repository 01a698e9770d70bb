package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MonitoringConfig struct {
	HealthCheckPort   int  `yaml:"health_check_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type RemindersConfig struct {
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
	DefaultHoursBefore  int     `yaml:"default_hours_before"`
	SendRatePerSecond   float64 `yaml:"send_rate_per_second"`
	SendBurst           int     `yaml:"send_burst"`
}

type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
}

type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Reminders  RemindersConfig  `yaml:"reminders"`
	Sheets     SheetsConfig     `yaml:"sheets"`

	Timezone string  `yaml:"timezone"`
	Admins   []int64 `yaml:"admins"`
}

// Load reads the YAML config at path, expanding ${ENV_VAR} placeholders
// before unmarshalling and applying defaults after.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/bot.db"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Moscow"
	}
	if c.Reminders.PollIntervalSeconds <= 0 {
		c.Reminders.PollIntervalSeconds = 60
	}
	if c.Reminders.DefaultHoursBefore <= 0 {
		c.Reminders.DefaultHoursBefore = 2
	}
	if c.Reminders.SendRatePerSecond <= 0 {
		c.Reminders.SendRatePerSecond = 20
	}
	if c.Reminders.SendBurst <= 0 {
		c.Reminders.SendBurst = 30
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Bookings"
	}
}

// ReminderPollInterval returns the scheduler poll interval.
func (c *Config) ReminderPollInterval() time.Duration {
	return time.Duration(c.Reminders.PollIntervalSeconds) * time.Second
}

// IsAdmin reports whether a Telegram user id is in the admin list.
func (c *Config) IsAdmin(tgUserID int64) bool {
	for _, id := range c.Admins {
		if id == tgUserID {
			return true
		}
	}
	return false
}
