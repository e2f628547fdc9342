package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Fullex26/camnotify/pkg/models"
)

const (
	DefaultConfigPath = "/etc/camnotify/config.yaml"
	DefaultEnvPath    = "/etc/camnotify/env"
)

type Config struct {
	Notifications NotificationConfig `yaml:"notifications"`
	Watch         WatchConfig        `yaml:"watch"`
	Alerts        AlertConfig        `yaml:"alerts"`
	HTTP          HTTPConfig         `yaml:"http"`
	Store         StoreConfig        `yaml:"store"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Log           LogConfig          `yaml:"log"`
}

type NotificationConfig struct {
	Webhook  WebhookConfig  `yaml:"webhook"`
	Discord  DiscordConfig  `yaml:"discord"`
	Ntfy     NtfyConfig     `yaml:"ntfy"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// WebhookConfig is a user-defined third-party endpoint.
// Method is kept as the raw token so an unsupported verb is reported at send time.
type WebhookConfig struct {
	Enabled        bool                       `yaml:"enabled"`
	URL            string                     `yaml:"url"`
	Method         string                     `yaml:"method"` // DELETE, GET, PATCH, POST or PUT (case-sensitive)
	Authentication models.AuthorizationMethod `yaml:"authentication"`
	Username       string                     `yaml:"username"` // basic only
	Password       string                     `yaml:"password"` // basic only
	Token          string                     `yaml:"token"`    // bearer only
	Field          string                     `yaml:"field"`    // form field for the image part
	SendImage      bool                       `yaml:"send_image"`
	SendTypes      bool                       `yaml:"send_types"`
	Cameras        []string                   `yaml:"cameras"` // empty = all cameras
}

type DiscordConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url"`
	SendImage  bool     `yaml:"send_image"`
	Cameras    []string `yaml:"cameras"`
}

type NtfyConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Topic     string   `yaml:"topic"`
	Server    string   `yaml:"server"`
	Token     string   `yaml:"token"`
	SendImage bool     `yaml:"send_image"`
	Cameras   []string `yaml:"cameras"`
}

type TelegramConfig struct {
	Enabled   bool     `yaml:"enabled"`
	BotToken  string   `yaml:"bot_token"`
	ChatID    string   `yaml:"chat_id"`
	SendImage bool     `yaml:"send_image"`
	Cameras   []string `yaml:"cameras"`
}

// WatchConfig points at the directory the detection pipeline drops snapshots into
type WatchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type AlertConfig struct {
	Cooldown string `yaml:"cooldown"` // same camera + same types are suppressed for this long
}

type HTTPConfig struct {
	Timeout string `yaml:"timeout"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Load reads and parses the config file, expanding env vars.
// Variables from envPath are loaded first when that file exists;
// variables already set in the process take precedence.
func Load(path, envPath string) (*Config, error) {
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("loading env file: %w", err)
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sane defaults
func DefaultConfig() *Config {
	return &Config{
		Notifications: NotificationConfig{
			Webhook: WebhookConfig{
				Method:    "POST",
				Field:     "image",
				SendImage: true,
			},
			Discord:  DiscordConfig{SendImage: true},
			Ntfy:     NtfyConfig{Server: "https://ntfy.sh", SendImage: true},
			Telegram: TelegramConfig{SendImage: true},
		},
		Watch: WatchConfig{
			Enabled: false,
			Dir:     "/var/lib/camnotify/inbox",
		},
		Alerts: AlertConfig{
			Cooldown: "1m",
		},
		HTTP: HTTPConfig{
			Timeout: "30s",
		},
		Store: StoreConfig{
			Path:          "/var/lib/camnotify/dispatches.db",
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9464",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the config for errors
func (c *Config) Validate() error {
	if !c.HasNotifier() {
		return errors.New("at least one notification channel must be enabled")
	}

	if wh := c.Notifications.Webhook; wh.Enabled {
		if wh.URL == "" {
			return errors.New("webhook url is required when webhook is enabled")
		}
		switch wh.Authentication {
		case models.AuthBasic:
			if wh.Username == "" {
				return errors.New("webhook username is required for basic authentication")
			}
		case models.AuthBearer:
			if wh.Token == "" {
				return errors.New("webhook token is required for bearer authentication")
			}
		}
		if wh.SendImage && wh.Field == "" {
			return errors.New("webhook field is required when send_image is enabled")
		}
	}

	if c.Notifications.Discord.Enabled && c.Notifications.Discord.WebhookURL == "" {
		return errors.New("discord webhook_url is required when discord is enabled")
	}

	if c.Notifications.Ntfy.Enabled && c.Notifications.Ntfy.Topic == "" {
		return errors.New("ntfy topic is required when ntfy is enabled")
	}

	if c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.BotToken == "" {
			return errors.New("telegram bot_token is required when telegram is enabled")
		}
		if c.Notifications.Telegram.ChatID == "" {
			return errors.New("telegram chat_id is required when telegram is enabled")
		}
	}

	if c.Watch.Enabled && c.Watch.Dir == "" {
		return errors.New("watch dir is required when watch is enabled")
	}

	if _, err := time.ParseDuration(c.Alerts.Cooldown); err != nil {
		return fmt.Errorf("invalid alerts cooldown %q: %w", c.Alerts.Cooldown, err)
	}
	if d, err := time.ParseDuration(c.HTTP.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid http timeout %q (must be a positive duration)", c.HTTP.Timeout)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	return nil
}

// HasNotifier returns whether at least one notifier is configured
func (c *Config) HasNotifier() bool {
	return c.Notifications.Webhook.Enabled ||
		c.Notifications.Discord.Enabled ||
		c.Notifications.Ntfy.Enabled ||
		c.Notifications.Telegram.Enabled
}

// AlertCooldown returns the parsed dedup cooldown, falling back to one minute.
func (c *Config) AlertCooldown() time.Duration {
	d, err := time.ParseDuration(c.Alerts.Cooldown)
	if err != nil {
		return time.Minute
	}
	return d
}

// HTTPTimeout returns the per-dispatch timeout, falling back to 30s.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LogLevel returns the configured slog level, or info if unparseable.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
