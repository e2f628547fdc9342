package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Fullex26/camnotify/pkg/models"
)

func writeConfigFile(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalValidConfig = `
notifications:
  webhook:
    enabled: true
    url: "http://example.com/hook"
`

// validConfig returns defaults with the webhook enabled so Validate passes.
func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Notifications.Webhook.Enabled = true
	cfg.Notifications.Webhook.URL = "http://example.com/hook"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	wh := cfg.Notifications.Webhook
	if wh.Method != "POST" {
		t.Errorf("Webhook.Method = %q, want POST", wh.Method)
	}
	if wh.Field != "image" {
		t.Errorf("Webhook.Field = %q, want image", wh.Field)
	}
	if !wh.SendImage {
		t.Error("Webhook.SendImage should default to true")
	}
	if wh.SendTypes {
		t.Error("Webhook.SendTypes should default to false")
	}
	if wh.Authentication != models.AuthNone {
		t.Errorf("Webhook.Authentication = %v, want none", wh.Authentication)
	}
	if cfg.Alerts.Cooldown != "1m" {
		t.Errorf("Alerts.Cooldown = %q, want 1m", cfg.Alerts.Cooldown)
	}
	if cfg.Store.RetentionDays != 30 {
		t.Errorf("Store.RetentionDays = %d, want 30", cfg.Store.RetentionDays)
	}
	if cfg.Notifications.Ntfy.Server != "https://ntfy.sh" {
		t.Errorf("Ntfy.Server = %q", cfg.Notifications.Ntfy.Server)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfigFile(t, minimalValidConfig)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Notifications.Webhook.Enabled {
		t.Error("webhook should be enabled")
	}
	// Defaults survive a partial webhook block.
	if cfg.Notifications.Webhook.Method != "POST" {
		t.Errorf("method = %q, want POST", cfg.Notifications.Webhook.Method)
	}
	if cfg.Notifications.Webhook.Field != "image" {
		t.Errorf("field = %q, want image", cfg.Notifications.Webhook.Field)
	}
}

func TestLoad_FullWebhook(t *testing.T) {
	yaml := `
notifications:
  webhook:
    enabled: true
    url: "https://api.example.com/events"
    method: "PUT"
    authentication: "Bearer"
    token: "abc123"
    field: "snapshot"
    send_image: false
    send_types: true
    cameras: ["Driveway", "Garden"]
`
	path := writeConfigFile(t, yaml)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	wh := cfg.Notifications.Webhook
	if wh.Method != "PUT" {
		t.Errorf("Method = %q", wh.Method)
	}
	if wh.Authentication != models.AuthBearer {
		t.Errorf("Authentication = %v, want bearer", wh.Authentication)
	}
	if wh.Token != "abc123" || wh.Field != "snapshot" {
		t.Errorf("Token/Field = %q/%q", wh.Token, wh.Field)
	}
	if wh.SendImage || !wh.SendTypes {
		t.Errorf("SendImage/SendTypes = %v/%v", wh.SendImage, wh.SendTypes)
	}
	if len(wh.Cameras) != 2 || wh.Cameras[1] != "Garden" {
		t.Errorf("Cameras = %v", wh.Cameras)
	}
}

func TestLoad_UnknownAuthentication(t *testing.T) {
	yaml := `
notifications:
  webhook:
    enabled: true
    url: "http://example.com"
    authentication: "digest"
`
	path := writeConfigFile(t, yaml)
	_, err := Load(path, "")
	if err == nil {
		t.Fatal("expected error for unknown authentication")
	}
	if !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "parsing config")
	}
}

func TestLoad_UnsupportedMethodIsNotRejected(t *testing.T) {
	yaml := `
notifications:
  webhook:
    enabled: true
    url: "http://example.com"
    method: "TRACE"
`
	path := writeConfigFile(t, yaml)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Notifications.Webhook.Method != "TRACE" {
		t.Errorf("Method = %q, want TRACE kept verbatim", cfg.Notifications.Webhook.Method)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("CAMNOTIFY_TEST_USER", "alice")
	t.Setenv("CAMNOTIFY_TEST_PASS", "s3cret")

	yaml := `
notifications:
  webhook:
    enabled: true
    url: "http://example.com"
    authentication: basic
    username: "${CAMNOTIFY_TEST_USER}"
    password: "${CAMNOTIFY_TEST_PASS}"
`
	path := writeConfigFile(t, yaml)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Notifications.Webhook.Username != "alice" {
		t.Errorf("Username = %q, want %q", cfg.Notifications.Webhook.Username, "alice")
	}
	if cfg.Notifications.Webhook.Password != "s3cret" {
		t.Errorf("Password = %q, want %q", cfg.Notifications.Webhook.Password, "s3cret")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	// Registered so t.Setenv restores the variable once godotenv has set it.
	t.Setenv("CAMNOTIFY_ENVFILE_TOKEN", "")
	os.Unsetenv("CAMNOTIFY_ENVFILE_TOKEN")

	envPath := filepath.Join(t.TempDir(), "env")
	if err := os.WriteFile(envPath, []byte("CAMNOTIFY_ENVFILE_TOKEN=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	yaml := `
notifications:
  webhook:
    enabled: true
    url: "http://example.com"
    authentication: bearer
    token: "${CAMNOTIFY_ENVFILE_TOKEN}"
`
	path := writeConfigFile(t, yaml)
	cfg, err := Load(path, envPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Notifications.Webhook.Token != "from-file" {
		t.Errorf("Token = %q, want %q", cfg.Notifications.Webhook.Token, "from-file")
	}
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	path := writeConfigFile(t, minimalValidConfig)
	if _, err := Load(path, "/nonexistent/env"); err != nil {
		t.Fatalf("Load() with missing env file: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml", "")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "reading config")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "{{{{not: valid yaml at all")
	_, err := Load(path, "")
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "parsing config")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	yaml := `
notifications:
  webhook:
    enabled: false
`
	path := writeConfigFile(t, yaml)
	_, err := Load(path, "")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "invalid config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no notifiers", func(c *Config) { c.Notifications.Webhook.Enabled = false }, "at least one notification channel"},
		{"webhook without url", func(c *Config) { c.Notifications.Webhook.URL = "" }, "webhook url"},
		{"basic without username", func(c *Config) {
			c.Notifications.Webhook.Authentication = models.AuthBasic
		}, "username"},
		{"basic with username", func(c *Config) {
			c.Notifications.Webhook.Authentication = models.AuthBasic
			c.Notifications.Webhook.Username = "u"
		}, ""},
		{"bearer without token", func(c *Config) {
			c.Notifications.Webhook.Authentication = models.AuthBearer
		}, "token"},
		{"image without field", func(c *Config) { c.Notifications.Webhook.Field = "" }, "field"},
		{"types only without field", func(c *Config) {
			c.Notifications.Webhook.Field = ""
			c.Notifications.Webhook.SendImage = false
			c.Notifications.Webhook.SendTypes = true
		}, ""},
		{"discord without url", func(c *Config) { c.Notifications.Discord.Enabled = true }, "webhook_url"},
		{"ntfy without topic", func(c *Config) { c.Notifications.Ntfy.Enabled = true }, "topic"},
		{"telegram without token", func(c *Config) {
			c.Notifications.Telegram.Enabled = true
			c.Notifications.Telegram.ChatID = "1"
		}, "bot_token"},
		{"telegram without chat", func(c *Config) {
			c.Notifications.Telegram.Enabled = true
			c.Notifications.Telegram.BotToken = "t"
		}, "chat_id"},
		{"watch without dir", func(c *Config) {
			c.Watch.Enabled = true
			c.Watch.Dir = ""
		}, "watch dir"},
		{"bad cooldown", func(c *Config) { c.Alerts.Cooldown = "soon" }, "cooldown"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = "0s" }, "http timeout"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestHasNotifier(t *testing.T) {
	tests := []struct {
		name string
		set  func(*Config)
		want bool
	}{
		{"none", func(c *Config) {}, false},
		{"webhook", func(c *Config) { c.Notifications.Webhook.Enabled = true }, true},
		{"discord", func(c *Config) { c.Notifications.Discord.Enabled = true }, true},
		{"ntfy", func(c *Config) { c.Notifications.Ntfy.Enabled = true }, true},
		{"telegram", func(c *Config) { c.Notifications.Telegram.Enabled = true }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.set(cfg)
			if got := cfg.HasNotifier(); got != tt.want {
				t.Errorf("HasNotifier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDurationsAndLevel(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.AlertCooldown(); got != time.Minute {
		t.Errorf("AlertCooldown() = %v, want 1m", got)
	}
	if got := cfg.HTTPTimeout(); got != 30*time.Second {
		t.Errorf("HTTPTimeout() = %v, want 30s", got)
	}
	if got := cfg.LogLevel(); got != slog.LevelInfo {
		t.Errorf("LogLevel() = %v, want info", got)
	}

	cfg.Alerts.Cooldown = "garbage"
	cfg.HTTP.Timeout = "-5s"
	cfg.Log.Level = "debug"
	if got := cfg.AlertCooldown(); got != time.Minute {
		t.Errorf("AlertCooldown() fallback = %v, want 1m", got)
	}
	if got := cfg.HTTPTimeout(); got != 30*time.Second {
		t.Errorf("HTTPTimeout() fallback = %v, want 30s", got)
	}
	if got := cfg.LogLevel(); got != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, want debug", got)
	}
}
