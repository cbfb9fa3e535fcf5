package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token    string  `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
	RunMode  string  `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// SheetsConfig points the sheets backend at a spreadsheet and its credentials.
type SheetsConfig struct {
	// Spreadsheet accepts either a bare spreadsheet ID or a full
	// https://docs.google.com/spreadsheets/d/<ID>/... URL.
	Spreadsheet string `yaml:"spreadsheet" envconfig:"SPREADSHEET_URL"`
	// Credentials is a one-line service-account JSON with \n escapes inside
	// private_key.
	Credentials string `yaml:"credentials" envconfig:"GOOGLE_CREDENTIALS"`
}

// FileConfig points the file backend at its JSON document.
type FileConfig struct {
	Path string `yaml:"path" envconfig:"STORE_FILE_PATH"`
}

// SQLConfig configures the SQL backend.
type SQLConfig struct {
	Driver string `yaml:"driver" envconfig:"STORE_SQL_DRIVER"`
	DSN    string `yaml:"dsn" envconfig:"STORE_SQL_DSN"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Backend string       `yaml:"backend" envconfig:"STORE_BACKEND"`
	Sheets  SheetsConfig `yaml:"sheets"`
	File    FileConfig   `yaml:"file"`
	SQL     SQLConfig    `yaml:"sql"`
}

// CacheConfig controls the in-memory mirror of the record store.
type CacheConfig struct {
	ReloadSeconds int `yaml:"reload_seconds" envconfig:"CACHE_RELOAD_SECONDS"`
}

// HealthConfig configures the liveness endpoint.
type HealthConfig struct {
	Port int `yaml:"port" envconfig:"PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// RateLimitConfig holds settings for per-user rate limiting.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Store backends understood by the adapter factory.
const (
	BackendSheets = "sheets"
	BackendFile   = "file"
	BackendSQL    = "sql"
)

const (
	defaultReloadSeconds = 60
	defaultHealthPort    = 10000
)

// Config aggregates everything the bot process needs.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Health    HealthConfig    `yaml:"health"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	// Env-only deployments run without a YAML file at all.
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	// The original deployment accepted API_URL as a legacy alias.
	if cfg.Store.Sheets.Spreadsheet == "" {
		cfg.Store.Sheets.Spreadsheet = os.Getenv("API_URL")
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	backend := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if backend == "" {
		backend = BackendSheets
	}
	switch backend {
	case BackendSheets:
		if strings.TrimSpace(cfg.Store.Sheets.Spreadsheet) == "" {
			return fmt.Errorf("store.sheets.spreadsheet (or SPREADSHEET_URL / API_URL) is required for the sheets backend")
		}
		if strings.TrimSpace(cfg.Store.Sheets.Credentials) == "" {
			return fmt.Errorf("store.sheets.credentials (GOOGLE_CREDENTIALS) is required for the sheets backend")
		}
		if _, err := ParseServiceAccountJSON(cfg.Store.Sheets.Credentials); err != nil {
			return err
		}
	case BackendFile:
		if strings.TrimSpace(cfg.Store.File.Path) == "" {
			return fmt.Errorf("store.file.path is required for the file backend")
		}
	case BackendSQL:
		driver := strings.ToLower(strings.TrimSpace(cfg.Store.SQL.Driver))
		if driver != "postgres" && driver != "sqlite3" {
			return fmt.Errorf("invalid store.sql.driver %q; allowed: postgres, sqlite3", cfg.Store.SQL.Driver)
		}
		if strings.TrimSpace(cfg.Store.SQL.DSN) == "" {
			return fmt.Errorf("store.sql.dsn is required for the sql backend")
		}
		cfg.Store.SQL.Driver = driver
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: sheets, file, sql", cfg.Store.Backend)
	}
	cfg.Store.Backend = backend

	if cfg.Cache.ReloadSeconds < 0 {
		return fmt.Errorf("cache.reload_seconds must be >= 0")
	}
	if cfg.Cache.ReloadSeconds == 0 {
		cfg.Cache.ReloadSeconds = defaultReloadSeconds
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = defaultHealthPort
	}
	if cfg.Health.Port < 0 || cfg.Health.Port > 65535 {
		return fmt.Errorf("health.port out of range: %d", cfg.Health.Port)
	}
	return nil
}

// IsAdmin reports whether the given Telegram user ID is in the admin set.
func (t TelegramConfig) IsAdmin(id int64) bool {
	for _, admin := range t.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

// ParseServiceAccountJSON validates a service-account credentials payload.
// Operators paste the JSON as a single env var line and routinely wrap it in
// quotes; the cleanup below recovers those cases before giving up with an
// error naming the expected format.
func ParseServiceAccountJSON(raw string) ([]byte, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return nil, fmt.Errorf("service account credentials are empty")
	}
	if json.Valid([]byte(candidate)) {
		return []byte(candidate), nil
	}
	if strings.HasPrefix(candidate, "'") && strings.HasSuffix(candidate, "'") {
		candidate = strings.TrimSuffix(strings.TrimPrefix(candidate, "'"), "'")
	} else if strings.HasPrefix(candidate, `"`) && strings.HasSuffix(candidate, `"`) {
		candidate = strings.TrimSuffix(strings.TrimPrefix(candidate, `"`), `"`)
	}
	if json.Valid([]byte(candidate)) {
		return []byte(candidate), nil
	}
	return nil, fmt.Errorf(
		"GOOGLE_CREDENTIALS JSON parse failed: expected a single-line service account JSON object with \\n escapes inside private_key")
}
