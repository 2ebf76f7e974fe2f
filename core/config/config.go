package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN" validate:"required"`
	// Username overrides the bot name used to match "/cmd@name" tags. Empty means ask getMe.
	Username string `yaml:"username" envconfig:"BOT_USERNAME"`
	RunMode  string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE" validate:"oneof=webhook longpoll"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS" validate:"gte=0"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format    string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder string `yaml:"keys_order"`
	Dir       string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile   string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for the per-user token bucket.
// ExcludeUpdates accepts update kinds that bypass limiting: "callback", "message".
type RateLimitConfig struct {
	PerSecond      float64  `yaml:"per_second" envconfig:"RATE_LIMIT_PER_SECOND" validate:"gte=0"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST" validate:"gte=0"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES" validate:"dive,oneof=callback message"`
}

// SenderConfig tunes the asynchronous outbound worker pool.
type SenderConfig struct {
	Workers      int           `yaml:"workers" envconfig:"SENDER_WORKERS" validate:"gte=0"`
	QueueSize    int           `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE" validate:"gte=0"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES" validate:"gte=0"`
	RetryBackoff time.Duration `yaml:"retry_backoff" envconfig:"SENDER_RETRY_BACKOFF"`
	// PerSecond caps outbound API calls across workers; 0 disables the cap.
	PerSecond float64 `yaml:"per_second" envconfig:"SENDER_PER_SECOND" validate:"gte=0"`
	Burst     int     `yaml:"burst" envconfig:"SENDER_BURST" validate:"gte=0"`
}

const (
	// StoragePostgres selects the PostgreSQL backend.
	StoragePostgres = "postgres"
	// StorageSQLite selects the embedded SQLite backend.
	StorageSQLite = "sqlite"
	// StorageMemory keeps everything in process memory; data is lost on restart.
	StorageMemory = "memory"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST" validate:"required_if=Enabled true"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME" validate:"required_if=Enabled true"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS" validate:"gte=0"`

	// Enabled is derived from StorageConfig.Type during Normalize.
	Enabled bool `yaml:"-" ignored:"true"`
}

// SQLiteConfig holds settings for the file-backed SQLite backend.
type SQLiteConfig struct {
	Path    string `yaml:"path" envconfig:"SQLITE_PATH" validate:"required_if=Enabled true"`
	Enabled bool   `yaml:"-" ignored:"true"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Type     string         `yaml:"type" envconfig:"STORAGE_TYPE" validate:"oneof=postgres sqlite memory"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// DialogConfig controls how long pending dialog states survive.
type DialogConfig struct {
	// StateTTL removes dialog states idle for longer than this. Negative disables the purge.
	StateTTL  time.Duration `yaml:"state_ttl" envconfig:"DIALOG_STATE_TTL"`
	PurgeCron string        `yaml:"purge_cron" envconfig:"DIALOG_PURGE_CRON" validate:"required"`
}

// TasksConfig holds presentation settings of the /tasks command.
type TasksConfig struct {
	PageSize int `yaml:"page_size" envconfig:"TASKS_PAGE_SIZE" validate:"gte=1,lte=20"`
	// Timezone is an IANA name used to render timestamps; empty means UTC.
	Timezone string `yaml:"timezone" envconfig:"TASKS_TIMEZONE" validate:"omitempty,timezone"`
}

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sender    SenderConfig    `yaml:"sender"`
	Storage   StorageConfig   `yaml:"storage"`
	Dialog    DialogConfig    `yaml:"dialog"`
	Tasks     TasksConfig     `yaml:"tasks"`
}

const (
	defaultPurgeCron = "*/15 * * * *"
	defaultStateTTL  = 24 * time.Hour
	defaultPageSize  = 5
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and canonicalizes aliases. It reports only errors
// that struct tags cannot express.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch rm {
	case "", "polling":
		rm = RunModeLongpoll
	}
	cfg.Telegram.RunMode = rm
	if rm == RunModeWebhook {
		if strings.TrimSpace(cfg.Webhook.URL) == "" || strings.TrimSpace(cfg.Webhook.Listen) == "" || cfg.Webhook.Port <= 0 {
			return errors.New("webhook.url, webhook.listen and webhook.port are required when telegram.run_mode is 'webhook'")
		}
	}
	cfg.Telegram.Username = strings.TrimPrefix(strings.TrimSpace(cfg.Telegram.Username), "@")

	for i, v := range cfg.RateLimit.ExcludeUpdates {
		cfg.RateLimit.ExcludeUpdates[i] = strings.ToLower(strings.TrimSpace(v))
	}
	if cfg.RateLimit.PerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 1
	}

	st := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	switch st {
	case "":
		st = StorageSQLite
	case "postgresql", "pg":
		st = StoragePostgres
	case "sqlite3":
		st = StorageSQLite
	}
	cfg.Storage.Type = st
	cfg.Storage.Postgres.Enabled = st == StoragePostgres
	cfg.Storage.SQLite.Enabled = st == StorageSQLite
	if cfg.Storage.Postgres.Port == "" {
		cfg.Storage.Postgres.Port = "5432"
	}
	if cfg.Storage.Postgres.SSLMode == "" {
		cfg.Storage.Postgres.SSLMode = "disable"
	}
	if cfg.Storage.Postgres.MaxConnections == 0 {
		cfg.Storage.Postgres.MaxConnections = 4
	}

	if strings.TrimSpace(cfg.Dialog.PurgeCron) == "" {
		cfg.Dialog.PurgeCron = defaultPurgeCron
	}
	if cfg.Dialog.StateTTL == 0 {
		cfg.Dialog.StateTTL = defaultStateTTL
	}
	if cfg.Tasks.PageSize == 0 {
		cfg.Tasks.PageSize = defaultPageSize
	}
	return nil
}

// Validate checks struct constraints and returns a readable error listing the offending fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
