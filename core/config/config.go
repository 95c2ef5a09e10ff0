package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// ServiceQuota names the user/quota HTTP service.
	ServiceQuota = "quotasvc"
	// ServiceGeneration names the text-generation proxy.
	ServiceGeneration = "gensvc"
	// ServiceBot names the Telegram bot.
	ServiceBot = "bot"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies where Telegram delivers updates in webhook mode.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Path   string `yaml:"path" envconfig:"WEBHOOK_PATH"`
	Secret string `yaml:"secret" envconfig:"WEBHOOK_SECRET"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order" envconfig:"LOG_KEYS_ORDER"`
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	File        string `yaml:"file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// HTTPConfig configures the HTTP listener of a service.
type HTTPConfig struct {
	Listen                 string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	Port                   int    `yaml:"port" envconfig:"HTTP_PORT"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds" envconfig:"HTTP_READ_TIMEOUT_SECONDS"`
	WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds" envconfig:"HTTP_WRITE_TIMEOUT_SECONDS"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" envconfig:"HTTP_SHUTDOWN_TIMEOUT_SECONDS"`
}

// Addr returns the host:port pair to listen on.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Listen, c.Port)
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// RedisConfig points at the Redis instance backing bot sessions.
// An empty Addr selects the in-process session store.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

const (
	// StoreMemory keeps quota records in process memory.
	StoreMemory = "memory"
	// StorePostgres keeps quota records in Postgres.
	StorePostgres = "postgres"
)

// QuotaConfig holds the daily request policy.
type QuotaConfig struct {
	Store                string `yaml:"store" envconfig:"QUOTA_STORE"`
	FreeDailyLimit       int    `yaml:"free_daily_limit" envconfig:"QUOTA_FREE_DAILY_LIMIT"`
	SubscriberDailyLimit int    `yaml:"subscriber_daily_limit" envconfig:"QUOTA_SUBSCRIBER_DAILY_LIMIT"`
	// Timezone decides where a calendar day starts and ends.
	Timezone string `yaml:"timezone" envconfig:"QUOTA_TIMEZONE"`
}

// Location resolves Timezone, falling back to UTC.
func (c QuotaConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil && c.Timezone != "" {
		return loc
	}
	return time.UTC
}

// GenerationConfig configures the upstream chat completion API.
type GenerationConfig struct {
	APIURL         string  `yaml:"api_url" envconfig:"DEEPSEEK_API_URL"`
	APIKey         string  `yaml:"api_key" envconfig:"DEEPSEEK_API_KEY"`
	Model          string  `yaml:"model" envconfig:"DEEPSEEK_MODEL"`
	TimeoutSeconds int     `yaml:"timeout_seconds" envconfig:"DEEPSEEK_TIMEOUT_SECONDS"`
	RatePerSecond  float64 `yaml:"rate_per_second" envconfig:"DEEPSEEK_RATE_PER_SECOND"`
	Burst          int     `yaml:"burst" envconfig:"DEEPSEEK_BURST"`
}

// ServicesConfig locates the backend services the bot talks to.
type ServicesConfig struct {
	QuotaURL                 string `yaml:"quota_url" envconfig:"QUOTA_SERVICE_URL"`
	GenerationURL            string `yaml:"generation_url" envconfig:"GENERATION_SERVICE_URL"`
	TimeoutSeconds           int    `yaml:"timeout_seconds" envconfig:"SERVICES_TIMEOUT_SECONDS"`
	GenerationTimeoutSeconds int    `yaml:"generation_timeout_seconds" envconfig:"GENERATION_TIMEOUT_SECONDS"`
}

// BotConfig holds conversation behaviour settings.
type BotConfig struct {
	SessionTTLMinutes    int  `yaml:"session_ttl_minutes" envconfig:"BOT_SESSION_TTL_MINUTES"`
	SubscriptionsEnabled bool `yaml:"subscriptions_enabled" envconfig:"BOT_SUBSCRIPTIONS_ENABLED"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateCommand identifies slash commands for rate limit exclusions.
	UpdateCommand = "command"
)

// RateLimitConfig holds settings for per-user update throttling in long polling mode.
// ExcludeUpdates accepts update types to bypass limiting:
// - "message": plain text messages
// - "command": slash commands
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the settings of all three binaries. Each binary validates only the
// sections it uses.
type Config struct {
	Service string `yaml:"-" ignored:"true"`

	Telegram   TelegramConfig   `yaml:"telegram"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Quota      QuotaConfig      `yaml:"quota"`
	Generation GenerationConfig `yaml:"generation"`
	Services   ServicesConfig   `yaml:"services"`
	Bot        BotConfig        `yaml:"bot"`
}

// Load reads an optional .env file, the YAML file at path and environment variables, in that
// order, and validates the result for the given service.
func Load(path, service string) (*Config, error) {
	if err := loadDotenv(".env"); err != nil {
		return nil, err
	}

	cfg := Config{Service: service}

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
	return &cfg, nil
}

func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Normalize validates required fields for cfg.Service and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	normalizeHTTP(&cfg.HTTP)

	switch cfg.Service {
	case ServiceQuota:
		return normalizeQuota(cfg)
	case ServiceGeneration:
		return normalizeGeneration(cfg)
	case ServiceBot:
		return normalizeBot(cfg)
	case "":
		return fmt.Errorf("service name is required")
	default:
		return fmt.Errorf("unknown service %q", cfg.Service)
	}
}

func normalizeHTTP(c *HTTPConfig) {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeoutSeconds <= 0 {
		c.ReadTimeoutSeconds = 15
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		c.ShutdownTimeoutSeconds = 30
	}
}

func normalizeQuota(cfg *Config) error {
	q := &cfg.Quota
	if q.FreeDailyLimit <= 0 {
		q.FreeDailyLimit = 10
	}
	if q.SubscriberDailyLimit <= 0 {
		q.SubscriberDailyLimit = 50
	}
	if q.SubscriberDailyLimit < q.FreeDailyLimit {
		return fmt.Errorf("quota.subscriber_daily_limit must be >= quota.free_daily_limit")
	}
	if q.Timezone != "" {
		if _, err := time.LoadLocation(q.Timezone); err != nil {
			return fmt.Errorf("invalid quota.timezone %q: %w", q.Timezone, err)
		}
	}

	store := strings.ToLower(strings.TrimSpace(q.Store))
	if store == "" {
		store = StorePostgres
	}
	switch store {
	case StorePostgres:
		if strings.TrimSpace(cfg.Database.Host) == "" {
			return fmt.Errorf("database.host is required when quota.store is 'postgres'")
		}
		if strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.name is required when quota.store is 'postgres'")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 10
		}
		if cfg.Database.MigrationsDir == "" {
			cfg.Database.MigrationsDir = "migrations"
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid quota.store %q; allowed: postgres, memory", q.Store)
	}
	q.Store = store
	return nil
}

func normalizeGeneration(cfg *Config) error {
	g := &cfg.Generation
	if strings.TrimSpace(g.APIKey) == "" {
		return fmt.Errorf("generation.api_key is required")
	}
	if g.APIURL == "" {
		g.APIURL = "https://api.deepseek.com/v1/chat/completions"
	}
	if g.Model == "" {
		g.Model = "deepseek-chat"
	}
	if g.TimeoutSeconds <= 0 {
		g.TimeoutSeconds = 60
	}
	if g.RatePerSecond <= 0 {
		g.RatePerSecond = 5
	}
	if g.Burst <= 0 {
		g.Burst = 1
	}
	// Long completions must not be cut by the server's write deadline.
	if min := g.TimeoutSeconds + 5; cfg.HTTP.WriteTimeoutSeconds < min {
		cfg.HTTP.WriteTimeoutSeconds = min
	}
	return nil
}

func normalizeBot(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Path == "" {
			cfg.Webhook.Path = "/webhook"
		}
		if !strings.HasPrefix(cfg.Webhook.Path, "/") {
			cfg.Webhook.Path = "/" + cfg.Webhook.Path
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if strings.TrimSpace(cfg.Services.QuotaURL) == "" {
		return fmt.Errorf("services.quota_url is required")
	}
	if strings.TrimSpace(cfg.Services.GenerationURL) == "" {
		return fmt.Errorf("services.generation_url is required")
	}
	cfg.Services.QuotaURL = strings.TrimRight(cfg.Services.QuotaURL, "/")
	if cfg.Services.TimeoutSeconds <= 0 {
		cfg.Services.TimeoutSeconds = 10
	}
	gt := cfg.Services.GenerationTimeoutSeconds
	switch {
	case gt <= 0:
		cfg.Services.GenerationTimeoutSeconds = 120
	case gt < 60 || gt > 180:
		return fmt.Errorf("services.generation_timeout_seconds must be within 60..180")
	}
	if cfg.Bot.SessionTTLMinutes <= 0 {
		cfg.Bot.SessionTTLMinutes = 60
	}
	if min := cfg.Services.GenerationTimeoutSeconds + 10; cfg.HTTP.WriteTimeoutSeconds < min {
		cfg.HTTP.WriteTimeoutSeconds = min
	}

	allowed := map[string]struct{}{
		UpdateMessage: {},
		UpdateCommand: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: message, command", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

// SessionTTL returns the sliding session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Bot.SessionTTLMinutes) * time.Minute
}
