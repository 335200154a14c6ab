// Package config defines the spread API configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SPREADAPI_* environment variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	S3        S3Config        `toml:"s3"`
	Export    ExportConfig    `toml:"export"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
	LogFormat string          `toml:"log_format"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port              int      `toml:"port"`
	CORSOrigins       []string `toml:"cors_origins"`
	TrustProxyHeaders bool     `toml:"trust_proxy_headers"`
	// BotToken authorises writes. Empty disables every write route.
	BotToken        string   `toml:"bot_token"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	IdleTimeout     duration `toml:"idle_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// StorageConfig selects the spread store backend.
type StorageConfig struct {
	Driver string `toml:"driver"` // "postgres" or "memory"
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN            string   `toml:"dsn"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Database       string   `toml:"database"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SSLMode        string   `toml:"ssl_mode"`
	PoolMaxConns   int      `toml:"pool_max_conns"`
	PoolMinConns   int      `toml:"pool_min_conns"`
	RunMigrations  bool     `toml:"run_migrations"`
	ConnectTimeout duration `toml:"connect_timeout"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables
// Redis: the limiter falls back to memory and live events are off.
type RedisConfig struct {
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	DialTimeout duration `toml:"dial_timeout"`
}

// RateLimitConfig holds the per-route budgets. A limit of 0 disables limiting
// for that route.
type RateLimitConfig struct {
	Backend       string   `toml:"backend"` // "memory" or "redis"
	Window        duration `toml:"window"`
	SweepInterval duration `toml:"sweep_interval"`
	SpreadsList   int      `toml:"spreads_list"`
	SpreadsGet    int      `toml:"spreads_get"`
	SpreadsCreate int      `toml:"spreads_create"`
	SpreadsUpdate int      `toml:"spreads_update"`
	SpreadsDelete int      `toml:"spreads_delete"`
	ExchangesList int      `toml:"exchanges_list"`
}

// S3Config holds S3-compatible object storage parameters. An empty Bucket
// disables exports.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ExportConfig controls spread snapshots.
type ExportConfig struct {
	// Interval between snapshots in server mode; 0 disables the schedule.
	Interval duration `toml:"interval"`
	Prefix   string   `toml:"prefix"`
}

// NotifyConfig holds chat alert settings. Alerts are off unless a Telegram
// bot or a Discord webhook is configured.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	MinTopSpread      float64  `toml:"min_top_spread"`
}

// duration wraps time.Duration so that it can be decoded from a TOML string
// such as "5m" or "1h30m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults for local
// development against docker-compose style services.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ReadTimeout:     duration{15 * time.Second},
			WriteTimeout:    duration{30 * time.Second},
			IdleTimeout:     duration{60 * time.Second},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Storage: StorageConfig{Driver: "postgres"},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "spreads",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   10,
			PoolMinConns:   2,
			RunMigrations:  true,
			ConnectTimeout: duration{30 * time.Second},
		},
		Redis: RedisConfig{
			PoolSize:    20,
			MaxRetries:  3,
			DialTimeout: duration{5 * time.Second},
		},
		RateLimit: RateLimitConfig{
			Backend:       "memory",
			Window:        duration{time.Minute},
			SweepInterval: duration{time.Minute},
			SpreadsList:   100,
			SpreadsGet:    30,
			SpreadsCreate: 20,
			SpreadsUpdate: 20,
			SpreadsDelete: 10,
			ExchangesList: 0,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Export: ExportConfig{
			Prefix: "exports/spreads",
		},
		Notify: NotifyConfig{
			Events:       []string{"spread.created"},
			MinTopSpread: 1,
		},
		Mode:      "server",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

var (
	validModes     = map[string]bool{"server": true, "export": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats   = map[string]bool{"json": true, "text": true}
	validDrivers   = map[string]bool{"postgres": true, "memory": true}
	validBackends  = map[string]bool{"memory": true, "redis": true}

	validAlertEvents = map[string]bool{"spread.created": true, "spread.updated": true, "spread.deleted": true}
)

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. Enum-like settings are
// trimmed and lower-cased in place first.
func (c *Config) Validate() error {
	var errs []string

	for _, v := range []*string{&c.Mode, &c.LogLevel, &c.LogFormat, &c.Storage.Driver, &c.RateLimit.Backend} {
		*v = strings.ToLower(strings.TrimSpace(*v))
	}

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, export)", c.Mode))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if !validFormats[c.LogFormat] {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: json, text)", c.LogFormat))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Storage
	if !validDrivers[c.Storage.Driver] {
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: postgres, memory)", c.Storage.Driver))
	}
	if c.Storage.Driver == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Rate limiting
	if !validBackends[c.RateLimit.Backend] {
		errs = append(errs, fmt.Sprintf("rate_limit: unknown backend %q (valid: memory, redis)", c.RateLimit.Backend))
	}
	if c.RateLimit.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, "rate_limit: backend redis requires redis.addr")
	}
	if c.RateLimit.Window.Duration <= 0 {
		errs = append(errs, "rate_limit: window must be > 0")
	}
	if c.RateLimit.SweepInterval.Duration <= 0 {
		errs = append(errs, "rate_limit: sweep_interval must be > 0")
	}
	for name, v := range c.RateLimit.limits() {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("rate_limit: %s must be >= 0", name))
		}
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Export
	if c.Mode == "export" && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must be set for mode export")
	}
	if c.Export.Interval.Duration < 0 {
		errs = append(errs, "export: interval must be >= 0")
	}
	if c.S3.Bucket != "" && c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, e := range c.Notify.Events {
		if !validAlertEvents[e] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q (valid: spread.created, spread.updated, spread.deleted)", e))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// limits keys the budgets by their TOML names.
func (r RateLimitConfig) limits() map[string]int {
	return map[string]int{
		"spreads_list":   r.SpreadsList,
		"spreads_get":    r.SpreadsGet,
		"spreads_create": r.SpreadsCreate,
		"spreads_update": r.SpreadsUpdate,
		"spreads_delete": r.SpreadsDelete,
		"exchanges_list": r.ExchangesList,
	}
}
