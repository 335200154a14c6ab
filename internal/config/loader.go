package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SPREADAPI_* environment variable overrides, and
// returns the final Config. A missing file is not an error so the service can
// be configured from the environment alone. The returned Config has NOT been
// validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SPREADAPI_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "SPREADAPI_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SPREADAPI_SERVER_CORS_ORIGINS")
	setBool(&cfg.Server.TrustProxyHeaders, "SPREADAPI_SERVER_TRUST_PROXY_HEADERS")
	setStr(&cfg.Server.BotToken, "SPREADAPI_SERVER_BOT_TOKEN")
	setStr(&cfg.Server.BotToken, "SPREADAPI_BOT_TOKEN") // short alias
	setDuration(&cfg.Server.ReadTimeout, "SPREADAPI_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SPREADAPI_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.IdleTimeout, "SPREADAPI_SERVER_IDLE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "SPREADAPI_SERVER_SHUTDOWN_TIMEOUT")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "SPREADAPI_STORAGE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SPREADAPI_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // platform convention
	setStr(&cfg.Postgres.Host, "SPREADAPI_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SPREADAPI_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SPREADAPI_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SPREADAPI_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SPREADAPI_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SPREADAPI_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SPREADAPI_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SPREADAPI_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SPREADAPI_POSTGRES_RUN_MIGRATIONS")
	setDuration(&cfg.Postgres.ConnectTimeout, "SPREADAPI_POSTGRES_CONNECT_TIMEOUT")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SPREADAPI_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SPREADAPI_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SPREADAPI_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SPREADAPI_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SPREADAPI_REDIS_MAX_RETRIES")
	setDuration(&cfg.Redis.DialTimeout, "SPREADAPI_REDIS_DIAL_TIMEOUT")
	setBool(&cfg.Redis.TLSEnabled, "SPREADAPI_REDIS_TLS_ENABLED")

	// ── Rate limit ──
	setStr(&cfg.RateLimit.Backend, "SPREADAPI_RATE_LIMIT_BACKEND")
	setDuration(&cfg.RateLimit.Window, "SPREADAPI_RATE_LIMIT_WINDOW")
	setDuration(&cfg.RateLimit.SweepInterval, "SPREADAPI_RATE_LIMIT_SWEEP_INTERVAL")
	setInt(&cfg.RateLimit.SpreadsList, "SPREADAPI_RATE_LIMIT_SPREADS_LIST")
	setInt(&cfg.RateLimit.SpreadsGet, "SPREADAPI_RATE_LIMIT_SPREADS_GET")
	setInt(&cfg.RateLimit.SpreadsCreate, "SPREADAPI_RATE_LIMIT_SPREADS_CREATE")
	setInt(&cfg.RateLimit.SpreadsUpdate, "SPREADAPI_RATE_LIMIT_SPREADS_UPDATE")
	setInt(&cfg.RateLimit.SpreadsDelete, "SPREADAPI_RATE_LIMIT_SPREADS_DELETE")
	setInt(&cfg.RateLimit.ExchangesList, "SPREADAPI_RATE_LIMIT_EXCHANGES_LIST")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SPREADAPI_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SPREADAPI_S3_REGION")
	setStr(&cfg.S3.Bucket, "SPREADAPI_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SPREADAPI_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SPREADAPI_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SPREADAPI_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SPREADAPI_S3_FORCE_PATH_STYLE")

	// ── Export ──
	setDuration(&cfg.Export.Interval, "SPREADAPI_EXPORT_INTERVAL")
	setStr(&cfg.Export.Prefix, "SPREADAPI_EXPORT_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SPREADAPI_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SPREADAPI_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SPREADAPI_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SPREADAPI_NOTIFY_EVENTS")
	setFloat(&cfg.Notify.MinTopSpread, "SPREADAPI_NOTIFY_MIN_TOP_SPREAD")

	// ── Top-level ──
	setStr(&cfg.Mode, "SPREADAPI_MODE")
	setStr(&cfg.LogLevel, "SPREADAPI_LOG_LEVEL")
	setStr(&cfg.LogFormat, "SPREADAPI_LOG_FORMAT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
