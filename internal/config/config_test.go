package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.RateLimit.SpreadsList != 100 || cfg.RateLimit.SpreadsGet != 30 || cfg.RateLimit.SpreadsDelete != 10 {
		t.Fatalf("unexpected default budgets: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Window.Duration != time.Minute {
		t.Fatalf("window=%v", cfg.RateLimit.Window)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "server"
log_level = "debug"

[server]
port = 9000
trust_proxy_headers = true

[storage]
driver = "memory"

[rate_limit]
window = "30s"
spreads_get = 5
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPREADAPI_SERVER_BOT_TOKEN", "from-env")
	t.Setenv("SPREADAPI_RATE_LIMIT_SPREADS_LIST", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 || !cfg.Server.TrustProxyHeaders || cfg.Storage.Driver != "memory" {
		t.Fatalf("file values not applied: %+v", cfg.Server)
	}
	if cfg.RateLimit.Window.Duration != 30*time.Second || cfg.RateLimit.SpreadsGet != 5 {
		t.Fatalf("rate limit: %+v", cfg.RateLimit)
	}
	if cfg.Server.BotToken != "from-env" || cfg.RateLimit.SpreadsList != 7 {
		t.Fatalf("env overrides not applied: token=%q list=%d", cfg.Server.BotToken, cfg.RateLimit.SpreadsList)
	}
	// Untouched defaults survive.
	if cfg.RateLimit.SpreadsDelete != 10 {
		t.Fatalf("spreads_delete=%d", cfg.RateLimit.SpreadsDelete)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("port=%d", cfg.Server.Port)
	}
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Server.Port = 0
	cfg.RateLimit.Backend = "redis"
	cfg.RateLimit.SpreadsGet = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"unknown mode", "server: port", "requires redis.addr", "spreads_get"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_ExportNeedsBucket(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "export"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "bucket") {
		t.Fatalf("err=%v", err)
	}
	cfg.S3.Bucket = "snapshots"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidate_CaseInsensitiveEnums(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Driver = "Postgres"
	cfg.Postgres.DSN = ""
	cfg.Postgres.Host = ""
	cfg.RateLimit.Backend = " REDIS "
	cfg.Redis.Addr = ""
	cfg.Mode = "Export"
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"postgres: host", "requires redis.addr", "bucket"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error missing %q:\n%v", want, err)
		}
	}
	if cfg.Storage.Driver != "postgres" || cfg.RateLimit.Backend != "redis" || cfg.Mode != "export" {
		t.Fatalf("not normalised: driver=%q backend=%q mode=%q", cfg.Storage.Driver, cfg.RateLimit.Backend, cfg.Mode)
	}
}

func TestLoad_TimeoutAndRetryEnv(t *testing.T) {
	t.Setenv("SPREADAPI_RATE_LIMIT_EXCHANGES_LIST", "12")
	t.Setenv("SPREADAPI_RATE_LIMIT_SWEEP_INTERVAL", "90s")
	t.Setenv("SPREADAPI_SERVER_IDLE_TIMEOUT", "2m")
	t.Setenv("SPREADAPI_REDIS_MAX_RETRIES", "6")
	t.Setenv("SPREADAPI_REDIS_DIAL_TIMEOUT", "750ms")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RateLimit.ExchangesList != 12 || cfg.RateLimit.SweepInterval.Duration != 90*time.Second {
		t.Fatalf("rate limit: %+v", cfg.RateLimit)
	}
	if cfg.Server.IdleTimeout.Duration != 2*time.Minute {
		t.Fatalf("idle_timeout=%v", cfg.Server.IdleTimeout.Duration)
	}
	if cfg.Redis.MaxRetries != 6 || cfg.Redis.DialTimeout.Duration != 750*time.Millisecond {
		t.Fatalf("redis: retries=%d dial=%v", cfg.Redis.MaxRetries, cfg.Redis.DialTimeout.Duration)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Server.BotToken = "tok"
	cfg.Postgres.Password = "pw"
	cfg.S3.SecretKey = "sk"

	out := RedactedConfig(&cfg)
	if out.Server.BotToken != redacted || out.Postgres.Password != redacted || out.S3.SecretKey != redacted {
		t.Fatalf("not redacted: %+v", out)
	}
	if out.Postgres.DSN != "" {
		t.Fatal("empty values should stay empty")
	}
	if cfg.Server.BotToken != "tok" {
		t.Fatal("original mutated")
	}
	out.Server.CORSOrigins[0] = "changed"
	if cfg.Server.CORSOrigins[0] == "changed" {
		t.Fatal("cors origins share backing array")
	}
}

func TestValidate_Notify(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "tok"
	cfg.Notify.Events = []string{"spread.created", "spread.exploded"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"set together", "spread.exploded"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error missing %q:\n%v", want, err)
		}
	}
}
