package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/spreadapi/internal/blob/s3"
	"github.com/alanyoungcy/spreadapi/internal/cache/redis"
	"github.com/alanyoungcy/spreadapi/internal/config"
	"github.com/alanyoungcy/spreadapi/internal/domain"
	"github.com/alanyoungcy/spreadapi/internal/notify"
	"github.com/alanyoungcy/spreadapi/internal/pipeline"
	"github.com/alanyoungcy/spreadapi/internal/ratelimit"
	"github.com/alanyoungcy/spreadapi/internal/server/handler"
	"github.com/alanyoungcy/spreadapi/internal/service"
	"github.com/alanyoungcy/spreadapi/internal/store/memory"
	"github.com/alanyoungcy/spreadapi/internal/store/postgres"
)

// Dependencies bundles every concrete collaborator the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	SpreadStore   domain.SpreadStore
	ExchangeStore domain.ExchangeStore
	AuditStore    domain.AuditStore // nil with the memory driver

	// Rate limiting. MemoryLimiter is set only for the memory backend and
	// needs its sweeper running.
	Limiter       domain.RateLimiter
	MemoryLimiter *ratelimit.MemoryLimiter
	Policies      ratelimit.Policies

	// Optional Redis event bus; nil disables live events.
	SignalBus domain.SignalBus

	// Optional chat alerts; nil when no sender is configured.
	Alerter *notify.SpreadAlerter

	// Optional snapshot export; nil when no bucket is configured.
	Exporter *pipeline.Exporter

	SpreadService *service.SpreadService
	HealthChecks  map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.Check)}

	// --- Storage ---
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory":
		deps.SpreadStore = memory.NewSpreadStore()
		deps.ExchangeStore = memory.NewExchangeStore(memory.DefaultExchanges())
		logger.WarnContext(ctx, "using in-memory storage; data is lost on restart")

	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.PoolMaxConns,
			MinConns:       cfg.Postgres.PoolMinConns,
			ConnectTimeout: cfg.Postgres.ConnectTimeout.Duration,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.SpreadStore = postgres.NewSpreadStore(pool)
		deps.ExchangeStore = postgres.NewExchangeStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping

	default:
		return fail(fmt.Errorf("wire: unknown storage driver %q", cfg.Storage.Driver))
	}

	// --- Redis (optional) ---
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			MaxRetries:  cfg.Redis.MaxRetries,
			TLSEnabled:  cfg.Redis.TLSEnabled,
			DialTimeout: cfg.Redis.DialTimeout.Duration,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		redisClient = c
		closers = append(closers, func() { _ = c.Close() })

		deps.SignalBus = redis.NewSignalBus(c)
		deps.HealthChecks["redis"] = c.Ping
	}

	// --- Rate limiting ---
	rl := cfg.RateLimit
	deps.Policies = ratelimit.NewPolicies(rl.Window.Duration, map[string]int{
		ratelimit.RouteSpreadsList:   rl.SpreadsList,
		ratelimit.RouteSpreadsGet:    rl.SpreadsGet,
		ratelimit.RouteSpreadsCreate: rl.SpreadsCreate,
		ratelimit.RouteSpreadsUpdate: rl.SpreadsUpdate,
		ratelimit.RouteSpreadsDelete: rl.SpreadsDelete,
		ratelimit.RouteExchangesList: rl.ExchangesList,
	})
	if strings.ToLower(rl.Backend) == "redis" {
		if redisClient == nil {
			return fail(fmt.Errorf("wire: rate limit backend redis requires redis.addr"))
		}
		deps.Limiter = redis.NewRateLimiter(redisClient)
	} else {
		deps.MemoryLimiter = ratelimit.NewMemoryLimiter(ratelimit.SystemClock{})
		deps.Limiter = deps.MemoryLimiter
	}

	// --- Notifications (optional) ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if notifier := notify.NewNotifier(senders, logger); notifier.Enabled() {
		events := make([]domain.SpreadEventType, 0, len(cfg.Notify.Events))
		for _, e := range cfg.Notify.Events {
			events = append(events, domain.SpreadEventType(e))
		}
		deps.Alerter = notify.NewSpreadAlerter(
			notifier,
			notify.AlertRule{Events: events, MinTopSpread: cfg.Notify.MinTopSpread},
			logger,
		)
	}

	// --- Services ---
	opts := []service.SpreadServiceOption{}
	if deps.Alerter != nil {
		opts = append(opts, service.WithObserver(deps.Alerter))
	}
	if deps.SignalBus != nil {
		opts = append(opts, service.WithBus(deps.SignalBus))
	}
	if deps.AuditStore != nil {
		opts = append(opts, service.WithAudit(deps.AuditStore))
	}
	deps.SpreadService = service.NewSpreadService(deps.SpreadStore, deps.ExchangeStore, logger, opts...)

	// --- S3 snapshot export (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Exporter = pipeline.NewExporter(
			deps.SpreadStore,
			s3blob.NewWriter(s3Client),
			deps.AuditStore,
			cfg.Export.Prefix,
			logger.With(slog.String("component", "exporter")),
		)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	return deps, cleanup, nil
}
