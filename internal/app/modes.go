package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadapi/internal/server"
	"github.com/alanyoungcy/spreadapi/internal/server/handler"
	"github.com/alanyoungcy/spreadapi/internal/server/middleware"
	"github.com/alanyoungcy/spreadapi/internal/server/ws"
)

// ServerMode serves the HTTP API together with its background workers: the
// live event hub, the memory limiter sweeper and the periodic exporter.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Server.CORSOrigins, a.logger.With(slog.String("component", "ws")))
		g.Go(func() error {
			return hub.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "redis not configured; live events disabled")
	}

	if deps.MemoryLimiter != nil {
		g.Go(func() error {
			return deps.MemoryLimiter.Run(ctx, a.cfg.RateLimit.SweepInterval.Duration, a.logger)
		})
	}

	if deps.Alerter != nil {
		g.Go(func() error {
			return deps.Alerter.Run(ctx)
		})
	}

	if deps.Exporter != nil && a.cfg.Export.Interval.Duration > 0 {
		g.Go(func() error {
			return deps.Exporter.RunEvery(ctx, a.cfg.Export.Interval.Duration)
		})
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Spreads:   handler.NewSpreadHandler(deps.SpreadService, a.logger),
		Exchanges: handler.NewExchangeHandler(deps.SpreadService, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:              a.cfg.Server.Port,
		CORSOrigins:       a.cfg.Server.CORSOrigins,
		BotToken:          a.cfg.Server.BotToken,
		TrustProxyHeaders: a.cfg.Server.TrustProxyHeaders,
		ReadTimeout:       a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout:      a.cfg.Server.WriteTimeout.Duration,
		IdleTimeout:       a.cfg.Server.IdleTimeout.Duration,
	}, handlers, server.Deps{
		Limiter:  deps.Limiter,
		Policies: deps.Policies,
		Metrics:  middleware.NewMetrics(),
		Hub:      hub,
	}, a.logger.With(slog.String("component", "http")))

	if a.cfg.Server.BotToken == "" {
		a.logger.WarnContext(ctx, "server.bot_token is empty; write routes will answer 503")
	}

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// ExportMode writes one spread snapshot and returns.
func (a *App) ExportMode(ctx context.Context, deps *Dependencies) error {
	if deps.Exporter == nil {
		return fmt.Errorf("app: export mode requires s3.bucket")
	}
	res, err := deps.Exporter.Run(ctx)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "export complete",
		slog.String("path", res.Path),
		slog.Int("count", res.Count),
		slog.Int("bytes", res.Bytes),
	)
	return nil
}
