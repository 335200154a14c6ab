// Package server assembles the HTTP API: routes, per-route rate limits,
// write authorisation and the ambient endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/spreadapi/internal/domain"
	"github.com/alanyoungcy/spreadapi/internal/ratelimit"
	"github.com/alanyoungcy/spreadapi/internal/server/handler"
	"github.com/alanyoungcy/spreadapi/internal/server/middleware"
	"github.com/alanyoungcy/spreadapi/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port              int
	CORSOrigins       []string
	BotToken          string // empty refuses all writes
	TrustProxyHeaders bool
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Spreads   *handler.SpreadHandler
	Exchanges *handler.ExchangeHandler
}

// Deps are the collaborators shared by the routes.
type Deps struct {
	Limiter  domain.RateLimiter
	Policies ratelimit.Policies
	Metrics  *middleware.Metrics
	Hub      *ws.Hub // nil disables /ws
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type route struct {
	pattern string
	name    string
	write   bool
	handle  http.HandlerFunc
}

// NewServer creates a Server with every route registered.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, deps, logger),
		ReadTimeout:  orDefault(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(cfg.IdleTimeout, 60*time.Second),
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler. Each API route is
// wrapped, outermost first, in metrics, rate limiting and (for writes) bot
// token authorisation.
func NewHandler(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	routes := []route{
		{"GET /spreads", ratelimit.RouteSpreadsList, false, handlers.Spreads.ListSpreads},
		{"GET /spreads/{id}", ratelimit.RouteSpreadsGet, false, handlers.Spreads.GetSpread},
		{"POST /spreads", ratelimit.RouteSpreadsCreate, true, handlers.Spreads.CreateSpread},
		{"PUT /spreads/{id}", ratelimit.RouteSpreadsUpdate, true, handlers.Spreads.UpdateSpread},
		{"DELETE /spreads/{id}", ratelimit.RouteSpreadsDelete, true, handlers.Spreads.DeleteSpread},
		{"GET /exchanges", ratelimit.RouteExchangesList, false, handlers.Exchanges.ListExchanges},
	}

	rlOpts := middleware.RateLimitOptions{
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Metrics:           deps.Metrics,
		Logger:            logger,
	}
	for _, rt := range routes {
		var h http.Handler = rt.handle
		if rt.write {
			h = middleware.BotToken(cfg.BotToken)(h)
		}
		if deps.Limiter != nil {
			h = middleware.RateLimit(deps.Limiter, deps.Policies.For(rt.name), rlOpts)(h)
		}
		if deps.Metrics != nil {
			h = deps.Metrics.Instrument(rt.name)(h)
		}
		mux.Handle(rt.pattern, h)
	}

	mux.HandleFunc("GET /health", handlers.Health.HealthCheck)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
