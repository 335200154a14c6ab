package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/spreadapi/internal/domain"
	"github.com/alanyoungcy/spreadapi/internal/ratelimit"
)

// RateLimitOptions configures the rate limit middleware.
type RateLimitOptions struct {
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
	Metrics           *Metrics
	Logger            *slog.Logger
}

type rateLimitedBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit returns middleware that admits at most policy.Limit requests per
// client per window on one route. Rejections never reach the handler. When
// the limiter itself fails the request is let through and the failure logged.
func RateLimit(limiter domain.RateLimiter, policy ratelimit.Policy, opts RateLimitOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if policy.Unlimited() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := extractClientIP(r, opts.TrustProxyHeaders)

			d, err := limiter.Allow(r.Context(), policy.Key(client), policy.Limit, policy.Window)
			if err != nil {
				opts.Metrics.observeLimiterError(policy.Route)
				logger.WarnContext(r.Context(), "ratelimit: limiter unavailable, allowing request",
					slog.String("route", policy.Route),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				opts.Metrics.observeRejected(policy.Route)
				retry := int(math.Ceil(d.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				body, _ := json.Marshal(rateLimitedBody{Error: "rate limit exceeded", RetryAfter: retry})
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write(body)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP returns the address requests are counted against. Proxy
// headers are consulted only when trusted.
func extractClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip, _, _ := strings.Cut(xff, ",")
			if ip = strings.TrimSpace(ip); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
