package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

//go:embed scripts/fixed_window.lua
var fixedWindowLua string

// RateLimiter implements domain.RateLimiter with a fixed-window counter per
// key. The counter is created and expired atomically by a Lua script so the
// window is shared by every API replica. Windows reset at fixed edges, so a
// client can get up to 2x limit requests through in a short burst that
// straddles an edge.
type RateLimiter struct {
	rdb         *redis.Client
	fixedWindow *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:         c.Underlying(),
		fixedWindow: redis.NewScript(fixedWindowLua),
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow counts one request against key and reports whether it fits within
// limit for the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	result, err := rl.fixedWindow.Run(
		ctx,
		rl.rdb,
		[]string{rateLimitKey(key)},
		window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	if len(result) < 2 {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit allow %s: unexpected result length %d", key, len(result))
	}

	count, ttl := int(result[0]), time.Duration(result[1])*time.Millisecond
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateDecision{
		Allowed:    count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: ttl,
	}, nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
