package domain

import (
	"context"
	"time"
)

// RateDecision is the outcome of one admission check.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // time until the current window resets
}

// RateLimiter counts requests per key in fixed windows. Allow increments the
// counter for key and reports whether the request fits within limit.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error)
}

// SignalBus provides pub/sub for spread change events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
