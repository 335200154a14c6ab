package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

type window struct {
	start time.Time
	count int
	span  time.Duration
}

func (w *window) expired(now time.Time) bool {
	return !now.Before(w.start.Add(w.span))
}

// MemoryLimiter implements domain.RateLimiter with a fixed-window counter per
// key held in process memory. Counters are not shared between replicas.
// Windows reset at fixed edges, so a client can get up to 2x limit requests
// through in a short burst that straddles an edge.
type MemoryLimiter struct {
	clock Clock

	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryLimiter creates a limiter. A nil clock uses the wall clock.
func NewMemoryLimiter(clock Clock) *MemoryLimiter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryLimiter{clock: clock, windows: make(map[string]*window)}
}

// Allow counts one request against key. The check and the increment happen
// under one lock so concurrent callers never exceed limit within a window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, span time.Duration) (domain.RateDecision, error) {
	now := l.clock.Now()

	l.mu.Lock()
	w, ok := l.windows[key]
	if !ok || w.expired(now) {
		w = &window{start: now, span: span}
		l.windows[key] = w
	}
	w.count++
	count := w.count
	reset := w.start.Add(w.span).Sub(now)
	l.mu.Unlock()

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateDecision{
		Allowed:    count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: reset,
	}, nil
}

// Sweep drops expired windows and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, w := range l.windows {
		if w.expired(now) {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run sweeps every interval until ctx is cancelled.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				logger.DebugContext(ctx, "ratelimit: swept expired windows", slog.Int("removed", n))
			}
		}
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*MemoryLimiter)(nil)
