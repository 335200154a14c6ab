package domain

import (
	"context"
	"time"
)

// SpreadChannel is the pub/sub channel carrying SpreadEvent payloads.
const SpreadChannel = "spreads"

// SpreadEventType names a committed spread mutation.
type SpreadEventType string

const (
	SpreadCreated SpreadEventType = "spread.created"
	SpreadUpdated SpreadEventType = "spread.updated"
	SpreadDeleted SpreadEventType = "spread.deleted"
)

// SpreadEvent is published after a mutation commits. Spread is nil for
// deletions.
type SpreadEvent struct {
	Type      SpreadEventType `json:"type"`
	ID        string          `json:"id"`
	Spread    *Spread         `json:"spread,omitempty"`
	EmittedAt time.Time       `json:"emittedAt"`
}

// SpreadObserver is told about every committed mutation. Observe must not
// block the caller.
type SpreadObserver interface {
	Observe(ctx context.Context, evt SpreadEvent)
}
