package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for audit queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SpreadStore persists spread records.
type SpreadStore interface {
	Create(ctx context.Context, s Spread) error
	GetByID(ctx context.Context, id string) (Spread, error)
	// Update loads the record, applies fn and persists the result atomically.
	// It returns ErrNotFound when id does not exist.
	Update(ctx context.Context, id string, fn func(*Spread) error) (Spread, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q SpreadQuery) (SpreadPage, error)
	// All streams every record ordered by ID, for exports.
	All(ctx context.Context, fn func(Spread) error) error
}

// ExchangeStore reads exchange reference data.
type ExchangeStore interface {
	List(ctx context.Context) ([]Exchange, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
