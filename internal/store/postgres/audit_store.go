package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends an entry. detail is stored as JSONB.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, payload,
	); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns entries newest first, optionally bounded in time.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	f := &sqlFilter{}
	if opts.Since != nil {
		f.clauses = append(f.clauses, "created_at >= "+f.bind(*opts.Since))
	}
	if opts.Until != nil {
		f.clauses = append(f.clauses, "created_at <= "+f.bind(*opts.Until))
	}

	query := `SELECT id, event, detail, created_at FROM audit_log` + f.where() + ` ORDER BY id DESC`
	if opts.Limit > 0 {
		query += " LIMIT " + f.bind(opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET " + f.bind(opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AuditEntry, error) {
		var (
			e       domain.AuditEntry
			payload []byte
			created time.Time
		)
		if err := row.Scan(&e.ID, &e.Event, &payload, &created); err != nil {
			return e, err
		}
		e.CreatedAt = created.UTC()
		if payload != nil {
			if err := json.Unmarshal(payload, &e.Detail); err != nil {
				return e, fmt.Errorf("unmarshal detail: %w", err)
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan audit entries: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
