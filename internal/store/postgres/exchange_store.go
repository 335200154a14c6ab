package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// ExchangeStore implements domain.ExchangeStore over the seeded exchanges
// table.
type ExchangeStore struct {
	pool *pgxpool.Pool
}

// NewExchangeStore creates a new ExchangeStore backed by the given pool.
func NewExchangeStore(pool *pgxpool.Pool) *ExchangeStore {
	return &ExchangeStore{pool: pool}
}

// List returns all exchanges ordered by id.
func (s *ExchangeStore) List(ctx context.Context) ([]domain.Exchange, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, url, kind FROM exchanges ORDER BY id COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list exchanges: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Exchange, error) {
		var e domain.Exchange
		err := row.Scan(&e.ID, &e.Name, &e.URL, &e.Kind)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan exchanges: %w", err)
	}
	return out, nil
}

// Exists reports whether id (compared case-insensitively) is a known exchange.
func (s *ExchangeStore) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM exchanges WHERE id = $1)`, domain.NormalizeExchangeID(id),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("postgres: check exchange %s: %w", id, err)
	}
	return ok, nil
}

// Compile-time interface check.
var _ domain.ExchangeStore = (*ExchangeStore)(nil)
