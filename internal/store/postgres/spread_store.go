package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// SpreadStore implements domain.SpreadStore using PostgreSQL.
type SpreadStore struct {
	pool *pgxpool.Pool
}

// NewSpreadStore creates a new SpreadStore backed by the given connection pool.
func NewSpreadStore(pool *pgxpool.Pool) *SpreadStore {
	return &SpreadStore{pool: pool}
}

const spreadCols = `id, base, quote, network, top_spread, liquidity, fdv, sort_days,
	exchange_id, contract, dex, price_1, price_2, price_for,
	direction_from, direction_to, cex, observed_at, created_at, updated_at`

// encodeCEX marshals the quote lists for the cex JSONB column; nil is NULL.
func encodeCEX(c *domain.CEXData) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func scanSpread(row pgx.Row) (domain.Spread, error) {
	var (
		s   domain.Spread
		cex []byte
	)
	err := row.Scan(
		&s.ID, &s.Base, &s.Quote, &s.Network,
		&s.TopSpread, &s.Liquidity, &s.FDV, &s.SortDays,
		&s.Exchange, &s.Contract, &s.Dex,
		&s.Price1, &s.Price2, &s.PriceFor,
		&s.Direction.From, &s.Direction.To,
		&cex, &s.ObservedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Spread{}, err
	}
	if len(cex) > 0 {
		s.CEX = &domain.CEXData{}
		if err := json.Unmarshal(cex, s.CEX); err != nil {
			return domain.Spread{}, fmt.Errorf("decode cex of %s: %w", s.ID, err)
		}
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if s.ObservedAt != nil {
		t := s.ObservedAt.UTC()
		s.ObservedAt = &t
	}
	return s, nil
}

// Create inserts a new spread. ID and timestamps must already be set.
func (s *SpreadStore) Create(ctx context.Context, sp domain.Spread) error {
	const query = `
		INSERT INTO spreads (` + spreadCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	cex, err := encodeCEX(sp.CEX)
	if err != nil {
		return fmt.Errorf("postgres: create spread %s: %w", sp.ID, err)
	}
	_, err = s.pool.Exec(ctx, query,
		sp.ID, sp.Base, sp.Quote, sp.Network,
		sp.TopSpread, sp.Liquidity, sp.FDV, sp.SortDays,
		sp.Exchange, sp.Contract, sp.Dex,
		sp.Price1, sp.Price2, sp.PriceFor,
		sp.Direction.From, sp.Direction.To,
		cex, sp.ObservedAt, sp.CreatedAt, sp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create spread %s: %w", sp.ID, err)
	}
	return nil
}

// GetByID retrieves a spread by its primary key.
func (s *SpreadStore) GetByID(ctx context.Context, id string) (domain.Spread, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+spreadCols+` FROM spreads WHERE id = $1`, id)
	sp, err := scanSpread(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Spread{}, domain.ErrNotFound
		}
		return domain.Spread{}, fmt.Errorf("postgres: get spread %s: %w", id, err)
	}
	return sp, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
// An error from fn rolls the transaction back.
func (s *SpreadStore) Update(ctx context.Context, id string, fn func(*domain.Spread) error) (domain.Spread, error) {
	const query = `
		UPDATE spreads SET
			base           = $2,
			quote          = $3,
			network        = $4,
			top_spread     = $5,
			liquidity      = $6,
			fdv            = $7,
			sort_days      = $8,
			exchange_id    = $9,
			contract       = $10,
			dex            = $11,
			price_1        = $12,
			price_2        = $13,
			price_for      = $14,
			direction_from = $15,
			direction_to   = $16,
			cex            = $17,
			observed_at    = $18,
			updated_at     = $19
		WHERE id = $1`

	var updated domain.Spread
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		sp, err := scanSpread(tx.QueryRow(ctx,
			`SELECT `+spreadCols+` FROM spreads WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("postgres: lock spread %s: %w", id, err)
		}

		if err := fn(&sp); err != nil {
			return err
		}
		sp.ID = id

		cex, err := encodeCEX(sp.CEX)
		if err != nil {
			return fmt.Errorf("postgres: update spread %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, query,
			sp.ID, sp.Base, sp.Quote, sp.Network,
			sp.TopSpread, sp.Liquidity, sp.FDV, sp.SortDays,
			sp.Exchange, sp.Contract, sp.Dex,
			sp.Price1, sp.Price2, sp.PriceFor,
			sp.Direction.From, sp.Direction.To,
			cex, sp.ObservedAt, sp.UpdatedAt,
		); err != nil {
			return fmt.Errorf("postgres: update spread %s: %w", id, err)
		}
		updated = sp
		return nil
	})
	if err != nil {
		return domain.Spread{}, err
	}
	return updated, nil
}

// Delete removes a spread permanently.
func (s *SpreadStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM spreads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete spread %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List runs the count and the page query in one read-only repeatable-read
// transaction so Total and Items describe the same snapshot.
func (s *SpreadStore) List(ctx context.Context, q domain.SpreadQuery) (domain.SpreadPage, error) {
	filter, err := translatePredicates(q.Predicates())
	if err != nil {
		return domain.SpreadPage{}, err
	}
	orderBy, err := translateOrdering(q.Ordering())
	if err != nil {
		return domain.SpreadPage{}, err
	}

	countSQL := `SELECT COUNT(*) FROM spreads` + filter.where()
	pageArgs := append(append([]any{}, filter.args...), q.Limit, q.Offset)
	pageSQL := `SELECT ` + spreadCols + ` FROM spreads` + filter.where() + orderBy +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(filter.args)+1, len(filter.args)+2)

	page := domain.SpreadPage{Items: []domain.Spread{}}
	txOpts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err = pgx.BeginTxFunc(ctx, s.pool, txOpts, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, countSQL, filter.args...).Scan(&page.Total); err != nil {
			return fmt.Errorf("postgres: count spreads: %w", err)
		}
		if page.Total == 0 || int64(q.Offset) >= page.Total {
			return nil
		}

		rows, err := tx.Query(ctx, pageSQL, pageArgs...)
		if err != nil {
			return fmt.Errorf("postgres: list spreads: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			sp, err := scanSpread(rows)
			if err != nil {
				return fmt.Errorf("postgres: scan spread: %w", err)
			}
			page.Items = append(page.Items, sp)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("postgres: list spreads rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.SpreadPage{}, err
	}
	return page, nil
}

// All streams every spread ordered by id.
func (s *SpreadStore) All(ctx context.Context, fn func(domain.Spread) error) error {
	rows, err := s.pool.Query(ctx, `SELECT `+spreadCols+` FROM spreads ORDER BY id COLLATE "C"`)
	if err != nil {
		return fmt.Errorf("postgres: scan all spreads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sp, err := scanSpread(rows)
		if err != nil {
			return fmt.Errorf("postgres: scan spread: %w", err)
		}
		if err := fn(sp); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Compile-time interface check.
var _ domain.SpreadStore = (*SpreadStore)(nil)
