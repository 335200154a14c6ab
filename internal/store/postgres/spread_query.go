package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// spreadColumns maps domain columns to SQL columns. Only columns listed here
// can reach generated SQL.
var spreadColumns = map[domain.Column]string{
	domain.ColumnBase:      "base",
	domain.ColumnQuote:     "quote",
	domain.ColumnNetwork:   "network",
	domain.ColumnExchange:  "exchange_id",
	domain.ColumnTopSpread: "top_spread",
	domain.ColumnLiquidity: "liquidity",
	domain.ColumnFDV:       "fdv",
	domain.ColumnSortDays:  "sort_days",
}

// sqlFilter accumulates WHERE clauses with positional arguments.
type sqlFilter struct {
	clauses []string
	args    []any
}

func (f *sqlFilter) bind(v any) string {
	f.args = append(f.args, v)
	return fmt.Sprintf("$%d", len(f.args))
}

// where renders "WHERE a AND b" or the empty string.
func (f *sqlFilter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// translatePredicates turns the query's predicate list into SQL. Values are
// always bound as arguments.
func translatePredicates(preds []domain.Predicate) (*sqlFilter, error) {
	f := &sqlFilter{}
	for _, p := range preds {
		col, ok := spreadColumns[p.Column]
		if !ok {
			return nil, fmt.Errorf("postgres: unknown column %q", p.Column)
		}
		switch p.Op {
		case domain.OpEqualFold:
			f.clauses = append(f.clauses, fmt.Sprintf("lower(%s) = lower(%s)", col, f.bind(p.Text)))
		case domain.OpGTE:
			f.clauses = append(f.clauses, fmt.Sprintf("%s >= %s", col, f.bind(p.Number)))
		case domain.OpLTE:
			f.clauses = append(f.clauses, fmt.Sprintf("%s <= %s", col, f.bind(p.Number)))
		case domain.OpIn:
			set := make([]string, len(p.Set))
			for i, v := range p.Set {
				set[i] = strings.ToLower(v)
			}
			f.clauses = append(f.clauses, fmt.Sprintf("lower(%s) = ANY(%s)", col, f.bind(set)))
		default:
			return nil, fmt.Errorf("postgres: unsupported operator %d on %q", p.Op, p.Column)
		}
	}
	return f, nil
}

// translateOrdering renders the ORDER BY clause. NULLs go last in both
// directions and id (byte order) breaks ties, matching domain.Ordering.Less.
func translateOrdering(o domain.Ordering) (string, error) {
	col, ok := spreadColumns[o.Column]
	if !ok {
		return "", fmt.Errorf("postgres: unknown sort column %q", o.Column)
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(` ORDER BY %s %s NULLS LAST, id COLLATE "C" ASC`, col, dir), nil
}
