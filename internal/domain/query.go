package domain

import (
	"strings"
)

// Pagination bounds for spread listings. Out-of-range limits are rejected,
// not clamped.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// SortField is the wire value of the sort_by parameter.
type SortField string

const (
	SortTopSpread SortField = "topSpread"
	SortLiquidity SortField = "liquidity"
	SortFDV       SortField = "sortFdv"
	SortDays      SortField = "sortDays"
)

// SortOrder is the wire value of the order_by parameter.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Column names a filterable or sortable spread attribute independently of how
// a store lays it out.
type Column string

const (
	ColumnBase      Column = "base"
	ColumnQuote     Column = "quote"
	ColumnNetwork   Column = "network"
	ColumnExchange  Column = "exchange"
	ColumnTopSpread Column = "topSpread"
	ColumnLiquidity Column = "liquidity"
	ColumnFDV       Column = "fdv"
	ColumnSortDays  Column = "sortDays"
)

// Column maps a sort field to the attribute it orders by.
func (f SortField) Column() (Column, bool) {
	switch f {
	case SortTopSpread:
		return ColumnTopSpread, true
	case SortLiquidity:
		return ColumnLiquidity, true
	case SortFDV:
		return ColumnFDV, true
	case SortDays:
		return ColumnSortDays, true
	}
	return "", false
}

// Op is a predicate comparison.
type Op int

const (
	OpEqualFold Op = iota // case-insensitive equality on a text column
	OpGTE                 // numeric column >= Number
	OpLTE                 // numeric column <= Number
	OpIn                  // text column is one of Set (case-insensitive)
)

// Predicate is one independent filter. A query's predicates are combined with
// logical AND.
type Predicate struct {
	Column Column
	Op     Op
	Text   string
	Number float64
	Set    []string
}

// Match evaluates the predicate against s. A numeric predicate on a null
// value never matches.
func (p Predicate) Match(s Spread) bool {
	switch p.Op {
	case OpEqualFold:
		v, ok := textValue(p.Column, s)
		return ok && strings.EqualFold(v, p.Text)
	case OpIn:
		v, ok := textValue(p.Column, s)
		if !ok {
			return false
		}
		for _, want := range p.Set {
			if strings.EqualFold(v, want) {
				return true
			}
		}
		return false
	case OpGTE:
		v, ok := NumericValue(p.Column, s)
		return ok && v >= p.Number
	case OpLTE:
		v, ok := NumericValue(p.Column, s)
		return ok && v <= p.Number
	}
	return false
}

// MatchAll reports whether s satisfies every predicate.
func MatchAll(preds []Predicate, s Spread) bool {
	for _, p := range preds {
		if !p.Match(s) {
			return false
		}
	}
	return true
}

// NumericValue returns the value of a numeric column; ok is false for null fdv
// or a non-numeric column.
func NumericValue(c Column, s Spread) (float64, bool) {
	switch c {
	case ColumnTopSpread:
		return s.TopSpread, true
	case ColumnLiquidity:
		return s.Liquidity, true
	case ColumnSortDays:
		return s.SortDays, true
	case ColumnFDV:
		if s.FDV == nil {
			return 0, false
		}
		return *s.FDV, true
	}
	return 0, false
}

func textValue(c Column, s Spread) (string, bool) {
	switch c {
	case ColumnBase:
		return s.Base, true
	case ColumnQuote:
		return s.Quote, true
	case ColumnNetwork:
		return s.Network, true
	case ColumnExchange:
		return s.Exchange, true
	}
	return "", false
}

// SpreadQuery is a validated list request: filters, ordering and window.
type SpreadQuery struct {
	Limit  int
	Offset int

	Base    string
	Quote   string
	Network string

	FromSpread    *float64
	ToSpread      *float64
	FromLiquidity *float64
	ToLiquidity   *float64
	FromFDV       *float64
	ToFDV         *float64

	Exchanges []string

	SortBy  SortField
	OrderBy SortOrder
}

// NewSpreadQuery returns the unrestricted default page.
func NewSpreadQuery() SpreadQuery {
	return SpreadQuery{
		Limit:   DefaultLimit,
		SortBy:  SortTopSpread,
		OrderBy: OrderAsc,
	}
}

// Validate rejects out-of-range pagination, unknown enums and non-finite
// bounds. The error names the offending wire parameter.
func (q SpreadQuery) Validate() error {
	if q.Limit < 1 || q.Limit > MaxLimit {
		return Invalid("limit", "must be between 1 and %d", MaxLimit)
	}
	if q.Offset < 0 {
		return Invalid("offset", "must be >= 0")
	}
	if _, ok := q.SortBy.Column(); !ok {
		return Invalid("sort_by", "must be one of topSpread, liquidity, sortFdv, sortDays")
	}
	if q.OrderBy != OrderAsc && q.OrderBy != OrderDesc {
		return Invalid("order_by", "must be asc or desc")
	}
	for _, b := range []struct {
		name string
		v    *float64
	}{
		{"from_spread", q.FromSpread}, {"to_spread", q.ToSpread},
		{"from_liquidity", q.FromLiquidity}, {"to_liquidity", q.ToLiquidity},
		{"from_fdv", q.FromFDV}, {"to_fdv", q.ToFDV},
	} {
		if b.v != nil && !finite(*b.v) {
			return Invalid(b.name, "must be a finite number")
		}
	}
	return nil
}

// Predicates builds the filter list from the parameters that are present.
// Absent parameters contribute nothing.
func (q SpreadQuery) Predicates() []Predicate {
	var preds []Predicate

	text := func(c Column, v string) {
		if v = strings.TrimSpace(v); v != "" {
			preds = append(preds, Predicate{Column: c, Op: OpEqualFold, Text: v})
		}
	}
	bound := func(c Column, op Op, v *float64) {
		if v != nil {
			preds = append(preds, Predicate{Column: c, Op: op, Number: *v})
		}
	}

	text(ColumnBase, q.Base)
	text(ColumnQuote, q.Quote)
	text(ColumnNetwork, q.Network)

	bound(ColumnTopSpread, OpGTE, q.FromSpread)
	bound(ColumnTopSpread, OpLTE, q.ToSpread)
	bound(ColumnLiquidity, OpGTE, q.FromLiquidity)
	bound(ColumnLiquidity, OpLTE, q.ToLiquidity)
	bound(ColumnFDV, OpGTE, q.FromFDV)
	bound(ColumnFDV, OpLTE, q.ToFDV)

	if set := NormalizeExchangeSet(q.Exchanges); len(set) > 0 {
		preds = append(preds, Predicate{Column: ColumnExchange, Op: OpIn, Set: set})
	}
	return preds
}

// Ordering is the resolved sort key of a query. Ties are always broken by ID
// ascending and null values sort last in either direction.
type Ordering struct {
	Column Column
	Desc   bool
}

// Ordering resolves sort_by/order_by. Call Validate first.
func (q SpreadQuery) Ordering() Ordering {
	col, ok := q.SortBy.Column()
	if !ok {
		col = ColumnTopSpread
	}
	return Ordering{Column: col, Desc: q.OrderBy == OrderDesc}
}

// Less orders a before b.
func (o Ordering) Less(a, b Spread) bool {
	av, aok := NumericValue(o.Column, a)
	bv, bok := NumericValue(o.Column, b)
	switch {
	case aok && !bok:
		return true
	case !aok && bok:
		return false
	case aok && bok && av != bv:
		if o.Desc {
			return av > bv
		}
		return av < bv
	}
	return a.ID < b.ID
}

// NormalizeExchangeSet lower-cases, trims, drops empties and deduplicates,
// preserving first-seen order.
func NormalizeExchangeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = NormalizeExchangeID(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// SpreadPage is one window of a listing. Total counts every match under the
// same filters regardless of Limit/Offset.
type SpreadPage struct {
	Items []Spread
	Total int64
}
