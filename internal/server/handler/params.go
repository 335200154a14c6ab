package handler

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// parseSpreadQuery reads list parameters from the query string. Absent
// parameters keep their defaults; unknown parameters are ignored. Parse
// failures name the offending parameter. Range checks are left to
// SpreadQuery.Validate.
func parseSpreadQuery(v url.Values) (domain.SpreadQuery, error) {
	q := domain.NewSpreadQuery()

	var err error
	if q.Limit, err = intParam(v, "limit", q.Limit); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(v, "offset", q.Offset); err != nil {
		return q, err
	}

	q.Base = strings.TrimSpace(v.Get("base"))
	q.Quote = strings.TrimSpace(v.Get("quote"))
	q.Network = strings.TrimSpace(v.Get("network"))

	for _, b := range []struct {
		name string
		dst  **float64
	}{
		{"from_spread", &q.FromSpread}, {"to_spread", &q.ToSpread},
		{"from_liquidity", &q.FromLiquidity}, {"to_liquidity", &q.ToLiquidity},
		{"from_fdv", &q.FromFDV}, {"to_fdv", &q.ToFDV},
	} {
		if *b.dst, err = floatParam(v, b.name); err != nil {
			return q, err
		}
	}

	// exchanges accepts a comma-separated list, repeated, or both.
	for _, raw := range v["exchanges"] {
		q.Exchanges = append(q.Exchanges, strings.Split(raw, ",")...)
	}

	if s := strings.TrimSpace(v.Get("sort_by")); s != "" {
		q.SortBy = domain.SortField(s)
	}
	if s := strings.TrimSpace(v.Get("order_by")); s != "" {
		q.OrderBy = domain.SortOrder(strings.ToLower(s))
	}
	return q, nil
}

func intParam(v url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(name, "must be an integer")
	}
	return n, nil
}

func floatParam(v url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.Invalid(name, "must be a number")
	}
	return &f, nil
}
