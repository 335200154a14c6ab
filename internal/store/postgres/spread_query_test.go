package postgres

import (
	"reflect"
	"strings"
	"testing"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

func TestTranslatePredicates_BindsEveryValue(t *testing.T) {
	from, to := 1.5, 9.0
	q := domain.NewSpreadQuery()
	q.Base = "eth"
	q.FromSpread = &from
	q.ToFDV = &to
	q.Exchanges = []string{"OKX", "binance", "okx"}

	f, err := translatePredicates(q.Predicates())
	if err != nil {
		t.Fatal(err)
	}

	want := " WHERE lower(base) = lower($1) AND top_spread >= $2 AND fdv <= $3 AND lower(exchange_id) = ANY($4)"
	if got := f.where(); got != want {
		t.Fatalf("where:\n got %q\nwant %q", got, want)
	}
	wantArgs := []any{"eth", 1.5, 9.0, []string{"okx", "binance"}}
	if !reflect.DeepEqual(f.args, wantArgs) {
		t.Fatalf("args=%#v want %#v", f.args, wantArgs)
	}
}

func TestTranslatePredicates_NoFilters(t *testing.T) {
	f, err := translatePredicates(domain.NewSpreadQuery().Predicates())
	if err != nil {
		t.Fatal(err)
	}
	if f.where() != "" || len(f.args) != 0 {
		t.Fatalf("expected empty filter, got %q %v", f.where(), f.args)
	}
}

func TestTranslatePredicates_RejectsUnknownColumn(t *testing.T) {
	_, err := translatePredicates([]domain.Predicate{{Column: "id; DROP TABLE spreads", Op: domain.OpEqualFold}})
	if err == nil {
		t.Fatal("expected error for unmapped column")
	}
}

func TestTranslateOrdering(t *testing.T) {
	cases := []struct {
		sort  domain.SortField
		order domain.SortOrder
		want  string
	}{
		{domain.SortTopSpread, domain.OrderAsc, `ORDER BY top_spread ASC NULLS LAST, id COLLATE "C" ASC`},
		{domain.SortFDV, domain.OrderDesc, `ORDER BY fdv DESC NULLS LAST, id COLLATE "C" ASC`},
		{domain.SortDays, domain.OrderDesc, `ORDER BY sort_days DESC NULLS LAST`},
	}
	for _, tc := range cases {
		q := domain.NewSpreadQuery()
		q.SortBy, q.OrderBy = tc.sort, tc.order
		got, err := translateOrdering(q.Ordering())
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(got, tc.want) {
			t.Fatalf("%s/%s: got %q, want it to contain %q", tc.sort, tc.order, got, tc.want)
		}
	}
}
