package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadapi/internal/domain"
	"github.com/alanyoungcy/spreadapi/internal/store/postgres"
)

func openTestClient(t *testing.T) *postgres.Client {
	t.Helper()
	dsn := os.Getenv("SPREADAPI_TEST_DSN")
	if dsn == "" {
		t.Skip("SPREADAPI_TEST_DSN not set; integration test skipped")
	}
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := postgres.New(ctx, postgres.ClientConfig{DSN: dsn, ConnectTimeout: 5 * time.Second}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	if err := c.RunMigrations(ctx); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSpreadStore_CRUDAndList(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	store := postgres.NewSpreadStore(c.Pool())

	// Unique network so the filters only see rows from this run.
	network := fmt.Sprintf("T%d", time.Now().UnixNano())
	now := time.Now().UTC().Truncate(time.Microsecond)
	fdv := 1000.0

	ids := []string{network + "-b", network + "-a", network + "-c"}
	for i, id := range ids {
		sp := domain.Spread{
			ID: id, Base: "ETH", Quote: "USDT", Network: network,
			TopSpread: 2.5, Liquidity: float64(100 * (i + 1)), SortDays: 1,
			Exchange: "okx", CreatedAt: now, UpdatedAt: now,
		}
		if i == 0 {
			sp.FDV = &fdv
		}
		if err := store.Create(ctx, sp); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = store.Delete(context.Background(), id) })
	}

	q := domain.NewSpreadQuery()
	q.Network = network
	q.SortBy, q.OrderBy = domain.SortFDV, domain.OrderDesc
	page, err := store.List(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Items) != 3 {
		t.Fatalf("total=%d items=%d", page.Total, len(page.Items))
	}
	// Equal topSpread, fdv only on -b: non-null first, then id ascending.
	got := []string{page.Items[0].ID, page.Items[1].ID, page.Items[2].ID}
	want := []string{network + "-b", network + "-a", network + "-c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order=%v want %v", got, want)
		}
	}

	updated, err := store.Update(ctx, ids[1], func(s *domain.Spread) error {
		s.Liquidity = 42
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Liquidity != 42 || updated.Base != "ETH" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if err := store.Delete(ctx, ids[2]); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetByID(ctx, ids[2]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if err := store.Delete(ctx, ids[2]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSpreadStore_CEXRoundTrip(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	store := postgres.NewSpreadStore(c.Pool())

	now := time.Now().UTC().Truncate(time.Microsecond)
	vol, link := 1500.0, "https://www.mexc.com/exchange/ETH_USDT"
	id := fmt.Sprintf("cex-%d", time.Now().UnixNano())
	sp := domain.Spread{
		ID: id, Base: "ETH", Quote: "USDT", Network: "ARBITRUM",
		TopSpread: 1, Liquidity: 1, SortDays: 1, Exchange: "okx",
		CreatedAt: now, UpdatedAt: now,
		CEX: &domain.CEXData{
			Spot:    []domain.ExchangeQuote{{Exchange: "mexc", Volume: &vol, Link: &link}},
			Futures: []domain.ExchangeQuote{},
		},
	}
	if err := store.Create(ctx, sp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Delete(context.Background(), id) })

	got, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.CEX == nil || len(got.CEX.Spot) != 1 || *got.CEX.Spot[0].Volume != vol || *got.CEX.Spot[0].Link != link {
		t.Fatalf("cex=%+v", got.CEX)
	}

	cleared, err := store.Update(ctx, id, func(s *domain.Spread) error {
		s.CEX = nil
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if cleared.CEX != nil {
		t.Fatal("update result still carries cex")
	}
	if got, _ := store.GetByID(ctx, id); got.CEX != nil {
		t.Fatalf("cex not cleared in the row: %+v", got.CEX)
	}
}

func TestExchangeStore_Seeded(t *testing.T) {
	c := openTestClient(t)
	store := postgres.NewExchangeStore(c.Pool())

	ok, err := store.Exists(context.Background(), "OKX")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("okx should be seeded")
	}
	list, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) < 10 {
		t.Fatalf("expected seeded exchanges, got %d", len(list))
	}
}

func TestAuditStore_LogAndList(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	audit := postgres.NewAuditStore(c.Pool())

	since := time.Now().Add(-time.Second)
	marker := fmt.Sprintf("sp-%d", time.Now().UnixNano())
	if err := audit.Log(ctx, string(domain.SpreadCreated), map[string]any{"spread_id": marker}); err != nil {
		t.Fatal(err)
	}

	entries, err := audit.List(ctx, domain.ListOpts{Since: &since, Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Event == string(domain.SpreadCreated) && e.Detail["spread_id"] == marker {
			return
		}
	}
	t.Fatalf("entry for %s not found in %d entries", marker, len(entries))
}
