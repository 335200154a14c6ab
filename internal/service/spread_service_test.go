package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadapi/internal/domain"
	"github.com/alanyoungcy/spreadapi/internal/store/memory"
)

type recordingBus struct {
	mu   sync.Mutex
	msgs []domain.SpreadEvent
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	if channel != domain.SpreadChannel {
		return errors.New("unexpected channel " + channel)
	}
	var evt domain.SpreadEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return err
	}
	b.mu.Lock()
	b.msgs = append(b.msgs, evt)
	b.mu.Unlock()
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

type recordingAudit struct {
	events []string
}

func (a *recordingAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }

func validInput() domain.SpreadInput {
	return domain.SpreadInput{
		Base:      strp("eth"),
		Quote:     strp("usdt"),
		Network:   strp("arbitrum"),
		TopSpread: f64p(2.5),
		Liquidity: f64p(50000),
		SortDays:  f64p(3),
		Exchange:  strp("OKX"),
	}
}

func newTestService(t *testing.T) (*SpreadService, *recordingBus, *recordingAudit, *time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	bus := &recordingBus{}
	audit := &recordingAudit{}
	n := 0
	svc := NewSpreadService(
		memory.NewSpreadStore(),
		memory.NewExchangeStore(memory.DefaultExchanges()),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithBus(bus),
		WithAudit(audit),
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { n++; return "sp-" + string(rune('0'+n)) }),
	)
	return svc, bus, audit, &now
}

func TestSpreadService_CreateThenGet(t *testing.T) {
	svc, bus, audit, now := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != "sp-1" || created.Base != "ETH" || created.Network != "ARBITRUM" || created.Exchange != "okx" {
		t.Fatalf("unexpected record: %+v", created)
	}
	if !created.CreatedAt.Equal(*now) || !created.UpdatedAt.Equal(*now) {
		t.Fatalf("timestamps: %v %v", created.CreatedAt, created.UpdatedAt)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TopSpread != 2.5 || got.Liquidity != 50000 || got.FDV != nil {
		t.Fatalf("get returned %+v", got)
	}

	if len(bus.msgs) != 1 || bus.msgs[0].Type != domain.SpreadCreated || bus.msgs[0].Spread == nil {
		t.Fatalf("events=%+v", bus.msgs)
	}
	if len(audit.events) != 1 || audit.events[0] != "spread.created" {
		t.Fatalf("audit=%v", audit.events)
	}
}

func TestSpreadService_CreateRejectsUnknownExchange(t *testing.T) {
	svc, bus, _, _ := newTestService(t)
	in := validInput()
	in.Exchange = strp("nowhere")

	_, err := svc.Create(context.Background(), in)
	ve, ok := domain.AsValidation(err)
	if !ok || ve.Field != "exchange" {
		t.Fatalf("expected exchange validation error, got %v", err)
	}
	if len(bus.msgs) != 0 {
		t.Fatal("no event expected for rejected create")
	}
}

func TestSpreadService_CreateRequiresFields(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	in := validInput()
	in.Liquidity = nil

	_, err := svc.Create(context.Background(), in)
	if ve, ok := domain.AsValidation(err); !ok || ve.Field != "liquidity" {
		t.Fatalf("expected liquidity validation error, got %v", err)
	}
}

func TestSpreadService_PartialUpdate(t *testing.T) {
	svc, bus, _, now := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	*now = now.Add(time.Hour)
	updated, err := svc.Update(ctx, created.ID, domain.SpreadPatch{TopSpread: f64p(4.2), FDV: domain.Some(1e6)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.TopSpread != 4.2 || updated.FDV == nil || *updated.FDV != 1e6 {
		t.Fatalf("patched fields not applied: %+v", updated)
	}
	if updated.Base != "ETH" || updated.Liquidity != 50000 || updated.Exchange != "okx" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(*now) || updated.CreatedAt.Equal(updated.UpdatedAt) {
		t.Fatalf("updatedAt not refreshed: created=%v updated=%v", updated.CreatedAt, updated.UpdatedAt)
	}
	if last := bus.msgs[len(bus.msgs)-1]; last.Type != domain.SpreadUpdated {
		t.Fatalf("last event=%s", last.Type)
	}
}

func TestSpreadService_UpdateClearsAndReplacesCEX(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	in := validInput()
	in.FDV = f64p(2e6)
	in.CEX = &domain.CEXData{
		Spot:    []domain.ExchangeQuote{{Exchange: "MEXC", Volume: f64p(1200), Link: strp("https://mexc.com/x")}},
		Futures: []domain.ExchangeQuote{{Exchange: "bybit", Profit: f64p(14.5)}},
	}
	created, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CEX == nil || len(got.CEX.Spot) != 1 || got.CEX.Spot[0].Exchange != "mexc" ||
		*got.CEX.Spot[0].Link != "https://mexc.com/x" || *got.CEX.Futures[0].Profit != 14.5 {
		t.Fatalf("cex not round-tripped: %+v", got.CEX)
	}

	updated, err := svc.Update(ctx, created.ID, domain.SpreadPatch{
		FDV: domain.Null[float64](),
		CEX: domain.Some(domain.CEXData{Spot: []domain.ExchangeQuote{{Exchange: "gate"}}}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.FDV != nil {
		t.Fatalf("fdv not cleared: %v", *updated.FDV)
	}
	if len(updated.CEX.Spot) != 1 || updated.CEX.Spot[0].Exchange != "gate" || len(updated.CEX.Futures) != 0 {
		t.Fatalf("cex not replaced: %+v", updated.CEX)
	}

	// Later patches that leave cex out keep the stored quotes.
	again, err := svc.Update(ctx, created.ID, domain.SpreadPatch{TopSpread: f64p(3)})
	if err != nil {
		t.Fatal(err)
	}
	if again.CEX == nil || again.CEX.Spot[0].Exchange != "gate" {
		t.Fatalf("cex lost on unrelated patch: %+v", again.CEX)
	}
}

func TestSpreadService_EmptyUpdateIsNoop(t *testing.T) {
	svc, bus, _, now := newTestService(t)
	ctx := context.Background()

	created, _ := svc.Create(ctx, validInput())
	*now = now.Add(time.Hour)
	got, err := svc.Update(ctx, created.ID, domain.SpreadPatch{})
	if err != nil {
		t.Fatal(err)
	}
	if !got.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("empty patch bumped updatedAt: %v", got.UpdatedAt)
	}
	if len(bus.msgs) != 1 {
		t.Fatalf("empty patch announced: %+v", bus.msgs)
	}
	if _, err := svc.Update(ctx, "missing", domain.SpreadPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSpreadService_UpdateErrors(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Update(ctx, "missing", domain.SpreadPatch{TopSpread: f64p(1)}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	created, _ := svc.Create(ctx, validInput())
	if _, err := svc.Update(ctx, created.ID, domain.SpreadPatch{Exchange: strp("nowhere")}); err == nil {
		t.Fatal("expected unknown exchange error")
	}
	if _, err := svc.Update(ctx, created.ID, domain.SpreadPatch{Liquidity: f64p(-1)}); err == nil {
		t.Fatal("expected negative liquidity error")
	}
	got, _ := svc.Get(ctx, created.ID)
	if got.Exchange != "okx" || got.Liquidity != 50000 {
		t.Fatalf("rejected patch leaked into store: %+v", got)
	}
}

func TestSpreadService_DeleteThenGet(t *testing.T) {
	svc, bus, audit, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.Create(ctx, validInput())
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}

	last := bus.msgs[len(bus.msgs)-1]
	if last.Type != domain.SpreadDeleted || last.Spread != nil || last.ID != created.ID {
		t.Fatalf("delete event=%+v", last)
	}
	if audit.events[len(audit.events)-1] != "spread.deleted" {
		t.Fatalf("audit=%v", audit.events)
	}
}

func TestSpreadService_ListValidates(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	q := domain.NewSpreadQuery()
	q.Limit = 101
	if _, err := svc.List(context.Background(), q); err == nil {
		t.Fatal("expected limit validation error")
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, validInput()); err != nil {
			t.Fatal(err)
		}
	}
	page, err := svc.List(ctx, domain.NewSpreadQuery())
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Items) != 3 {
		t.Fatalf("page=%+v", page)
	}
}

func TestSpreadService_NoOptionalDeps(t *testing.T) {
	svc := NewSpreadService(
		memory.NewSpreadStore(),
		memory.NewExchangeStore(memory.DefaultExchanges()),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	sp, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}
	if len(sp.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", sp.ID)
	}
}

type observerFunc func(context.Context, domain.SpreadEvent)

func (f observerFunc) Observe(ctx context.Context, evt domain.SpreadEvent) { f(ctx, evt) }

func TestSpreadService_ObserversSeeEveryMutation(t *testing.T) {
	var seen []domain.SpreadEventType
	svc := NewSpreadService(
		memory.NewSpreadStore(),
		memory.NewExchangeStore(memory.DefaultExchanges()),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithObserver(observerFunc(func(_ context.Context, evt domain.SpreadEvent) {
			seen = append(seen, evt.Type)
		})),
	)
	ctx := context.Background()

	sp, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Update(ctx, sp.ID, domain.SpreadPatch{TopSpread: f64p(4)}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, sp.ID); err != nil {
		t.Fatal(err)
	}
	// Failed writes are not announced.
	if err := svc.Delete(ctx, sp.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}

	want := []domain.SpreadEventType{domain.SpreadCreated, domain.SpreadUpdated, domain.SpreadDeleted}
	if len(seen) != len(want) {
		t.Fatalf("seen=%v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen=%v", seen)
		}
	}
}
