// Package memory implements the domain stores in process. It backs tests and
// the "memory" storage driver; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// SpreadStore implements domain.SpreadStore over a map guarded by a RWMutex.
type SpreadStore struct {
	mu      sync.RWMutex
	spreads map[string]domain.Spread
}

// NewSpreadStore returns an empty store.
func NewSpreadStore() *SpreadStore {
	return &SpreadStore{spreads: make(map[string]domain.Spread)}
}

func (s *SpreadStore) Create(_ context.Context, sp domain.Spread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spreads[sp.ID]; ok {
		return domain.Invalid("id", "already exists")
	}
	s.spreads[sp.ID] = detach(sp)
	return nil
}

func (s *SpreadStore) GetByID(_ context.Context, id string) (domain.Spread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spreads[id]
	if !ok {
		return domain.Spread{}, domain.ErrNotFound
	}
	return detach(sp), nil
}

// Update applies fn to a copy and stores it only if fn succeeds.
func (s *SpreadStore) Update(_ context.Context, id string, fn func(*domain.Spread) error) (domain.Spread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spreads[id]
	if !ok {
		return domain.Spread{}, domain.ErrNotFound
	}
	sp = detach(sp)
	if err := fn(&sp); err != nil {
		return domain.Spread{}, err
	}
	sp.ID = id
	s.spreads[id] = detach(sp)
	return sp, nil
}

func (s *SpreadStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spreads[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.spreads, id)
	return nil
}

// List filters, sorts and windows the records under a read lock.
func (s *SpreadStore) List(_ context.Context, q domain.SpreadQuery) (domain.SpreadPage, error) {
	preds := q.Predicates()
	order := q.Ordering()

	s.mu.RLock()
	matched := make([]domain.Spread, 0, len(s.spreads))
	for _, sp := range s.spreads {
		if domain.MatchAll(preds, sp) {
			matched = append(matched, detach(sp))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return order.Less(matched[i], matched[j]) })

	page := domain.SpreadPage{Total: int64(len(matched)), Items: []domain.Spread{}}
	if q.Offset >= len(matched) {
		return page, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = append(page.Items, matched[q.Offset:end]...)
	return page, nil
}

func (s *SpreadStore) All(ctx context.Context, fn func(domain.Spread) error) error {
	s.mu.RLock()
	all := make([]domain.Spread, 0, len(s.spreads))
	for _, sp := range s.spreads {
		all = append(all, detach(sp))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, sp := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(sp); err != nil {
			return err
		}
	}
	return nil
}

// detach copies the nested quote lists so callers never alias stored state.
func detach(sp domain.Spread) domain.Spread {
	sp.CEX = sp.CEX.Clone()
	return sp
}

// ExchangeStore is a fixed, read-only set of exchanges.
type ExchangeStore struct {
	byID map[string]domain.Exchange
}

// NewExchangeStore indexes the given exchanges by normalised ID.
func NewExchangeStore(exchanges []domain.Exchange) *ExchangeStore {
	m := make(map[string]domain.Exchange, len(exchanges))
	for _, e := range exchanges {
		e.ID = domain.NormalizeExchangeID(e.ID)
		m[e.ID] = e
	}
	return &ExchangeStore{byID: m}
}

// List returns the exchanges sorted by ID.
func (s *ExchangeStore) List(_ context.Context) ([]domain.Exchange, error) {
	out := make([]domain.Exchange, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ExchangeStore) Exists(_ context.Context, id string) (bool, error) {
	_, ok := s.byID[domain.NormalizeExchangeID(id)]
	return ok, nil
}

// DefaultExchanges mirrors the rows seeded by the Postgres migrations.
func DefaultExchanges() []domain.Exchange {
	return []domain.Exchange{
		{ID: "binance", Name: "Binance", URL: "https://www.binance.com", Kind: domain.ExchangeKindCEX},
		{ID: "bybit", Name: "Bybit", URL: "https://www.bybit.com", Kind: domain.ExchangeKindCEX},
		{ID: "coinbase", Name: "Coinbase", URL: "https://www.coinbase.com", Kind: domain.ExchangeKindCEX},
		{ID: "gate", Name: "Gate", URL: "https://www.gate.io", Kind: domain.ExchangeKindCEX},
		{ID: "kraken", Name: "Kraken", URL: "https://www.kraken.com", Kind: domain.ExchangeKindCEX},
		{ID: "mexc", Name: "MEXC", URL: "https://www.mexc.com", Kind: domain.ExchangeKindCEX},
		{ID: "okx", Name: "OKX", URL: "https://www.okx.com", Kind: domain.ExchangeKindCEX},
		{ID: "jupiter", Name: "Jupiter", URL: "https://jup.ag", Kind: domain.ExchangeKindDEX},
		{ID: "raydium", Name: "Raydium", URL: "https://raydium.io", Kind: domain.ExchangeKindDEX},
		{ID: "uniswap", Name: "Uniswap", URL: "https://app.uniswap.org", Kind: domain.ExchangeKindDEX},
	}
}

var (
	_ domain.SpreadStore   = (*SpreadStore)(nil)
	_ domain.ExchangeStore = (*ExchangeStore)(nil)
)
