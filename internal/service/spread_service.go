package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// SpreadService owns the spread lifecycle: validation, exchange checks, id and
// timestamp assignment, then persistence. Successful writes are announced on
// the bus and recorded in the audit log when those are configured.
type SpreadService struct {
	spreads   domain.SpreadStore
	exchanges domain.ExchangeStore
	bus       domain.SignalBus  // optional
	audit     domain.AuditStore // optional
	observers []domain.SpreadObserver
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// SpreadServiceOption customises a SpreadService.
type SpreadServiceOption func(*SpreadService)

// WithBus publishes change events on bus.
func WithBus(bus domain.SignalBus) SpreadServiceOption {
	return func(s *SpreadService) { s.bus = bus }
}

// WithAudit records every write in audit.
func WithAudit(audit domain.AuditStore) SpreadServiceOption {
	return func(s *SpreadService) { s.audit = audit }
}

// WithObserver notifies obs of every committed mutation.
func WithObserver(obs domain.SpreadObserver) SpreadServiceOption {
	return func(s *SpreadService) { s.observers = append(s.observers, obs) }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SpreadServiceOption {
	return func(s *SpreadService) { s.now = now }
}

// WithIDGenerator overrides id assignment.
func WithIDGenerator(fn func() string) SpreadServiceOption {
	return func(s *SpreadService) { s.newID = fn }
}

// NewSpreadService creates a SpreadService with its required dependencies.
func NewSpreadService(
	spreads domain.SpreadStore,
	exchanges domain.ExchangeStore,
	logger *slog.Logger,
	opts ...SpreadServiceOption,
) *SpreadService {
	s := &SpreadService{
		spreads:   spreads,
		exchanges: exchanges,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List validates q and returns one page of matching spreads.
func (s *SpreadService) List(ctx context.Context, q domain.SpreadQuery) (domain.SpreadPage, error) {
	if err := q.Validate(); err != nil {
		return domain.SpreadPage{}, err
	}
	page, err := s.spreads.List(ctx, q)
	if err != nil {
		return domain.SpreadPage{}, fmt.Errorf("spread_service: list: %w", err)
	}
	return page, nil
}

// Get returns a spread by id or domain.ErrNotFound.
func (s *SpreadService) Get(ctx context.Context, id string) (domain.Spread, error) {
	sp, err := s.spreads.GetByID(ctx, id)
	if err != nil {
		return domain.Spread{}, fmt.Errorf("spread_service: get %q: %w", id, err)
	}
	return sp, nil
}

// Create validates in, assigns an id and timestamps, and stores the record.
func (s *SpreadService) Create(ctx context.Context, in domain.SpreadInput) (domain.Spread, error) {
	if err := in.Validate(); err != nil {
		return domain.Spread{}, err
	}
	if err := s.requireExchange(ctx, *in.Exchange); err != nil {
		return domain.Spread{}, err
	}

	sp := in.Build()
	sp.ID = s.newID()
	now := s.now().UTC()
	sp.CreatedAt, sp.UpdatedAt = now, now

	if err := s.spreads.Create(ctx, sp); err != nil {
		return domain.Spread{}, fmt.Errorf("spread_service: create: %w", err)
	}

	s.announce(ctx, domain.SpreadCreated, sp.ID, &sp)
	s.logger.InfoContext(ctx, "spread_service: spread created",
		slog.String("spread_id", sp.ID),
		slog.String("pair", sp.Base+"/"+sp.Quote),
		slog.String("exchange", sp.Exchange),
	)
	return sp, nil
}

// Update applies the present fields of patch and refreshes UpdatedAt. An
// empty patch returns the stored record without writing or announcing.
func (s *SpreadService) Update(ctx context.Context, id string, patch domain.SpreadPatch) (domain.Spread, error) {
	if err := patch.Validate(); err != nil {
		return domain.Spread{}, err
	}
	if patch.Empty() {
		return s.Get(ctx, id)
	}
	if patch.Exchange != nil {
		if err := s.requireExchange(ctx, *patch.Exchange); err != nil {
			return domain.Spread{}, err
		}
	}

	sp, err := s.spreads.Update(ctx, id, func(cur *domain.Spread) error {
		patch.ApplyTo(cur)
		cur.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return domain.Spread{}, fmt.Errorf("spread_service: update %q: %w", id, err)
	}

	s.announce(ctx, domain.SpreadUpdated, sp.ID, &sp)
	s.logger.InfoContext(ctx, "spread_service: spread updated", slog.String("spread_id", id))
	return sp, nil
}

// Delete removes a spread permanently.
func (s *SpreadService) Delete(ctx context.Context, id string) error {
	if err := s.spreads.Delete(ctx, id); err != nil {
		return fmt.Errorf("spread_service: delete %q: %w", id, err)
	}

	s.announce(ctx, domain.SpreadDeleted, id, nil)
	s.logger.InfoContext(ctx, "spread_service: spread deleted", slog.String("spread_id", id))
	return nil
}

// Exchanges returns the exchange reference list.
func (s *SpreadService) Exchanges(ctx context.Context) ([]domain.Exchange, error) {
	list, err := s.exchanges.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("spread_service: list exchanges: %w", err)
	}
	return list, nil
}

func (s *SpreadService) requireExchange(ctx context.Context, id string) error {
	ok, err := s.exchanges.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("spread_service: check exchange: %w", err)
	}
	if !ok {
		return domain.Invalid("exchange", "unknown exchange %q", domain.NormalizeExchangeID(id))
	}
	return nil
}

// announce publishes the change event, informs observers and writes the
// audit entry. No failure here affects the already committed write.
func (s *SpreadService) announce(ctx context.Context, typ domain.SpreadEventType, id string, sp *domain.Spread) {
	evt := domain.SpreadEvent{Type: typ, ID: id, Spread: sp, EmittedAt: s.now().UTC()}

	if s.bus != nil {
		payload, err := json.Marshal(evt)
		if err == nil {
			err = s.bus.Publish(ctx, domain.SpreadChannel, payload)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "spread_service: publish event failed",
				slog.String("spread_id", id),
				slog.String("event", string(typ)),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, obs := range s.observers {
		obs.Observe(ctx, evt)
	}

	if s.audit != nil {
		detail := map[string]any{"spread_id": id}
		if sp != nil {
			detail["exchange"] = sp.Exchange
			detail["pair"] = sp.Base + "/" + sp.Quote
			detail["network"] = sp.Network
		}
		if err := s.audit.Log(ctx, string(typ), detail); err != nil {
			s.logger.WarnContext(ctx, "spread_service: audit log failed",
				slog.String("spread_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}
