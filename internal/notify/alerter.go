package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

const (
	alertQueueSize = 64
	sendTimeout    = 15 * time.Second
)

// AlertRule selects which spread events raise an alert.
type AlertRule struct {
	// Events lists the event types to alert on; empty means created and
	// updated.
	Events []domain.SpreadEventType
	// MinTopSpread drops events whose spread is below the threshold.
	MinTopSpread float64
}

// SpreadAlerter turns spread events into chat alerts. Observe never blocks;
// delivery happens on Run's goroutine and events are dropped while the queue
// is full.
type SpreadAlerter struct {
	notifier *Notifier
	events   map[domain.SpreadEventType]bool
	min      float64
	queue    chan domain.SpreadEvent
	logger   *slog.Logger
}

// NewSpreadAlerter creates a SpreadAlerter delivering through notifier.
func NewSpreadAlerter(notifier *Notifier, rule AlertRule, logger *slog.Logger) *SpreadAlerter {
	events := rule.Events
	if len(events) == 0 {
		events = []domain.SpreadEventType{domain.SpreadCreated, domain.SpreadUpdated}
	}
	allowed := make(map[domain.SpreadEventType]bool, len(events))
	for _, e := range events {
		allowed[e] = true
	}
	return &SpreadAlerter{
		notifier: notifier,
		events:   allowed,
		min:      rule.MinTopSpread,
		queue:    make(chan domain.SpreadEvent, alertQueueSize),
		logger:   logger.With(slog.String("component", "alerter")),
	}
}

// Matches reports whether evt passes the rule.
func (a *SpreadAlerter) Matches(evt domain.SpreadEvent) bool {
	if !a.events[evt.Type] {
		return false
	}
	if evt.Spread == nil {
		return evt.Type == domain.SpreadDeleted
	}
	return evt.Spread.TopSpread >= a.min
}

// Observe queues evt for delivery when it matches the rule.
func (a *SpreadAlerter) Observe(ctx context.Context, evt domain.SpreadEvent) {
	if !a.Matches(evt) {
		return
	}
	select {
	case a.queue <- evt:
	default:
		a.logger.WarnContext(ctx, "alert queue full, dropping event",
			slog.String("event", string(evt.Type)),
			slog.String("spread_id", evt.ID),
		)
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (a *SpreadAlerter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-a.queue:
			title, msg := formatAlert(evt)
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			_ = a.notifier.Dispatch(sendCtx, title, msg)
			cancel()
		}
	}
}

func formatAlert(evt domain.SpreadEvent) (string, string) {
	if evt.Spread == nil {
		return "Spread removed", "id: " + evt.ID
	}
	s := evt.Spread
	title := fmt.Sprintf("%s/%s %.2f%% on %s", s.Base, s.Quote, s.TopSpread, s.Exchange)
	if evt.Type == domain.SpreadUpdated {
		title = "Updated: " + title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "network: %s\n", s.Network)
	fmt.Fprintf(&b, "liquidity: %.0f\n", s.Liquidity)
	if s.FDV != nil {
		fmt.Fprintf(&b, "fdv: %.0f\n", *s.FDV)
	}
	if s.Direction.From != nil && s.Direction.To != nil {
		fmt.Fprintf(&b, "direction: %s -> %s\n", *s.Direction.From, *s.Direction.To)
	}
	fmt.Fprintf(&b, "id: %s", s.ID)
	return title, b.String()
}

// Compile-time interface check.
var _ domain.SpreadObserver = (*SpreadAlerter)(nil)
