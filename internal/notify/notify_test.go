package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captured struct {
	path string
	body map[string]string
}

func captureServer(t *testing.T, status int) (*httptest.Server, <-chan captured) {
	t.Helper()
	ch := make(chan captured, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		ch <- captured{path: r.URL.Path, body: body}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestTelegramSender_Send(t *testing.T) {
	srv, ch := captureServer(t, http.StatusOK)
	s := NewTelegramSender("tok", "42")
	s.apiBase = srv.URL

	if err := s.Send(context.Background(), "Title", "body"); err != nil {
		t.Fatal(err)
	}
	got := <-ch
	if got.path != "/bottok/sendMessage" {
		t.Fatalf("path=%q", got.path)
	}
	if got.body["chat_id"] != "42" || got.body["text"] != "*Title*\nbody" {
		t.Fatalf("body=%v", got.body)
	}
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest)
	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "discord: unexpected status 400") {
		t.Fatalf("err=%v", err)
	}
}

type fakeSender struct {
	name string
	err  error

	mu     sync.Mutex
	titles []string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.mu.Lock()
	f.titles = append(f.titles, title)
	f.mu.Unlock()
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.titles...)
}

func TestNotifier_DispatchContinuesPastFailures(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, discardLogger())

	err := n.Dispatch(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Fatalf("err=%v", err)
	}
	if len(good.sent()) != 1 {
		t.Fatal("good sender skipped")
	}
}

func TestNotifier_Enabled(t *testing.T) {
	if NewNotifier(nil, discardLogger()).Enabled() {
		t.Fatal("notifier without senders reports enabled")
	}
	if !NewNotifier([]Sender{&fakeSender{name: "x"}}, discardLogger()).Enabled() {
		t.Fatal("notifier with a sender reports disabled")
	}
}

func spreadEvent(typ domain.SpreadEventType, top float64) domain.SpreadEvent {
	return domain.SpreadEvent{
		Type: typ,
		ID:   "sp-1",
		Spread: &domain.Spread{
			ID: "sp-1", Base: "ETH", Quote: "USDT", Network: "ARBITRUM",
			TopSpread: top, Liquidity: 1000, Exchange: "okx",
		},
	}
}

func TestSpreadAlerter_Matches(t *testing.T) {
	a := NewSpreadAlerter(NewNotifier(nil, discardLogger()), AlertRule{MinTopSpread: 2}, discardLogger())

	cases := []struct {
		name string
		evt  domain.SpreadEvent
		want bool
	}{
		{"created above threshold", spreadEvent(domain.SpreadCreated, 2.5), true},
		{"updated at threshold", spreadEvent(domain.SpreadUpdated, 2), true},
		{"below threshold", spreadEvent(domain.SpreadCreated, 1.9), false},
		{"deletes off by default", domain.SpreadEvent{Type: domain.SpreadDeleted, ID: "x"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.Matches(tc.evt); got != tc.want {
				t.Fatalf("Matches=%v want %v", got, tc.want)
			}
		})
	}

	withDeletes := NewSpreadAlerter(NewNotifier(nil, discardLogger()),
		AlertRule{Events: []domain.SpreadEventType{domain.SpreadDeleted}}, discardLogger())
	if !withDeletes.Matches(domain.SpreadEvent{Type: domain.SpreadDeleted, ID: "x"}) {
		t.Fatal("delete should match when listed")
	}
}

func TestSpreadAlerter_RunDelivers(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	a := NewSpreadAlerter(NewNotifier([]Sender{sender}, discardLogger()), AlertRule{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	a.Observe(ctx, spreadEvent(domain.SpreadCreated, 3.25))

	deadline := time.After(2 * time.Second)
	for len(sender.sent()) == 0 {
		select {
		case <-deadline:
			t.Fatal("alert not delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := sender.sent()[0]; got != "ETH/USDT 3.25% on okx" {
		t.Fatalf("title=%q", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestSpreadAlerter_ObserveDoesNotBlock(t *testing.T) {
	a := NewSpreadAlerter(NewNotifier(nil, discardLogger()), AlertRule{}, discardLogger())
	for i := 0; i < alertQueueSize*2; i++ {
		a.Observe(context.Background(), spreadEvent(domain.SpreadCreated, 1))
	}
	if len(a.queue) != alertQueueSize {
		t.Fatalf("queue len=%d", len(a.queue))
	}
}
