package feed

import (
	"math"
	"testing"
	"time"

	"github.com/just-nilux/trade-engine/internal/domain"
	"github.com/just-nilux/trade-engine/internal/event"
)

var btc = domain.Asset{Symbol: "BTCUSDT", Exchange: "TEST"}

func collectQuotes(bus *event.Dispatcher) *[]*domain.Quote {
	quotes := &[]*domain.Quote{}
	bus.Register(func(ev event.Event) {
		if q, ok := ev.(*domain.Quote); ok {
			*quotes = append(*quotes, q)
		}
	}, event.KindQuote)
	return quotes
}

func TestQuoteFeed_HandleMessage(t *testing.T) {
	bus := event.NewDispatcher()
	f := New(bus, "ws://example.invalid/stream", time.Minute, 0)
	quotes := collectQuotes(bus)

	f.handleMessage([]byte(`{"symbol":"BTCUSDT","exchange":"TEST","bid":"99.5","ask":"100.5","last":"100.1","ts":1700000000000}`))

	if len(*quotes) != 1 {
		t.Fatalf("published %d quotes, want 1", len(*quotes))
	}
	q := (*quotes)[0]
	if q.Asset != btc {
		t.Errorf("asset = %v, want %v", q.Asset, btc)
	}
	if math.Abs(q.Bid-99.5) > 1e-9 || math.Abs(q.Ask-100.5) > 1e-9 || math.Abs(q.Last-100.1) > 1e-9 {
		t.Errorf("prices = %v/%v/%v, want 99.5/100.5/100.1", q.Bid, q.Ask, q.Last)
	}
	if !q.Time.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Errorf("time = %v, want 2023-11-14T22:13:20Z", q.Time)
	}
}

func TestQuoteFeed_HandleMessageMalformed(t *testing.T) {
	bus := event.NewDispatcher()
	f := New(bus, "ws://example.invalid/stream", time.Minute, 0)
	quotes := collectQuotes(bus)

	f.handleMessage([]byte(`not json`))
	f.handleMessage([]byte(`{"bid":"99.5"}`)) // no symbol

	if len(*quotes) != 0 {
		t.Errorf("published %d quotes from malformed input, want 0", len(*quotes))
	}
}

func TestQuoteFeed_HandleMessageBadPrice(t *testing.T) {
	bus := event.NewDispatcher()
	f := New(bus, "ws://example.invalid/stream", time.Minute, 0)
	quotes := collectQuotes(bus)

	// An unparseable field degrades to absent, the tick still flows.
	f.handleMessage([]byte(`{"symbol":"BTCUSDT","exchange":"TEST","bid":"oops","last":"100","ts":1}`))

	if len(*quotes) != 1 {
		t.Fatalf("published %d quotes, want 1", len(*quotes))
	}
	q := (*quotes)[0]
	if q.Bid != 0 {
		t.Errorf("bad bid = %v, want 0", q.Bid)
	}
	if q.Last != 100 {
		t.Errorf("last = %v, want 100", q.Last)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"Plain", "100.25", 100.25},
		{"Empty", "", 0},
		{"Garbage", "n/a", 0},
		{"Negative", "-1.5", -1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsePrice(tt.in); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("parsePrice(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuoteFeed_SubscribeIdempotent(t *testing.T) {
	bus := event.NewDispatcher()
	f := New(bus, "ws://example.invalid/stream", time.Minute, 0)

	f.Subscribe(btc)
	f.Subscribe(btc)
	f.Subscribe(domain.Asset{Symbol: "ETHUSDT", Exchange: "TEST"})

	if got := len(f.Subscribed()); got != 2 {
		t.Errorf("subscription set = %d assets, want 2", got)
	}
}

func TestQuoteFeed_AttachSubscribesOnRequest(t *testing.T) {
	bus := event.NewDispatcher()
	f := New(bus, "ws://example.invalid/stream", time.Minute, 0)
	f.Attach()

	bus.Publish(&domain.SubscribeMarketData{Asset: btc})
	bus.Publish(&domain.SubscribeMarketData{Asset: btc})

	if got := len(f.Subscribed()); got != 1 {
		t.Errorf("subscription set = %d assets, want 1", got)
	}
}
