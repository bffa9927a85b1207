// Package feed connects the engine to a market-data stream: it maintains
// a WebSocket session, manages the symbol subscription set requested via
// SubscribeMarketData events, and publishes incoming ticks as quotes.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/just-nilux/trade-engine/internal/domain"
	"github.com/just-nilux/trade-engine/internal/event"
	"github.com/just-nilux/trade-engine/internal/infra"
)

// tick is the wire format of one price update. Prices arrive as strings
// and are parsed decimally so the boundary does not accumulate float
// parsing drift.
type tick struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Bid      string `json:"bid"`
	Ask      string `json:"ask"`
	Last     string `json:"last"`
	TsMillis int64  `json:"ts"`
}

type subscribeFrame struct {
	Op       string `json:"op"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange,omitempty"`
}

// QuoteFeed owns a single reconnecting WebSocket session. Subscription
// requests are idempotent; the full set is replayed after every
// reconnect.
type QuoteFeed struct {
	bus          *event.Dispatcher
	url          string
	readTimeout  time.Duration
	pingInterval time.Duration

	mu      sync.RWMutex
	conn    *websocket.Conn
	subs    map[domain.Asset]struct{}
	writeMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a quote feed for the given stream URL.
func New(bus *event.Dispatcher, url string, readTimeout, pingInterval time.Duration) *QuoteFeed {
	return &QuoteFeed{
		bus:          bus,
		url:          url,
		readTimeout:  readTimeout,
		pingInterval: pingInterval,
		subs:         make(map[domain.Asset]struct{}),
	}
}

// Attach registers the feed's handler for market-data subscription
// requests.
func (f *QuoteFeed) Attach() event.Subscription {
	return f.bus.Register(func(ev event.Event) {
		if req, ok := ev.(*domain.SubscribeMarketData); ok {
			f.Subscribe(req.Asset)
		}
	}, event.KindSubscribeMarketData)
}

// Subscribe adds an asset to the subscription set. Already-subscribed
// assets are a no-op; if a session is live the subscribe frame is sent
// immediately, otherwise it goes out on the next (re)connect.
func (f *QuoteFeed) Subscribe(asset domain.Asset) {
	f.mu.Lock()
	if _, ok := f.subs[asset]; ok {
		f.mu.Unlock()
		return
	}
	f.subs[asset] = struct{}{}
	conn := f.conn
	f.mu.Unlock()

	if conn != nil {
		if err := f.sendSubscribe(asset); err != nil {
			slog.Warn("subscribe frame failed, will retry on reconnect",
				"asset", asset.String(), "err", err)
		}
	}
}

// Subscribed returns the current subscription set.
func (f *QuoteFeed) Subscribed() []domain.Asset {
	f.mu.RLock()
	defer f.mu.RUnlock()

	assets := make([]domain.Asset, 0, len(f.subs))
	for a := range f.subs {
		assets = append(assets, a)
	}
	return assets
}

// Start launches the connect/read loop.
func (f *QuoteFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(1)
	go f.runLoop(ctx)
}

// Stop terminates the session and waits for the loop to exit.
func (f *QuoteFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.close()
	f.wg.Wait()
}

func (f *QuoteFeed) runLoop(ctx context.Context) {
	defer f.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := f.connect(ctx); err != nil {
			slog.Warn("feed connection failed", "url", f.url, "err", err, "retry", retry)
			delay := infra.Backoff(retry)
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		f.readLoop(ctx)
	}
}

func (f *QuoteFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	for _, asset := range f.Subscribed() {
		if err := f.sendSubscribe(asset); err != nil {
			f.close()
			return fmt.Errorf("resubscribe %s: %w", asset, err)
		}
	}

	if f.pingInterval > 0 {
		go f.pingLoop(ctx)
	}

	slog.Info("feed connected", "url", f.url, "subscriptions", len(f.Subscribed()))
	return nil
}

func (f *QuoteFeed) readLoop(ctx context.Context) {
	for {
		f.mu.RLock()
		c := f.conn
		f.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(f.readTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			slog.Warn("feed read error", "err", err)
			f.close()
			return
		}

		f.handleMessage(msg)
	}
}

// handleMessage parses one tick and publishes it as a quote. Malformed
// messages are logged and skipped.
func (f *QuoteFeed) handleMessage(msg []byte) {
	var t tick
	if err := json.Unmarshal(msg, &t); err != nil {
		slog.Warn("feed message not a tick", "err", err)
		return
	}
	if t.Symbol == "" {
		slog.Warn("feed tick without symbol dropped")
		return
	}

	q := &domain.Quote{
		Asset: domain.Asset{Symbol: t.Symbol, Exchange: t.Exchange},
		Time:  time.UnixMilli(t.TsMillis).UTC(),
		Bid:   parsePrice(t.Bid),
		Ask:   parsePrice(t.Ask),
		Last:  parsePrice(t.Last),
	}
	f.bus.Publish(q)
}

// parsePrice converts a wire price string to a float via decimal.
// Empty and malformed values become 0 (absent).
func parsePrice(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		slog.Warn("unparseable price dropped", "value", s)
		return 0
	}
	px, _ := d.Float64()
	return px
}

func (f *QuoteFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.RLock()
			c := f.conn
			f.mu.RUnlock()
			if c == nil {
				return
			}

			f.writeMu.Lock()
			err := c.WriteMessage(websocket.PingMessage, nil)
			f.writeMu.Unlock()
			if err != nil {
				slog.Warn("feed ping failed", "err", err)
				f.close()
				return
			}
		}
	}
}

func (f *QuoteFeed) sendSubscribe(asset domain.Asset) error {
	frame, err := json.Marshal(subscribeFrame{
		Op:       "subscribe",
		Symbol:   asset.Symbol,
		Exchange: asset.Exchange,
	})
	if err != nil {
		return err
	}

	f.mu.RLock()
	c := f.conn
	f.mu.RUnlock()
	if c == nil {
		return fmt.Errorf("not connected")
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return c.WriteMessage(websocket.TextMessage, frame)
}

func (f *QuoteFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}
