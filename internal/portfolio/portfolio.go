// Package portfolio maintains the per-position ledgers: quantities, cost
// basis, realized P&L, cached valuations and the time-indexed valuation
// history.
package portfolio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/just-nilux/trade-engine/internal/domain"
	"github.com/just-nilux/trade-engine/internal/event"
)

type latestQuote struct {
	at    time.Time
	price float64
}

// Portfolio consumes quotes and trade executions and exposes aggregate
// valuation, weight and quantity queries. A single mutex guards all
// internal maps; accessors return copies, never live references.
type Portfolio struct {
	mu         sync.Mutex
	positions  map[domain.Asset]map[string]*domain.Position
	timeseries map[string]map[int64]domain.Valuation
	latest     map[domain.Asset]latestQuote
	values     map[string]float64 // cached current value per position id
}

// New creates an empty portfolio.
func New() *Portfolio {
	return &Portfolio{
		positions:  make(map[domain.Asset]map[string]*domain.Position),
		timeseries: make(map[string]map[int64]domain.Valuation),
		latest:     make(map[domain.Asset]latestQuote),
		values:     make(map[string]float64),
	}
}

// Attach registers the portfolio's event handlers on the dispatcher.
func (p *Portfolio) Attach(bus *event.Dispatcher) event.Subscription {
	return bus.Register(p.handle, event.KindQuote, event.KindTradeExecution)
}

func (p *Portfolio) handle(ev event.Event) {
	switch e := ev.(type) {
	case *domain.Quote:
		p.OnQuote(e)
	case *domain.TradeExecution:
		p.OnTrade(e)
	}
}

// OnQuote revalues the asset's open positions at the new price. Quotes for
// assets without positions are ignored; quotes older than the last one
// seen for the asset are logged and dropped without mutating anything. A
// time-series entry is only written if the timestamp is not yet present
// for the position (first write wins).
func (p *Portfolio) OnQuote(q *domain.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()

	book, ok := p.positions[q.Asset]
	if !ok {
		return
	}

	price := q.Price()
	if last, seen := p.latest[q.Asset]; seen && q.Time.Before(last.at) {
		slog.Warn("obsolete quote dropped",
			"asset", q.Asset.String(), "quote_time", q.Time, "last_seen", last.at)
		return
	}
	p.latest[q.Asset] = latestQuote{at: q.Time, price: price}

	key := q.Time.UnixNano()
	for pid, pos := range book {
		v := pos.Valuation(q.Time, price, false)
		p.values[pid] = v.Value
		series := p.series(pid)
		if _, exists := series[key]; !exists {
			series[key] = v
		}
	}
}

// OnTrade folds a fill into its position ledger (creating the ledger on
// first contact), refreshes the latest-price cache with the fill price and
// writes the valuation into the time series. A trade entry overwrites a
// same-timestamp quote entry: within one instant the fill happens second.
func (p *Portfolio) OnTrade(t *domain.TradeExecution) {
	slog.Debug("trade execution", "asset", t.Asset.String(), "quantity", t.Quantity,
		"price", t.Price, "position_id", t.PositionID)

	p.mu.Lock()
	defer p.mu.Unlock()

	book, ok := p.positions[t.Asset]
	if !ok {
		book = make(map[string]*domain.Position)
		p.positions[t.Asset] = book
	}

	pos, ok := book[t.PositionID]
	if !ok {
		created := domain.NewPosition(t.PositionID, t.Asset, t.Quantity, t.Price)
		book[t.PositionID] = &created
	} else {
		*pos = pos.Add(t.Quantity, t.Price)
	}

	v := book[t.PositionID].Valuation(t.Time, t.Price, true)
	p.latest[t.Asset] = latestQuote{at: t.Time, price: t.Price}
	p.values[t.PositionID] = v.Value
	p.series(t.PositionID)[t.Time.UnixNano()] = v
}

// series returns the position's time series, creating it if needed.
// Caller holds p.mu.
func (p *Portfolio) series(pid string) map[int64]domain.Valuation {
	s, ok := p.timeseries[pid]
	if !ok {
		s = make(map[int64]domain.Valuation)
		p.timeseries[pid] = s
	}
	return s
}

// Weights returns, per asset with open positions, the fraction of the
// balance (total position value + cash) held in that asset at the latest
// observed price. Quantities are summed across position ids. The caller
// must ensure the balance is nonzero.
func (p *Portfolio) Weights(cash float64) map[domain.Asset]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	balance := p.totalValue() + cash
	weights := make(map[domain.Asset]float64, len(p.positions))
	for asset, book := range p.positions {
		var qty float64
		for _, pos := range book {
			qty += pos.Quantity
		}
		weights[asset] = qty * p.latest[asset].price / balance
	}
	return weights
}

// Quantity returns the signed quantity held for an asset. With a
// position id it returns that ledger's quantity; with an empty id it sums
// across all ledgers for the asset. Unknown assets and ids yield 0.
func (p *Portfolio) Quantity(asset domain.Asset, positionID string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	book, ok := p.positions[asset]
	if !ok {
		return 0
	}
	if positionID == "" {
		var qty float64
		for _, pos := range book {
			qty += pos.Quantity
		}
		return qty
	}
	pos, ok := book[positionID]
	if !ok {
		return 0
	}
	return pos.Quantity
}

// TotalValue returns the sum of the cached per-position values.
func (p *Portfolio) TotalValue() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalValue()
}

// totalValue sums the value cache. Caller holds p.mu.
func (p *Portfolio) totalValue() float64 {
	var total float64
	for _, v := range p.values {
		total += v
	}
	return total
}

// Assets returns the assets with at least one position ledger.
func (p *Portfolio) Assets() []domain.Asset {
	p.mu.Lock()
	defer p.mu.Unlock()

	assets := make([]domain.Asset, 0, len(p.positions))
	for a := range p.positions {
		assets = append(assets, a)
	}
	return assets
}

// Snapshot returns a deep copy of all position ledgers, keyed by asset and
// position id. Mutating the result does not affect the portfolio.
func (p *Portfolio) Snapshot() map[domain.Asset]map[string]domain.Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[domain.Asset]map[string]domain.Position, len(p.positions))
	for asset, book := range p.positions {
		cp := make(map[string]domain.Position, len(book))
		for pid, pos := range book {
			cp[pid] = *pos
		}
		out[asset] = cp
	}
	return out
}

// TimeSeries merges the per-position valuation histories into a single
// time-indexed table covering the union of all observed timestamps.
func (p *Portfolio) TimeSeries() TimeSeries {
	p.mu.Lock()
	defer p.mu.Unlock()

	return newTimeSeries(p.timeseries)
}
