// Package book implements the order book: it owns pending orders per
// asset, matches them against incoming quotes and publishes the resulting
// trade executions.
package book

import (
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/just-nilux/trade-engine/internal/domain"
	"github.com/just-nilux/trade-engine/internal/event"
)

// OrderBook holds pending orders until they match a quote, expire or are
// cancelled. All state is guarded by a single mutex; trade executions are
// published outside the critical section so that handlers may re-enter
// the book (e.g. place a follow-up order) without deadlocking.
type OrderBook struct {
	bus         *event.Dispatcher
	minQuantity float64
	slippage    float64

	mu      sync.Mutex
	pending map[domain.Asset][]*domain.Order
}

// New creates an order book publishing on bus. Orders smaller than
// minQuantity (absolute) are rejected; slippage is applied to every
// execution-price resolution.
func New(bus *event.Dispatcher, minQuantity, slippage float64) *OrderBook {
	return &OrderBook{
		bus:         bus,
		minQuantity: minQuantity,
		slippage:    slippage,
		pending:     make(map[domain.Asset][]*domain.Order),
	}
}

// Attach registers the book's event handlers on the dispatcher.
func (b *OrderBook) Attach() event.Subscription {
	return b.bus.Register(b.handle,
		event.KindQuote, event.KindOrder, event.KindBasketOrder, event.KindCancelOrder)
}

func (b *OrderBook) handle(ev event.Event) {
	switch e := ev.(type) {
	case *domain.Quote:
		b.OnQuote(e)
	case *domain.Order:
		b.Place(e)
	case *domain.BasketOrder:
		for _, o := range e.Orders {
			b.Place(o)
		}
	case *domain.CancelOrder:
		b.Cancel(e.Order)
	}
}

// Place appends an order to its asset's pending list and requests market
// data for the asset. Orders below the minimum quantity are logged and
// dropped without any failure signal.
func (b *OrderBook) Place(o *domain.Order) {
	if math.Abs(o.Quantity) < b.minQuantity {
		slog.Warn("order below minimum quantity, not placed",
			"order", o.String(), "quantity", o.Quantity, "min", b.minQuantity)
		return
	}

	b.bus.Publish(&domain.SubscribeMarketData{Asset: o.Asset, Since: o.ValidFrom})

	b.mu.Lock()
	b.pending[o.Asset] = append(b.pending[o.Asset], o)
	b.mu.Unlock()
}

// Cancel removes an order by identity. Cancelling an order that is no
// longer pending is a no-op.
func (b *OrderBook) Cancel(o *domain.Order) {
	if o == nil {
		return
	}
	b.mu.Lock()
	b.remove(o)
	b.mu.Unlock()
}

// remove deletes o from its asset's pending list. Caller holds b.mu.
func (b *OrderBook) remove(o *domain.Order) {
	orders := b.pending[o.Asset]
	for i, po := range orders {
		if po == o {
			b.pending[o.Asset] = append(orders[:i:i], orders[i+1:]...)
			return
		}
	}
}

// OnQuote matches the asset's pending orders against a new price update.
// The trade executions are published only after the book's lock is
// released, so trade handlers may re-enter the book.
func (b *OrderBook) OnQuote(q *domain.Quote) {
	for _, t := range b.match(q) {
		b.bus.Publish(t)
	}
}

// match visits the asset's pending orders in placement order over a
// snapshot of the list, removing matched and expired orders, and returns
// the resulting trade executions.
func (b *OrderBook) match(q *domain.Quote) []*domain.TradeExecution {
	b.mu.Lock()
	defer b.mu.Unlock()

	var trades []*domain.TradeExecution
	snapshot := make([]*domain.Order, len(b.pending[q.Asset]))
	copy(snapshot, b.pending[q.Asset])

	for _, o := range snapshot {
		if q.Time.Before(o.ValidFrom) {
			continue
		}

		if px, ok := q.ExecutionPrice(o.Quantity, o.Limit, o.Stop, b.slippage); ok {
			trades = append(trades, &domain.TradeExecution{
				ID:         uuid.NewString(),
				OrderID:    o.ID,
				Asset:      o.Asset,
				Quantity:   o.Quantity,
				Price:      px,
				Time:       q.Time,
				Quote:      q,
				PositionID: o.PositionID,
			})
			b.remove(o)
			continue
		}

		// No fill: lazy expiry check, driven by quote arrival only.
		if o.ValidUntil != nil && !q.Time.Before(*o.ValidUntil) {
			slog.Debug("order expired", "order", o.String(), "valid_until", *o.ValidUntil)
			b.remove(o)
			continue
		}
		if o.ValidTicks > 0 {
			o.ValidTicks--
			if o.ValidTicks == 0 {
				slog.Debug("order expired after tick countdown", "order", o.String())
				b.remove(o)
			}
		}
	}
	return trades
}

// PendingCount returns the number of pending orders for an asset.
func (b *OrderBook) PendingCount(asset domain.Asset) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[asset])
}

// Assets returns the assets that currently have pending orders.
func (b *OrderBook) Assets() []domain.Asset {
	b.mu.Lock()
	defer b.mu.Unlock()

	assets := make([]domain.Asset, 0, len(b.pending))
	for a, orders := range b.pending {
		if len(orders) > 0 {
			assets = append(assets, a)
		}
	}
	return assets
}
