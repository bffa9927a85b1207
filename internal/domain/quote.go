package domain

import (
	"time"

	"github.com/just-nilux/trade-engine/internal/event"
)

// Quote is a price update for a single asset. Quotes are produced by the
// market-data feed, published on the dispatcher and never mutated.
// Bid/Ask may be zero when the feed only carries last-trade prices.
type Quote struct {
	Asset Asset     `json:"asset"`
	Time  time.Time `json:"time"`
	Bid   float64   `json:"bid,omitempty"`
	Ask   float64   `json:"ask,omitempty"`
	Last  float64   `json:"last"`
}

func (q *Quote) EventKind() event.Kind { return event.KindQuote }

// Price returns the quote's valuation price: the last trade if present,
// otherwise the bid/ask midpoint.
func (q *Quote) Price() float64 {
	if q.Last != 0 {
		return q.Last
	}
	if q.Bid != 0 && q.Ask != 0 {
		return (q.Bid + q.Ask) / 2
	}
	if q.Ask != 0 {
		return q.Ask
	}
	return q.Bid
}

// ExecutionPrice resolves the price at which an order with the given
// signed quantity, limit and stop would execute against this quote, or
// ok=false if the order's trigger condition is not satisfied.
//
// Resolution rules (zero limit/stop mean "none"):
//
//  1. The reference price is Ask for buys and Bid for sells, falling back
//     to the valuation price when the side price is absent.
//  2. A stop gates the order: a buy stop triggers once the reference is at
//     or above the stop, a sell stop once it is at or below.
//  3. Slippage moves the reference against the taker: buys pay
//     reference*(1+slippage), sells receive reference*(1-slippage).
//  4. A limit rejects fills worse than the limit: buys fill only at or
//     below it, sells only at or above it.
//
// The returned price is the slippage-adjusted reference, which by rule 4
// is always at-or-better than the order's limit.
func (q *Quote) ExecutionPrice(quantity, limit, stop, slippage float64) (float64, bool) {
	if quantity == 0 {
		return 0, false
	}
	buying := quantity > 0

	ref := q.Bid
	if buying {
		ref = q.Ask
	}
	if ref == 0 {
		ref = q.Price()
	}
	if ref == 0 {
		return 0, false
	}

	if stop != 0 {
		if buying && ref < stop {
			return 0, false
		}
		if !buying && ref > stop {
			return 0, false
		}
	}

	px := ref
	if buying {
		px *= 1 + slippage
	} else {
		px *= 1 - slippage
	}

	if limit != 0 {
		if buying && px > limit {
			return 0, false
		}
		if !buying && px < limit {
			return 0, false
		}
	}

	return px, true
}
