package domain

import (
	"math"
	"time"

	"github.com/just-nilux/trade-engine/pkg/quant"
)

// Position is the accounting state of one position ledger: a signed
// quantity, the weighted-average cost basis of its open portion, and the
// cumulative realized P&L locked in by closing fills. Positions are only
// ever changed through Add.
//
// A position reduced to exactly zero keeps its last cost basis; it is
// never reset to an undefined value.
type Position struct {
	ID          string  `json:"id"`
	Asset       Asset   `json:"asset"`
	Quantity    float64 `json:"quantity"`
	CostBasis   float64 `json:"cost_basis"`
	RealizedPnl float64 `json:"realized_pnl"`
}

// NewPosition opens a position ledger with an initial fill.
func NewPosition(id string, asset Asset, quantity, price float64) Position {
	return Position{ID: id, Asset: asset, Quantity: quantity, CostBasis: price}
}

// Add applies a signed fill of quantity at price and returns the next
// position state. The arithmetic distinguishes three cases:
//
//   - opening or same-direction: the cost basis becomes the
//     quantity-weighted average of the old basis and the fill price;
//     nothing is realized.
//   - reducing without a sign flip: the closed portion realizes
//     closed * (price - costBasis) * sign(oldQuantity); the basis is
//     unchanged (and retained if the position goes flat).
//   - flip: the whole old quantity is closed and realized at the old
//     basis, and the surplus opens a fresh position with the fill price
//     as its basis.
func (p Position) Add(quantity, price float64) Position {
	if quantity == 0 {
		return p
	}

	if !quant.Opposing(p.Quantity, quantity) {
		total := p.Quantity + quantity
		p.CostBasis = (p.Quantity*p.CostBasis + quantity*price) / total
		p.Quantity = total
		return p
	}

	if math.Abs(quantity) <= math.Abs(p.Quantity) {
		closed := math.Abs(quantity)
		p.RealizedPnl += closed * (price - p.CostBasis) * quant.Sign(p.Quantity)
		p.Quantity += quantity
		return p
	}

	// Flip: close everything at the old basis, reopen the rest at price.
	closed := math.Abs(p.Quantity)
	p.RealizedPnl += closed * (price - p.CostBasis) * quant.Sign(p.Quantity)
	p.Quantity += quantity
	p.CostBasis = price
	return p
}

// Pnl returns the cumulative realized P&L. Unrealized gains are computed
// separately via Valuation.
func (p Position) Pnl() float64 {
	return p.RealizedPnl
}

// Valuation is a point-in-time record of a position's worth, as written
// into the portfolio time series.
type Valuation struct {
	Time        time.Time `json:"time"`
	Quantity    float64   `json:"quantity"`
	CostBasis   float64   `json:"cost_basis"`
	Price       float64   `json:"price"`
	Value       float64   `json:"value"`
	RealizedPnl float64   `json:"realized_pnl"`

	// FromTrade marks a valuation produced directly by a fill, whose
	// price then stands in for the asset's latest observation until the
	// next independent quote arrives.
	FromTrade bool `json:"from_trade,omitempty"`
}

// Valuation computes the position's worth at price. fromTrade is set only
// immediately after the fill that produced this state, before any
// subsequent price update.
func (p Position) Valuation(at time.Time, price float64, fromTrade bool) Valuation {
	return Valuation{
		Time:        at,
		Quantity:    p.Quantity,
		CostBasis:   p.CostBasis,
		Price:       price,
		Value:       p.Quantity * price,
		RealizedPnl: p.RealizedPnl,
		FromTrade:   fromTrade,
	}
}
