package domain

import (
	"time"

	"github.com/just-nilux/trade-engine/internal/event"
)

// TradeExecution is the immutable record of a fill, published exactly once
// by the order book when a pending order matches a quote.
type TradeExecution struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id,omitempty"`
	Asset      Asset     `json:"asset"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Time       time.Time `json:"time"`
	Quote      *Quote    `json:"-"` // originating price update
	PositionID string    `json:"position_id"`
}

func (t *TradeExecution) EventKind() event.Kind { return event.KindTradeExecution }
