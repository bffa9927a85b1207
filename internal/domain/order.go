package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/just-nilux/trade-engine/internal/event"
)

// Order is an instruction to trade a signed quantity of an asset (positive
// buys, negative sells). Orders are published as pointers; the order book
// keys cancellation on pointer identity and is the only writer of
// ValidTicks once an order is placed.
//
// Zero Limit and Stop mean unconditional (market) execution. ValidUntil
// and ValidTicks bound the order's lifetime: a nil ValidUntil and zero
// ValidTicks keep it pending until matched or cancelled.
type Order struct {
	ID         string
	PositionID string
	Asset      Asset
	Quantity   float64
	Limit      float64
	Stop       float64
	ValidFrom  time.Time

	// ValidUntil expires the order on the first quote at or after it.
	ValidUntil *time.Time

	// ValidTicks expires the order after that many non-matching quotes.
	ValidTicks int
}

// NewOrder creates an order with a generated ID. An empty positionID
// assigns the order to the asset's default position ledger.
func NewOrder(asset Asset, quantity float64, positionID string) *Order {
	if positionID == "" {
		positionID = asset.String()
	}
	return &Order{
		ID:         uuid.NewString(),
		PositionID: positionID,
		Asset:      asset,
		Quantity:   quantity,
	}
}

func (o *Order) EventKind() event.Kind { return event.KindOrder }

func (o *Order) String() string {
	return fmt.Sprintf("Order(%s %s qty=%v limit=%v stop=%v pos=%s)",
		o.ID, o.Asset, o.Quantity, o.Limit, o.Stop, o.PositionID)
}

// BasketOrder is an ordered batch of orders submitted as one logical unit.
// It carries no state of its own; the order book expands it into
// individual placements in sequence order.
type BasketOrder struct {
	Orders []*Order
}

func (b *BasketOrder) EventKind() event.Kind { return event.KindBasketOrder }

// CancelOrder requests removal of a previously placed order, identified by
// pointer identity.
type CancelOrder struct {
	Order *Order
}

func (c *CancelOrder) EventKind() event.Kind { return event.KindCancelOrder }

// SubscribeMarketData asks the market-data collaborator to deliver quotes
// for an asset from the given time on. It is a hint: duplicate requests
// are expected and must be harmless.
type SubscribeMarketData struct {
	Asset Asset
	Since time.Time
}

func (s *SubscribeMarketData) EventKind() event.Kind { return event.KindSubscribeMarketData }
