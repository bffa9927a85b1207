package domain

import (
	"testing"
	"time"
)

func ts(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func TestQuote_Price(t *testing.T) {
	tests := []struct {
		name  string
		quote Quote
		want  float64
	}{
		{"LastWins", Quote{Bid: 99, Ask: 101, Last: 100.5}, 100.5},
		{"MidWithoutLast", Quote{Bid: 99, Ask: 101}, 100},
		{"AskOnly", Quote{Ask: 101}, 101},
		{"BidOnly", Quote{Bid: 99}, 99},
		{"Empty", Quote{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.quote.Price(); got != tt.want {
				t.Errorf("Price() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuote_ExecutionPrice(t *testing.T) {
	q := &Quote{Asset: aapl, Time: ts(1), Bid: 99, Ask: 101, Last: 100}

	tests := []struct {
		name       string
		qty        float64
		limit      float64
		stop       float64
		slippage   float64
		wantPrice  float64
		wantFilled bool
	}{
		{"MarketBuyAtAsk", 10, 0, 0, 0, 101, true},
		{"MarketSellAtBid", -10, 0, 0, 0, 99, true},
		{"BuyLimitCrossed", 10, 102, 0, 0, 101, true},
		{"BuyLimitNotCrossed", 10, 100, 0, 0, 0, false},
		{"SellLimitCrossed", -10, 98, 0, 0, 99, true},
		{"SellLimitNotCrossed", -10, 100, 0, 0, 0, false},
		{"BuySlippage", 10, 0, 0, 0.01, 101 * 1.01, true},
		{"SellSlippage", -10, 0, 0, 0.01, 99 * 0.99, true},
		{"SlippagePushesOverLimit", 10, 101.5, 0, 0.01, 0, false},
		{"BuyStopNotTriggered", 10, 0, 105, 0, 0, false},
		{"BuyStopTriggered", 10, 0, 100, 0, 101, true},
		{"SellStopNotTriggered", -10, 0, 95, 0, 0, false},
		{"SellStopTriggered", -10, 0, 100, 0, 99, true},
		{"ZeroQuantity", 0, 0, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := q.ExecutionPrice(tt.qty, tt.limit, tt.stop, tt.slippage)
			if ok != tt.wantFilled {
				t.Fatalf("filled = %v, want %v", ok, tt.wantFilled)
			}
			if ok && !almostEqual(got, tt.wantPrice) {
				t.Errorf("price = %v, want %v", got, tt.wantPrice)
			}
		})
	}
}

func TestQuote_ExecutionPriceFallsBackToLast(t *testing.T) {
	q := &Quote{Asset: aapl, Time: ts(1), Last: 100}

	px, ok := q.ExecutionPrice(5, 0, 0, 0)
	if !ok || !almostEqual(px, 100) {
		t.Errorf("buy against last-only quote = (%v, %v), want (100, true)", px, ok)
	}
	px, ok = q.ExecutionPrice(-5, 0, 0, 0)
	if !ok || !almostEqual(px, 100) {
		t.Errorf("sell against last-only quote = (%v, %v), want (100, true)", px, ok)
	}

	empty := &Quote{Asset: aapl, Time: ts(1)}
	if _, ok := empty.ExecutionPrice(5, 0, 0, 0); ok {
		t.Error("empty quote produced an execution price")
	}
}

func TestNewOrder_Defaults(t *testing.T) {
	o := NewOrder(aapl, 5, "")
	if o.ID == "" {
		t.Error("order has no ID")
	}
	if o.PositionID != aapl.String() {
		t.Errorf("default position id = %q, want %q", o.PositionID, aapl.String())
	}

	o2 := NewOrder(aapl, 5, "strat-1")
	if o2.PositionID != "strat-1" {
		t.Errorf("position id = %q, want strat-1", o2.PositionID)
	}
	if o2.ID == o.ID {
		t.Error("order IDs collide")
	}
}
