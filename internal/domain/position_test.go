package domain

import (
	"math"
	"testing"
)

var aapl = NewAsset("AAPL")

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPosition_LongFills(t *testing.T) {
	base := NewPosition("p", aapl, 10, 100)

	if got := base.Add(-10, 110).Pnl(); !almostEqual(got, 100) {
		t.Errorf("full close pnl = %v, want 100", got)
	}
	if got := base.Add(-4, 110).Pnl(); !almostEqual(got, 40) {
		t.Errorf("partial close pnl = %v, want 40", got)
	}
	if got := base.Add(-4, 110).Add(-6, 120).Pnl(); !almostEqual(got, 160) {
		t.Errorf("chained close pnl = %v, want 160", got)
	}

	// Same-direction fills realize nothing and average the basis.
	p := base.Add(4, 110)
	if got := p.Pnl(); got != 0 {
		t.Errorf("same-direction pnl = %v, want 0", got)
	}
	if got := p.CostBasis; !almostEqual(got, 1440.0/14) {
		t.Errorf("cost basis = %v, want %v", got, 1440.0/14)
	}
	if got := p.Add(6, 120).CostBasis; !almostEqual(got, (1440.0+720)/20) {
		t.Errorf("cost basis = %v, want %v", got, (1440.0+720)/20)
	}
}

func TestPosition_ShortFills(t *testing.T) {
	base := NewPosition("p", aapl, -10, 100)

	if got := base.Add(10, 110).Pnl(); !almostEqual(got, -100) {
		t.Errorf("full cover pnl = %v, want -100", got)
	}
	if got := base.Add(4, 110).Pnl(); !almostEqual(got, -40) {
		t.Errorf("partial cover pnl = %v, want -40", got)
	}
	if got := base.Add(4, 110).Add(6, 120).Pnl(); !almostEqual(got, -160) {
		t.Errorf("chained cover pnl = %v, want -160", got)
	}
	if got := NewPosition("p", aapl, -10, 120).Add(4, 110).Add(6, 100).Pnl(); !almostEqual(got, 160) {
		t.Errorf("profitable cover pnl = %v, want 160", got)
	}

	p := base.Add(-4, 110)
	if got := p.Pnl(); got != 0 {
		t.Errorf("same-direction pnl = %v, want 0", got)
	}
	if got := p.CostBasis; !almostEqual(got, 1440.0/14) {
		t.Errorf("cost basis = %v, want %v", got, 1440.0/14)
	}
}

func TestPosition_Flip(t *testing.T) {
	// Short 10 @ 110, buy 20 @ 100: realizes 100 on the covered 10 and
	// opens long 10 with the fill price as the new basis.
	p := NewPosition("p", aapl, -10, 110).Add(20, 100)
	if got := p.Pnl(); !almostEqual(got, 100) {
		t.Errorf("flip pnl = %v, want 100", got)
	}
	if got := p.Quantity; !almostEqual(got, 10) {
		t.Errorf("flip quantity = %v, want 10", got)
	}
	if got := p.CostBasis; !almostEqual(got, 100) {
		t.Errorf("flip cost basis = %v, want 100", got)
	}

	if got := NewPosition("p", aapl, 10, 110).Add(-20, 100).Pnl(); !almostEqual(got, -100) {
		t.Errorf("long flip pnl = %v, want -100", got)
	}
	if got := NewPosition("p", aapl, -10, 110).Add(20, 100).Add(-30, 105).Pnl(); !almostEqual(got, 150) {
		t.Errorf("double flip pnl = %v, want 150", got)
	}
}

func TestPosition_TradeSequence(t *testing.T) {
	fills := []struct {
		qty, price float64
	}{
		{4, 105},
		{-6, 110},
		{-6, 100},
		{-8, 102},
		{5, 101},
		{5, 102},
		{5, 104},
	}
	wantPnl := []float64{0, 0, 48, 40, 40, 43, 41, 41}
	wantBasis := []float64{100, 102, 102, 100, 101.6, 101.6, 101.6, 104}
	wantQty := []float64{6, 10, 4, -2, -10, -5, 0, 5}

	p := NewPosition("p", aapl, 6, 100)
	states := []Position{p}
	for _, f := range fills {
		p = p.Add(f.qty, f.price)
		states = append(states, p)
	}

	for i, s := range states {
		if !almostEqual(s.Pnl(), wantPnl[i]) {
			t.Errorf("step %d: pnl = %v, want %v", i, s.Pnl(), wantPnl[i])
		}
		if !almostEqual(s.CostBasis, wantBasis[i]) {
			t.Errorf("step %d: cost basis = %v, want %v", i, s.CostBasis, wantBasis[i])
		}
		if !almostEqual(s.Quantity, wantQty[i]) {
			t.Errorf("step %d: quantity = %v, want %v", i, s.Quantity, wantQty[i])
		}
	}
}

func TestPosition_FlatRetainsCostBasis(t *testing.T) {
	p := NewPosition("p", aapl, 10, 102).Add(-10, 105)
	if p.Quantity != 0 {
		t.Fatalf("quantity = %v, want 0", p.Quantity)
	}
	if got := p.CostBasis; !almostEqual(got, 102) {
		t.Errorf("flat position cost basis = %v, want retained 102", got)
	}

	// Reopening averages from zero, i.e. takes the new fill price.
	p = p.Add(5, 104)
	if got := p.CostBasis; !almostEqual(got, 104) {
		t.Errorf("reopened cost basis = %v, want 104", got)
	}
	if got := p.Pnl(); !almostEqual(got, 30) {
		t.Errorf("pnl = %v, want 30", got)
	}
}

func TestPosition_ZeroFillIsNoop(t *testing.T) {
	p := NewPosition("p", aapl, 10, 100)
	if got := p.Add(0, 999); got != p {
		t.Errorf("zero fill changed position: %+v", got)
	}
}

func TestPosition_Valuation(t *testing.T) {
	p := NewPosition("p", aapl, 10, 100).Add(-4, 110)

	v := p.Valuation(ts(10), 120, false)
	if !almostEqual(v.Value, 6*120) {
		t.Errorf("value = %v, want %v", v.Value, 6*120)
	}
	if v.FromTrade {
		t.Error("quote valuation marked as trade")
	}
	if !almostEqual(v.RealizedPnl, 40) {
		t.Errorf("valuation pnl = %v, want 40", v.RealizedPnl)
	}

	tv := p.Valuation(ts(10), 110, true)
	if !tv.FromTrade {
		t.Error("trade valuation not marked")
	}
	if !almostEqual(tv.Price, 110) {
		t.Errorf("trade valuation price = %v, want fill price 110", tv.Price)
	}
}

func FuzzPositionAdd(f *testing.F) {
	f.Add(10.0, 100.0, -4.0, 110.0)
	f.Add(-10.0, 110.0, 20.0, 100.0)
	f.Add(0.0, 0.0, 1.0, 50.0)

	f.Fuzz(func(t *testing.T, q0, cb0, qf, pf float64) {
		for _, v := range []float64{q0, cb0, qf, pf} {
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1e12 {
				t.Skip()
			}
		}
		p := Position{ID: "f", Asset: aapl, Quantity: q0, CostBasis: cb0}
		next := p.Add(qf, pf)

		// Quantity is always conserved.
		if !almostEqual(next.Quantity, q0+qf) && math.Abs(q0+qf) < 1e9 {
			t.Errorf("quantity %v + %v = %v", q0, qf, next.Quantity)
		}
		// Realized P&L only moves on closing fills.
		if qf != 0 && (q0 == 0 || math.Signbit(q0) == math.Signbit(qf)) && next.RealizedPnl != p.RealizedPnl {
			t.Errorf("same-direction fill realized pnl %v", next.RealizedPnl)
		}
	})
}
