// Package backtest reconstructs portfolio state from persisted trade
// history. Folding the recorded fills back through the position algebra
// must land on the same final quantities, cost bases and realized pnl
// the live ledger reported.
package backtest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/just-nilux/trade-engine/internal/domain"
	"github.com/just-nilux/trade-engine/internal/event"
)

// TradeSource yields the recorded trade executions in insertion order.
// *storage.HistoryStore satisfies it.
type TradeSource interface {
	Trades(ctx context.Context) ([]*domain.TradeExecution, error)
}

// Replayer folds a trade history back into position ledgers.
type Replayer struct {
	source TradeSource
}

// New creates a replayer over the given trade source.
func New(source TradeSource) *Replayer {
	return &Replayer{source: source}
}

// Rebuild folds every recorded trade through the position algebra and
// returns the resulting ledgers keyed by position ID and asset.
func (r *Replayer) Rebuild(ctx context.Context) (map[string]map[domain.Asset]domain.Position, error) {
	trades, err := r.source.Trades(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trade history: %w", err)
	}

	ledgers := make(map[string]map[domain.Asset]domain.Position)
	for _, t := range trades {
		byAsset, ok := ledgers[t.PositionID]
		if !ok {
			byAsset = make(map[domain.Asset]domain.Position)
			ledgers[t.PositionID] = byAsset
		}
		pos, ok := byAsset[t.Asset]
		if !ok {
			pos = domain.NewPosition(t.PositionID, t.Asset, 0, 0)
		}
		byAsset[t.Asset] = pos.Add(t.Quantity, t.Price)
	}

	slog.Info("trade history rebuilt", "trades", len(trades), "positions", len(ledgers))
	return ledgers, nil
}

// RunReplay republishes the full trade history on bus in recorded order,
// so freshly attached components see the exact event stream the live run
// produced.
func (r *Replayer) RunReplay(ctx context.Context, bus *event.Dispatcher) error {
	trades, err := r.source.Trades(ctx)
	if err != nil {
		return fmt.Errorf("load trade history: %w", err)
	}

	for _, t := range trades {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		bus.Publish(t)
	}
	return nil
}
