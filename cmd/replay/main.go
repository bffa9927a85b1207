package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/just-nilux/trade-engine/backtest"
	"github.com/just-nilux/trade-engine/internal/infra"
	"github.com/just-nilux/trade-engine/internal/storage"
)

// replay rebuilds the position ledgers from the persisted trade history
// and prints the final state of every ledger.
func main() {
	defer infra.Recover()

	dbPath := flag.String("db", "trade_engine.db", "path to the history database")
	flag.Parse()

	store, err := storage.NewHistoryStore(*dbPath)
	if err != nil {
		slog.Error("❌ History store open failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	ledgers, err := backtest.New(store).Rebuild(context.Background())
	if err != nil {
		slog.Error("❌ Rebuild failed", slog.Any("error", err))
		os.Exit(1)
	}

	ids := make([]string, 0, len(ledgers))
	for id := range ledgers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, pos := range ledgers[id] {
			fmt.Printf("%s %s qty=%.8f cost_basis=%.8f realized_pnl=%.8f\n",
				id, pos.Asset.String(), pos.Quantity, pos.CostBasis, pos.RealizedPnl)
		}
	}
}
