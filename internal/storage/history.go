// Package storage persists the engine's order, trade and position history
// in SQLite. It is a pure event consumer: it attaches to the dispatcher
// like any other component and the core never depends on it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/just-nilux/trade-engine/internal/domain"
	"github.com/just-nilux/trade-engine/internal/event"
)

const (
	orderStatusPlaced    = "placed"
	orderStatusFilled    = "filled"
	orderStatusCancelled = "cancelled"
)

// HistoryStore appends order and trade history and maintains a position
// table by replaying the same cost-basis algebra the live ledger uses.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore opens (or creates) the store at path with WAL mode
// enabled.
func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS order_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			position_id TEXT NOT NULL,
			asset_symbol TEXT NOT NULL,
			asset_exchange TEXT NOT NULL DEFAULT '',
			quantity REAL NOT NULL,
			limit_price REAL,
			stop_price REAL,
			valid_from INTEGER,
			valid_until INTEGER,
			status TEXT NOT NULL,
			execute_price REAL,
			execute_time INTEGER,
			execute_value REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_id);`,
		`CREATE TABLE IF NOT EXISTS trade_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_id TEXT NOT NULL,
			order_id TEXT NOT NULL DEFAULT '',
			position_id TEXT NOT NULL,
			asset_symbol TEXT NOT NULL,
			asset_exchange TEXT NOT NULL DEFAULT '',
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			time INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS portfolio_position (
			position_id TEXT NOT NULL,
			asset_symbol TEXT NOT NULL,
			asset_exchange TEXT NOT NULL DEFAULT '',
			time INTEGER NOT NULL,
			quantity REAL NOT NULL,
			cost_basis REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			PRIMARY KEY (position_id, asset_symbol, asset_exchange)
		);`,
		`CREATE TABLE IF NOT EXISTS portfolio_history (
			position_id TEXT NOT NULL,
			asset_symbol TEXT NOT NULL,
			asset_exchange TEXT NOT NULL DEFAULT '',
			time INTEGER NOT NULL,
			quantity REAL NOT NULL,
			cost_basis REAL NOT NULL,
			value REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			PRIMARY KEY (position_id, asset_symbol, asset_exchange, time)
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &HistoryStore{db: db}, nil
}

// Attach subscribes the store to order and trade events. minQuantity is
// the book's placement filter: orders below it never enter the book, so
// the store must not record them as placed either. Persistence failures
// are logged, never propagated into the publishing component.
func (s *HistoryStore) Attach(bus *event.Dispatcher, minQuantity float64) event.Subscription {
	return bus.Register(func(ev event.Event) {
		ctx := context.Background()
		var err error
		switch e := ev.(type) {
		case *domain.Order:
			if math.Abs(e.Quantity) >= minQuantity {
				err = s.OrderPlaced(ctx, e)
			}
		case *domain.BasketOrder:
			for _, o := range e.Orders {
				if math.Abs(o.Quantity) < minQuantity {
					continue
				}
				if err = s.OrderPlaced(ctx, o); err != nil {
					break
				}
			}
		case *domain.CancelOrder:
			if e.Order != nil {
				err = s.OrderCancelled(ctx, e.Order.ID)
			}
		case *domain.TradeExecution:
			err = s.RecordTrade(ctx, e)
		}
		if err != nil {
			slog.Error("history store write failed", "event", ev.EventKind().String(), "err", err)
		}
	}, event.KindOrder, event.KindBasketOrder, event.KindCancelOrder, event.KindTradeExecution)
}

// OrderPlaced appends a placed row for the order.
func (s *HistoryStore) OrderPlaced(ctx context.Context, o *domain.Order) error {
	var validUntil any
	if o.ValidUntil != nil {
		validUntil = o.ValidUntil.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_history
			(order_id, position_id, asset_symbol, asset_exchange, quantity,
			 limit_price, stop_price, valid_from, valid_until, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.PositionID, o.Asset.Symbol, o.Asset.Exchange, o.Quantity,
		o.Limit, o.Stop, o.ValidFrom.UnixNano(), validUntil, orderStatusPlaced)
	if err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}
	return nil
}

// OrderCancelled marks the order's placed row as cancelled.
func (s *HistoryStore) OrderCancelled(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE order_history SET status = ? WHERE order_id = ? AND status = ?`,
		orderStatusCancelled, orderID, orderStatusPlaced)
	if err != nil {
		return fmt.Errorf("update order history: %w", err)
	}
	return nil
}

// RecordTrade appends the trade, marks the originating order filled and
// folds the fill into the position tables.
func (s *HistoryStore) RecordTrade(ctx context.Context, t *domain.TradeExecution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trade_history
			(trade_id, order_id, position_id, asset_symbol, asset_exchange, quantity, price, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrderID, t.PositionID, t.Asset.Symbol, t.Asset.Exchange,
		t.Quantity, t.Price, t.Time.UnixNano())
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	if t.OrderID != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE order_history
			SET status = ?, execute_price = ?, execute_time = ?, execute_value = ?
			WHERE order_id = ? AND status = ?`,
			orderStatusFilled, t.Price, t.Time.UnixNano(), t.Price*t.Quantity,
			t.OrderID, orderStatusPlaced)
		if err != nil {
			return fmt.Errorf("mark order filled: %w", err)
		}
	}

	pos, found, err := positionTx(ctx, tx, t.PositionID, t.Asset)
	if err != nil {
		return err
	}
	if found {
		pos = pos.Add(t.Quantity, t.Price)
	} else {
		pos = domain.NewPosition(t.PositionID, t.Asset, t.Quantity, t.Price)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio_position
			(position_id, asset_symbol, asset_exchange, time, quantity, cost_basis, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(position_id, asset_symbol, asset_exchange) DO UPDATE SET
			time = excluded.time,
			quantity = excluded.quantity,
			cost_basis = excluded.cost_basis,
			realized_pnl = excluded.realized_pnl`,
		t.PositionID, t.Asset.Symbol, t.Asset.Exchange, t.Time.UnixNano(),
		pos.Quantity, pos.CostBasis, pos.RealizedPnl)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio_history
			(position_id, asset_symbol, asset_exchange, time, quantity, cost_basis, value, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(position_id, asset_symbol, asset_exchange, time) DO UPDATE SET
			quantity = excluded.quantity,
			cost_basis = excluded.cost_basis,
			value = excluded.value,
			realized_pnl = excluded.realized_pnl`,
		t.PositionID, t.Asset.Symbol, t.Asset.Exchange, t.Time.UnixNano(),
		pos.Quantity, pos.CostBasis, pos.Quantity*t.Price, pos.RealizedPnl)
	if err != nil {
		return fmt.Errorf("insert portfolio history: %w", err)
	}

	return tx.Commit()
}

// positionTx loads the stored position for (positionID, asset) inside tx.
func positionTx(ctx context.Context, tx *sql.Tx, positionID string, asset domain.Asset) (domain.Position, bool, error) {
	var pos domain.Position
	pos.ID = positionID
	pos.Asset = asset

	err := tx.QueryRowContext(ctx, `
		SELECT quantity, cost_basis, realized_pnl FROM portfolio_position
		WHERE position_id = ? AND asset_symbol = ? AND asset_exchange = ?`,
		positionID, asset.Symbol, asset.Exchange).
		Scan(&pos.Quantity, &pos.CostBasis, &pos.RealizedPnl)
	if err == sql.ErrNoRows {
		return pos, false, nil
	}
	if err != nil {
		return pos, false, fmt.Errorf("load position: %w", err)
	}
	return pos, true, nil
}

// Position returns the stored ledger state for (positionID, asset).
func (s *HistoryStore) Position(ctx context.Context, positionID string, asset domain.Asset) (domain.Position, bool, error) {
	var pos domain.Position
	pos.ID = positionID
	pos.Asset = asset

	err := s.db.QueryRowContext(ctx, `
		SELECT quantity, cost_basis, realized_pnl FROM portfolio_position
		WHERE position_id = ? AND asset_symbol = ? AND asset_exchange = ?`,
		positionID, asset.Symbol, asset.Exchange).
		Scan(&pos.Quantity, &pos.CostBasis, &pos.RealizedPnl)
	if err == sql.ErrNoRows {
		return pos, false, nil
	}
	if err != nil {
		return pos, false, fmt.Errorf("load position: %w", err)
	}
	return pos, true, nil
}

// Trades returns the full trade history in insertion order.
func (s *HistoryStore) Trades(ctx context.Context) ([]*domain.TradeExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_id, order_id, position_id, asset_symbol, asset_exchange, quantity, price, time
		FROM trade_history ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.TradeExecution
	for rows.Next() {
		t := &domain.TradeExecution{}
		var ns int64
		if err := rows.Scan(&t.ID, &t.OrderID, &t.PositionID,
			&t.Asset.Symbol, &t.Asset.Exchange, &t.Quantity, &t.Price, &ns); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Time = time.Unix(0, ns).UTC()
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}

// OrderStatus returns the current status of an order's history row.
func (s *HistoryStore) OrderStatus(ctx context.Context, orderID string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM order_history WHERE order_id = ? ORDER BY id DESC LIMIT 1`,
		orderID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query order status: %w", err)
	}
	return status, nil
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
