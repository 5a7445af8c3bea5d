package execution

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

// TradeRepository persists executions attributed to orders
type TradeRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *database.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trades").Logger(),
	}
}

// Insert stores one trade and sets its id
func (r *TradeRepository) Insert(t *domain.Trade) error {
	res, err := r.db.Exec(`
		INSERT INTO trades
		(order_id, symbol, side, price, amount, fee, fee_currency, realized_pnl, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.OrderID, t.Symbol, t.Side, t.Price, t.Amount, t.Fee, t.FeeCurrency, t.RealizedPnL, t.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get trade id: %w", err)
	}
	t.ID = id
	return nil
}

// ExistsForOrder reports whether any trade is recorded for an order
func (r *TradeRepository) ExistsForOrder(orderID int64) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE order_id = ?`, orderID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count trades for order %d: %w", orderID, err)
	}
	return n > 0, nil
}

// ExistsMatching reports whether a trade with the same order, time, price
// and amount is already recorded
func (r *TradeRepository) ExistsMatching(orderID, timestamp int64, price, amount float64) (bool, error) {
	var n int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM trades
		WHERE order_id = ? AND timestamp = ? AND price = ? AND amount = ?
	`, orderID, timestamp, price, amount).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to match trades for order %d: %w", orderID, err)
	}
	return n > 0, nil
}

// GetByOrder returns the trades for an order, oldest first
func (r *TradeRepository) GetByOrder(orderID int64) ([]domain.Trade, error) {
	rows, err := r.db.Query(`
		SELECT id, order_id, symbol, side, price, amount, fee, fee_currency, realized_pnl, timestamp
		FROM trades
		WHERE order_id = ?
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var fee, pnl sql.NullFloat64
		var feeCcy sql.NullString
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Symbol, &t.Side, &t.Price, &t.Amount, &fee, &feeCcy, &pnl, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if fee.Valid {
			t.Fee = &fee.Float64
		}
		if feeCcy.Valid {
			t.FeeCurrency = &feeCcy.String
		}
		if pnl.Valid {
			t.RealizedPnL = &pnl.Float64
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}
