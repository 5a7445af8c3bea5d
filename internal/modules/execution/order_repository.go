// Package execution owns the order state machine: persistence, lifecycle
// events, executors and exchange reconciliation.
package execution

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

const orderColumns = `id, symbol, side, type, price, amount, filled_amount,
	remaining_amount, average_price, leverage, status, client_order_id,
	exchange_order_id, time_in_force, created_at, updated_at`

// OrderRepository persists orders
type OrderRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB, log zerolog.Logger) *OrderRepository {
	return &OrderRepository{
		db:  db,
		log: log.With().Str("repo", "orders").Logger(),
	}
}

// Insert stores a new order and sets its id
func (r *OrderRepository) Insert(o *domain.Order) error {
	res, err := r.db.Exec(`
		INSERT INTO orders
		(symbol, side, type, price, amount, filled_amount, remaining_amount,
		 average_price, leverage, status, client_order_id, exchange_order_id,
		 time_in_force, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.Symbol, o.Side, o.Type, o.Price, o.Amount, o.FilledAmount, o.RemainingAmount,
		o.AveragePrice, o.Leverage, o.Status, o.ClientOrderID, o.ExchangeOrderID,
		o.TimeInForce, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get order id: %w", err)
	}
	o.ID = id
	return nil
}

// Update rewrites every mutable column of an existing order
func (r *OrderRepository) Update(o *domain.Order) error {
	o.UpdatedAt = domain.UTCNowS()
	_, err := r.db.Exec(`
		UPDATE orders
		SET price = ?, amount = ?, filled_amount = ?, remaining_amount = ?,
		    average_price = ?, leverage = ?, status = ?, exchange_order_id = ?,
		    time_in_force = ?, updated_at = ?
		WHERE id = ?
	`, o.Price, o.Amount, o.FilledAmount, o.RemainingAmount, o.AveragePrice,
		o.Leverage, o.Status, o.ExchangeOrderID, o.TimeInForce, o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", o.ID, err)
	}
	return nil
}

// GetByClientOrderID returns the order with the given client id, or nil
func (r *OrderRepository) GetByClientOrderID(clientOrderID string) (*domain.Order, error) {
	row := r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE client_order_id = ?`, clientOrderID)
	return scanOrder(row)
}

// GetByExchangeOrderID returns the order with the given exchange id, or nil
func (r *OrderRepository) GetByExchangeOrderID(exchangeOrderID string) (*domain.Order, error) {
	row := r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE exchange_order_id = ?`, exchangeOrderID)
	return scanOrder(row)
}

// ListByStatus returns all orders in any of the given states, oldest first
func (r *OrderRepository) ListByStatus(statuses ...domain.OrderStatus) ([]domain.Order, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}

	rows, err := r.db.Query(`
		SELECT `+orderColumns+`
		FROM orders
		WHERE status IN (`+placeholders+`)
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders by status: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListByClientOrderIDs returns the orders matching the given client ids
func (r *OrderRepository) ListByClientOrderIDs(ids []string) ([]domain.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Query(`
		SELECT `+orderColumns+`
		FROM orders
		WHERE client_order_id IN (`+placeholders+`)
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders by client id: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var price, filled, remaining, average, leverage sql.NullFloat64
	var exchangeID, tif sql.NullString
	err := row.Scan(&o.ID, &o.Symbol, &o.Side, &o.Type, &price, &o.Amount,
		&filled, &remaining, &average, &leverage, &o.Status, &o.ClientOrderID,
		&exchangeID, &tif, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if price.Valid {
		o.Price = &price.Float64
	}
	if filled.Valid {
		o.FilledAmount = &filled.Float64
	}
	if remaining.Valid {
		o.RemainingAmount = &remaining.Float64
	}
	if average.Valid {
		o.AveragePrice = &average.Float64
	}
	if leverage.Valid {
		o.Leverage = &leverage.Float64
	}
	if exchangeID.Valid {
		o.ExchangeOrderID = &exchangeID.String
	}
	if tif.Valid {
		o.TimeInForce = &tif.String
	}
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}
