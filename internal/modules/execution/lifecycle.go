package execution

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

// EventDetail carries optional exchange context for a lifecycle event
type EventDetail struct {
	Exchange        *string
	ExchangeStatus  *string
	ExchangeEventTS *int64
	RawPayload      *string
	TradeID         *string
	FillQty         *float64
	FillPrice       *float64
	Fee             *float64
	FeeCurrency     *string
}

// LifecycleEvent is one stored order state transition
type LifecycleEvent struct {
	ID        int64
	OrderID   int64
	Status    domain.OrderStatus
	Message   string
	Timestamp int64
}

// Lifecycle applies order state transitions and records each one as an
// append-only event
type Lifecycle struct {
	db  *database.DB
	log zerolog.Logger
}

// NewLifecycle creates a new lifecycle recorder
func NewLifecycle(db *database.DB, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		db:  db,
		log: log.With().Str("component", "lifecycle").Logger(),
	}
}

// Transition moves the order identified by client order id into a new
// status and appends a lifecycle event describing the step. The stored
// from-status is re-read inside the transaction so concurrent writers
// cannot produce a stale transition message. Unknown client order ids
// are ignored.
func (l *Lifecycle) Transition(clientOrderID string, to domain.OrderStatus, message string, detail *EventDetail) error {
	return database.WithTransaction(l.db, func(tx *sql.Tx) error {
		var orderID int64
		var symbol string
		var from sql.NullString
		err := tx.QueryRow(`
			SELECT id, symbol, status FROM orders WHERE client_order_id = ?
		`, clientOrderID).Scan(&orderID, &symbol, &from)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to resolve order %s: %w", clientOrderID, err)
		}

		fromStatus := "UNKNOWN"
		if from.Valid && from.String != "" {
			fromStatus = from.String
		}

		now := domain.UTCNowS()
		if _, err := tx.Exec(`
			UPDATE orders SET status = ?, updated_at = ? WHERE id = ?
		`, to, now, orderID); err != nil {
			return fmt.Errorf("failed to transition order %d: %w", orderID, err)
		}

		text := fmt.Sprintf("%s -> %s. %s", fromStatus, to, message)
		var d EventDetail
		if detail != nil {
			d = *detail
		}
		if _, err := tx.Exec(`
			INSERT INTO order_lifecycle_events
			(order_id, status, message, timestamp, exchange, symbol, exchange_status,
			 exchange_event_ts, raw_payload, client_order_id, trade_id,
			 fill_qty, fill_price, fee, fee_currency)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, orderID, to, text, now, d.Exchange, symbol, d.ExchangeStatus,
			d.ExchangeEventTS, d.RawPayload, clientOrderID, d.TradeID,
			d.FillQty, d.FillPrice, d.Fee, d.FeeCurrency); err != nil {
			return fmt.Errorf("failed to record lifecycle event: %w", err)
		}
		return nil
	})
}

// EventsFor returns the lifecycle history of one order, oldest first
func (l *Lifecycle) EventsFor(orderID int64) ([]LifecycleEvent, error) {
	rows, err := l.db.Query(`
		SELECT id, order_id, status, COALESCE(message, ''), timestamp
		FROM order_lifecycle_events
		WHERE order_id = ?
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lifecycle events: %w", err)
	}
	defer rows.Close()

	var events []LifecycleEvent
	for rows.Next() {
		var e LifecycleEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan lifecycle event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lifecycle events: %w", err)
	}
	return events, nil
}
