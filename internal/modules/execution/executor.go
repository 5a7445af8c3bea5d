package execution

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/exchange"
)

// Request describes one order to place, carrying the signal metadata the
// risk chain inspects
type Request struct {
	Symbol      string
	Side        domain.OrderSide
	Type        domain.OrderType
	Quantity    float64
	Price       *float64
	Leverage    *float64
	Confidence  *float64
	SignalOK    *bool
	TimeInForce *string
}

// Executor places and manages orders. Both variants persist every order
// and its full lifecycle; only the live one talks to the exchange.
type Executor interface {
	CreateOrder(ctx context.Context, req Request) (*domain.Order, error)
	CancelOrder(ctx context.Context, clientOrderID string) (bool, error)
	RefreshOrder(ctx context.Context, clientOrderID string) (*domain.Order, error)
	WaitForFill(ctx context.Context, clientOrderID string, timeout, interval time.Duration) (*domain.Order, error)
}

// newClientOrderID returns a 32-char hex id, safe for venue clOrdId fields
func newClientOrderID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func newOrderFromRequest(req Request, price *float64) *domain.Order {
	now := domain.UTCNowS()
	return &domain.Order{
		ClientOrderID: newClientOrderID(),
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Price:         price,
		Amount:        req.Quantity,
		Leverage:      req.Leverage,
		Status:        domain.StatusCreated,
		TimeInForce:   req.TimeInForce,
		Confidence:    req.Confidence,
		SignalOK:      req.SignalOK,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// statusRank orders statuses along the only allowed path:
// CREATED -> NEW -> PARTIALLY_FILLED -> terminal
func statusRank(s domain.OrderStatus) int {
	switch s {
	case domain.StatusCreated:
		return 0
	case domain.StatusNew:
		return 1
	case domain.StatusPartiallyFilled:
		return 2
	}
	return 3
}

// eventName labels a lifecycle transition by its target status
func eventName(to domain.OrderStatus) string {
	switch to {
	case domain.StatusNew:
		return "ORDER_SUBMITTED"
	case domain.StatusPartiallyFilled:
		return "PARTIAL_FILL"
	case domain.StatusFilled:
		return "ORDER_FILLED"
	case domain.StatusCanceled:
		return "ORDER_CANCELED"
	case domain.StatusRejected:
		return "ORDER_REJECTED"
	}
	return string(to)
}

// applyExchangeReply folds one exchange view of an order into the stored
// row: fill columns first, then at most one lifecycle transition. Returns
// whether anything changed.
func applyExchangeReply(orders *OrderRepository, trades *TradeRepository, lifecycle *Lifecycle, o *domain.Order, reply *exchange.OrderReply) (bool, error) {
	oldFilled := 0.0
	if o.FilledAmount != nil {
		oldFilled = *o.FilledAmount
	}
	newFilled := oldFilled
	if reply.Filled != nil {
		newFilled = *reply.Filled
	}
	amount := o.Amount
	if reply.Amount != nil && *reply.Amount > 0 {
		amount = *reply.Amount
	}
	mapped := exchange.MapStatus(reply.Status, &amount, reply.Filled)

	avgChanged := reply.Average != nil && (o.AveragePrice == nil || *o.AveragePrice != *reply.Average)
	changed := false
	if newFilled != oldFilled || avgChanged {
		o.FilledAmount = &newFilled
		remaining := math.Max(amount-newFilled, 0)
		o.RemainingAmount = &remaining
		if reply.Average != nil {
			o.AveragePrice = reply.Average
		}
		if err := orders.Update(o); err != nil {
			return false, err
		}
		changed = true
	}

	if o.Status.IsTerminal() {
		return changed, nil
	}

	detail := &EventDetail{
		ExchangeStatus:  strPtr(reply.Status),
		ExchangeEventTS: reply.UpdatedAt,
		RawPayload:      strPtr(reply.Raw),
	}

	switch {
	case mapped == domain.StatusPartiallyFilled && newFilled > oldFilled:
		detail.FillQty = floatPtr(newFilled - oldFilled)
		detail.FillPrice = reply.Average
		msg := fmt.Sprintf("PARTIAL_FILL filled=%g", newFilled)
		if err := lifecycle.Transition(o.ClientOrderID, domain.StatusPartiallyFilled, msg, detail); err != nil {
			return changed, err
		}
		o.Status = domain.StatusPartiallyFilled
		changed = true
	case mapped != o.Status && statusRank(mapped) > statusRank(o.Status):
		// stale venue views (a pending-list row before accFillSz
		// populates maps to NEW) must not walk the order backwards
		if err := lifecycle.Transition(o.ClientOrderID, mapped, eventName(mapped), detail); err != nil {
			return changed, err
		}
		o.Status = mapped
		changed = true
	}

	if o.Status == domain.StatusFilled {
		if err := persistTradeFromReply(trades, o, reply); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// persistTradeFromReply derives at most one trade row from a filled
// order; orders that already have a trade are skipped
func persistTradeFromReply(trades *TradeRepository, o *domain.Order, reply *exchange.OrderReply) error {
	exists, err := trades.ExistsForOrder(o.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	price := 0.0
	switch {
	case reply != nil && reply.Average != nil:
		price = *reply.Average
	case reply != nil && reply.Price != nil:
		price = *reply.Price
	case o.AveragePrice != nil:
		price = *o.AveragePrice
	case o.Price != nil:
		price = *o.Price
	}

	amount := o.Amount
	switch {
	case reply != nil && reply.Filled != nil && *reply.Filled > 0:
		amount = *reply.Filled
	case reply != nil && reply.Amount != nil && *reply.Amount > 0:
		amount = *reply.Amount
	}

	ts := domain.UTCNowMs()
	if reply != nil {
		if reply.UpdatedAt != nil {
			ts = exchange.ToMs(*reply.UpdatedAt)
		} else if reply.Timestamp != nil {
			ts = exchange.ToMs(*reply.Timestamp)
		}
	}

	trade := &domain.Trade{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Price:     price,
		Amount:    amount,
		Timestamp: ts,
	}
	if reply != nil {
		trade.Fee = reply.FeeCost
		if reply.FeeCurrency != "" {
			trade.FeeCurrency = strPtr(reply.FeeCurrency)
		}
	}
	return trades.Insert(trade)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func floatPtr(v float64) *float64 { return &v }
