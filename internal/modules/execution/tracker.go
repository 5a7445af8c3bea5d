package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/exchange"
)

const (
	historyPageSize = 100
	historyMaxPages = 200
)

// OrderTracker reconciles stored orders against the exchange: it
// refreshes open orders and backfills orders and trades from the venue's
// history endpoints.
type OrderTracker struct {
	gateway   exchange.Gateway
	orders    *OrderRepository
	trades    *TradeRepository
	lifecycle *Lifecycle
	log       zerolog.Logger
	sleep     func(time.Duration)
}

// NewOrderTracker creates a new order tracker
func NewOrderTracker(gateway exchange.Gateway, orders *OrderRepository, trades *TradeRepository, lifecycle *Lifecycle, log zerolog.Logger) *OrderTracker {
	return &OrderTracker{
		gateway:   gateway,
		orders:    orders,
		trades:    trades,
		lifecycle: lifecycle,
		log:       log.With().Str("component", "order_tracker").Logger(),
		sleep:     time.Sleep,
	}
}

// SyncOrders refreshes the given orders from the exchange, or every
// non-terminal order when no client ids are given. Returns how many
// orders changed.
func (t *OrderTracker) SyncOrders(ctx context.Context, clientOrderIDs []string) (int, error) {
	var open []domain.Order
	var err error
	if len(clientOrderIDs) > 0 {
		open, err = t.orders.ListByClientOrderIDs(clientOrderIDs)
	} else {
		open, err = t.orders.ListByStatus(domain.StatusNew, domain.StatusPartiallyFilled)
	}
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range open {
		o := &open[i]
		if o.ExchangeOrderID == nil || o.Status.IsTerminal() {
			continue
		}
		reply, err := t.gateway.FetchOrder(ctx, *o.ExchangeOrderID, o.Symbol)
		if err != nil {
			t.log.Warn().Err(err).Str("client_order_id", o.ClientOrderID).Msg("Failed to refresh order")
			continue
		}
		didChange, err := applyExchangeReply(t.orders, t.trades, t.lifecycle, o, reply)
		if err != nil {
			return changed, err
		}
		if didChange {
			changed++
		}
	}
	t.log.Debug().Int("open", len(open)).Int("changed", changed).Msg("Order sync complete")
	return changed, nil
}

// SyncExchangeHistory pages the venue's order and trade history for a
// symbol since the given time and upserts anything missing locally.
// Returns how many rows were written or updated.
func (t *OrderTracker) SyncExchangeHistory(ctx context.Context, symbol string, sinceMs int64) (int, error) {
	written := 0
	seen := map[string]bool{}

	for _, fetch := range []func(context.Context, string, *int64, int) ([]exchange.OrderReply, error){
		t.gateway.FetchOpenOrders,
		t.gateway.FetchClosedOrders,
	} {
		n, err := t.pageOrders(ctx, symbol, sinceMs, seen, fetch)
		if err != nil {
			return written, err
		}
		written += n
	}

	n, err := t.pageTrades(ctx, symbol, sinceMs)
	if err != nil {
		return written, err
	}
	written += n
	return written, nil
}

func (t *OrderTracker) pageOrders(ctx context.Context, symbol string, sinceMs int64, seen map[string]bool, fetch func(context.Context, string, *int64, int) ([]exchange.OrderReply, error)) (int, error) {
	written := 0
	cursor := sinceMs
	for page := 0; page < historyMaxPages; page++ {
		replies, err := fetch(ctx, symbol, &cursor, historyPageSize)
		if err != nil {
			return written, fmt.Errorf("failed to page order history: %w", err)
		}
		if len(replies) == 0 {
			break
		}

		maxTs := int64(0)
		for i := range replies {
			r := &replies[i]
			key := orderKey(r)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			didWrite, err := t.upsertOrder(r)
			if err != nil {
				return written, err
			}
			if didWrite {
				written++
			}
			if r.Timestamp != nil && exchange.ToMs(*r.Timestamp) > maxTs {
				maxTs = exchange.ToMs(*r.Timestamp)
			}
		}

		if maxTs == 0 || maxTs+1 <= cursor {
			break
		}
		cursor = maxTs + 1
		if len(replies) < historyPageSize {
			break
		}
		t.sleep(time.Duration(t.gateway.RateLimitMs()) * time.Millisecond)
	}
	return written, nil
}

func orderKey(r *exchange.OrderReply) string {
	if r.ID != "" {
		return "ex:" + r.ID
	}
	if r.ClientOrderID != "" {
		return "cl:" + r.ClientOrderID
	}
	return ""
}

// upsertOrder reconciles one historical order reply: known orders are
// refreshed in place, unknown ones inserted when the reply carries
// enough to satisfy the schema
func (t *OrderTracker) upsertOrder(r *exchange.OrderReply) (bool, error) {
	var o *domain.Order
	var err error
	if r.ClientOrderID != "" {
		o, err = t.orders.GetByClientOrderID(r.ClientOrderID)
		if err != nil {
			return false, err
		}
	}
	if o == nil && r.ID != "" {
		o, err = t.orders.GetByExchangeOrderID(r.ID)
		if err != nil {
			return false, err
		}
	}

	if o != nil {
		if o.ExchangeOrderID == nil && r.ID != "" {
			o.ExchangeOrderID = &r.ID
			if err := t.orders.Update(o); err != nil {
				return false, err
			}
		}
		return applyExchangeReply(t.orders, t.trades, t.lifecycle, o, r)
	}

	side, err := exchange.NormalizeSide(r.Side)
	if err != nil {
		t.log.Debug().Str("exchange_order_id", r.ID).Msg("Skipping history order without side")
		return false, nil
	}
	orderType, err := exchange.NormalizeOrderType(r.Type)
	if err != nil {
		t.log.Debug().Str("exchange_order_id", r.ID).Msg("Skipping history order without type")
		return false, nil
	}
	if r.Amount == nil || *r.Amount <= 0 {
		t.log.Debug().Str("exchange_order_id", r.ID).Msg("Skipping history order without amount")
		return false, nil
	}

	createdAt := domain.UTCNowS()
	if r.Timestamp != nil {
		createdAt = exchange.ToS(*r.Timestamp)
	}
	clientID := r.ClientOrderID
	if clientID == "" {
		clientID = newClientOrderID()
	}
	status := exchange.MapStatus(r.Status, r.Amount, r.Filled)

	o = &domain.Order{
		ClientOrderID: clientID,
		Symbol:        r.Symbol,
		Side:          side,
		Type:          orderType,
		Price:         r.Price,
		Amount:        *r.Amount,
		FilledAmount:  r.Filled,
		AveragePrice:  r.Average,
		Leverage:      r.Leverage,
		Status:        status,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	if r.ID != "" {
		o.ExchangeOrderID = &r.ID
	}
	if err := t.orders.Insert(o); err != nil {
		return false, err
	}
	if status == domain.StatusFilled {
		if err := persistTradeFromReply(t.trades, o, r); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (t *OrderTracker) pageTrades(ctx context.Context, symbol string, sinceMs int64) (int, error) {
	written := 0
	seen := map[string]bool{}
	cursor := sinceMs
	for page := 0; page < historyMaxPages; page++ {
		replies, err := t.gateway.FetchMyTrades(ctx, symbol, &cursor, historyPageSize)
		if err != nil {
			return written, fmt.Errorf("failed to page trade history: %w", err)
		}
		if len(replies) == 0 {
			break
		}

		maxTs := int64(0)
		for i := range replies {
			r := &replies[i]
			if r.ID != "" {
				if seen[r.ID] {
					continue
				}
				seen[r.ID] = true
			}
			didWrite, err := t.upsertTrade(r)
			if err != nil {
				return written, err
			}
			if didWrite {
				written++
			}
			if r.Timestamp != nil && exchange.ToMs(*r.Timestamp) > maxTs {
				maxTs = exchange.ToMs(*r.Timestamp)
			}
		}

		if maxTs == 0 || maxTs+1 <= cursor {
			break
		}
		cursor = maxTs + 1
		if len(replies) < historyPageSize {
			break
		}
		t.sleep(time.Duration(t.gateway.RateLimitMs()) * time.Millisecond)
	}
	return written, nil
}

// upsertTrade attaches a historical fill to its order, creating a stub
// FILLED order when the venue reports a trade we never submitted
func (t *OrderTracker) upsertTrade(r *exchange.TradeReply) (bool, error) {
	if r.Price == nil || r.Amount == nil || *r.Amount <= 0 {
		return false, nil
	}

	var o *domain.Order
	var err error
	if r.ExchangeOrderID != "" {
		o, err = t.orders.GetByExchangeOrderID(r.ExchangeOrderID)
		if err != nil {
			return false, err
		}
	}
	if o == nil {
		side, err := exchange.NormalizeSide(r.Side)
		if err != nil {
			return false, nil
		}
		ts := domain.UTCNowS()
		if r.Timestamp != nil {
			ts = exchange.ToS(*r.Timestamp)
		}
		o = &domain.Order{
			ClientOrderID: newClientOrderID(),
			Symbol:        r.Symbol,
			Side:          side,
			Type:          domain.TypeMarket,
			Price:         r.Price,
			Amount:        *r.Amount,
			FilledAmount:  r.Amount,
			AveragePrice:  r.Price,
			Status:        domain.StatusFilled,
			CreatedAt:     ts,
			UpdatedAt:     ts,
		}
		if r.ExchangeOrderID != "" {
			o.ExchangeOrderID = &r.ExchangeOrderID
		}
		if err := t.orders.Insert(o); err != nil {
			return false, err
		}
	}

	ts := domain.UTCNowMs()
	if r.Timestamp != nil {
		ts = exchange.ToMs(*r.Timestamp)
	}
	exists, err := t.trades.ExistsMatching(o.ID, ts, *r.Price, *r.Amount)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	trade := &domain.Trade{
		OrderID:     o.ID,
		Symbol:      o.Symbol,
		Side:        string(o.Side),
		Price:       *r.Price,
		Amount:      *r.Amount,
		Fee:         r.Fee,
		RealizedPnL: r.RealizedPnL,
		Timestamp:   ts,
	}
	if r.FeeCurrency != "" {
		trade.FeeCurrency = &r.FeeCurrency
	}
	return true, t.trades.Insert(trade)
}
