package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/exchange"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
	"github.com/aristath/alpha-arena/internal/modules/risk"
)

// LiveExecutor submits orders to the exchange and mirrors the venue's
// view of each order back into the store.
type LiveExecutor struct {
	gateway   exchange.Gateway
	orders    *OrderRepository
	trades    *TradeRepository
	lifecycle *Lifecycle
	risk      *risk.Manager
	market    *marketdata.Service
	tdMode    string // cross | isolated | cash
	hedgeMode bool   // swap orders carry an explicit posSide
	log       zerolog.Logger
	sleep     func(time.Duration)
}

// NewLiveExecutor creates a live executor
func NewLiveExecutor(gateway exchange.Gateway, orders *OrderRepository, trades *TradeRepository, lifecycle *Lifecycle, riskMgr *risk.Manager, market *marketdata.Service, tdMode string, hedgeMode bool, log zerolog.Logger) *LiveExecutor {
	return &LiveExecutor{
		gateway:   gateway,
		orders:    orders,
		trades:    trades,
		lifecycle: lifecycle,
		risk:      riskMgr,
		market:    market,
		tdMode:    tdMode,
		hedgeMode: hedgeMode,
		log:       log.With().Str("component", "live_executor").Logger(),
		sleep:     time.Sleep,
	}
}

func isSwap(symbol string) bool {
	return strings.Contains(symbol, ":")
}

// effectivePrice resolves the price the risk chain values the order at:
// the caller's price first, then the freshest ticker, then the last
// stored snapshot
func (e *LiveExecutor) effectivePrice(ctx context.Context, req Request) *float64 {
	if req.Price != nil {
		return req.Price
	}
	ticker, err := e.gateway.FetchTicker(ctx, req.Symbol)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to fetch ticker for pricing")
	} else if p := ticker.Price(); p != nil {
		return p
	}
	price, err := e.market.LastPrice(req.Symbol)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to read stored price")
		return nil
	}
	return price
}

// CreateOrder persists the order, runs the risk chain and submits it.
// Deterministic rejections (risk denial, missing limit price, venue
// rejection) end as REJECTED without error; transport failures after the
// adapter's retries are returned to the caller.
func (e *LiveExecutor) CreateOrder(ctx context.Context, req Request) (*domain.Order, error) {
	price := e.effectivePrice(ctx, req)

	o := newOrderFromRequest(req, price)
	if err := e.orders.Insert(o); err != nil {
		return nil, err
	}

	if verdict := e.risk.Check(o); !verdict.Allowed {
		if err := e.reject(o, verdict.Reason); err != nil {
			return nil, err
		}
		return o, nil
	}
	if req.Type == domain.TypeLimit && req.Price == nil {
		if err := e.reject(o, "missing price for limit order"); err != nil {
			return nil, err
		}
		return o, nil
	}

	params := map[string]string{
		"tdMode":  e.tdMode,
		"clOrdId": o.ClientOrderID,
	}
	posSide := ""
	if isSwap(req.Symbol) && e.hedgeMode {
		posSide = "long"
		if req.Side == domain.SideSell {
			posSide = "short"
		}
		params["posSide"] = posSide
	}

	greq := exchange.OrderRequest{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Quantity: req.Quantity,
		Price:    req.Price,
		Params:   params,
	}

	reply, err := e.gateway.CreateOrder(ctx, greq)
	if err != nil && posSide != "" && exchange.IsPosSideError(err) {
		// hedge-mode mismatch: flip the position side once and retry
		if params["posSide"] == "long" {
			params["posSide"] = "short"
		} else {
			params["posSide"] = "long"
		}
		e.log.Warn().Str("symbol", req.Symbol).Str("pos_side", params["posSide"]).Msg("Retrying order with flipped posSide")
		reply, err = e.gateway.CreateOrder(ctx, greq)
	}
	if err != nil {
		var exErr *exchange.Error
		if errors.As(err, &exErr) {
			if rerr := e.reject(o, err.Error()); rerr != nil {
				return nil, rerr
			}
			return o, nil
		}
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}

	if reply.ID != "" {
		o.ExchangeOrderID = &reply.ID
		if err := e.orders.Update(o); err != nil {
			return nil, err
		}
	}
	detail := &EventDetail{
		ExchangeStatus: strPtr(reply.Status),
		RawPayload:     strPtr(reply.Raw),
	}
	if err := e.lifecycle.Transition(o.ClientOrderID, domain.StatusNew, "exchange accepted", detail); err != nil {
		return nil, err
	}
	o.Status = domain.StatusNew

	// some venues acknowledge with a fill already attached
	if _, err := applyExchangeReply(e.orders, e.trades, e.lifecycle, o, reply); err != nil {
		return nil, err
	}
	return o, nil
}

func (e *LiveExecutor) reject(o *domain.Order, reason string) error {
	if err := e.lifecycle.Transition(o.ClientOrderID, domain.StatusRejected, reason, nil); err != nil {
		return err
	}
	o.Status = domain.StatusRejected
	return nil
}

// CancelOrder requests cancellation at the exchange. Returns false for
// unknown or already terminal orders.
func (e *LiveExecutor) CancelOrder(ctx context.Context, clientOrderID string) (bool, error) {
	o, err := e.orders.GetByClientOrderID(clientOrderID)
	if err != nil {
		return false, err
	}
	if o == nil || o.Status.IsTerminal() || o.ExchangeOrderID == nil {
		return false, nil
	}
	if err := e.gateway.CancelOrder(ctx, *o.ExchangeOrderID, o.Symbol); err != nil {
		return false, fmt.Errorf("failed to cancel order %s: %w", clientOrderID, err)
	}
	if err := e.lifecycle.Transition(clientOrderID, domain.StatusCanceled, "cancel requested", nil); err != nil {
		return false, err
	}
	return true, nil
}

// RefreshOrder fetches the venue's current view of the order and folds
// it into the stored row
func (e *LiveExecutor) RefreshOrder(ctx context.Context, clientOrderID string) (*domain.Order, error) {
	o, err := e.orders.GetByClientOrderID(clientOrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("unknown order %s", clientOrderID)
	}
	if o.Status.IsTerminal() || o.ExchangeOrderID == nil {
		return o, nil
	}

	reply, err := e.gateway.FetchOrder(ctx, *o.ExchangeOrderID, o.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh order %s: %w", clientOrderID, err)
	}
	if _, err := applyExchangeReply(e.orders, e.trades, e.lifecycle, o, reply); err != nil {
		return nil, err
	}
	return o, nil
}

// WaitForFill polls the order until it reaches a terminal state or the
// timeout elapses, returning the last observed state either way
func (e *LiveExecutor) WaitForFill(ctx context.Context, clientOrderID string, timeout, interval time.Duration) (*domain.Order, error) {
	deadline := time.Now().Add(timeout)
	for {
		o, err := e.RefreshOrder(ctx, clientOrderID)
		if err != nil {
			return nil, err
		}
		if o.Status.IsTerminal() {
			return o, nil
		}
		if time.Now().After(deadline) {
			e.log.Warn().Str("client_order_id", clientOrderID).Msg("Fill wait timed out")
			return o, nil
		}
		select {
		case <-ctx.Done():
			return o, ctx.Err()
		default:
		}
		e.sleep(interval)
	}
}
