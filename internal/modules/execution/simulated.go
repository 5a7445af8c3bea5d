package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
	"github.com/aristath/alpha-arena/internal/modules/risk"
)

// SimulatedExecutor fills every accepted order immediately at the
// reference price and maintains a local net position per symbol.
type SimulatedExecutor struct {
	orders    *OrderRepository
	trades    *TradeRepository
	positions *PositionRepository
	lifecycle *Lifecycle
	risk      *risk.Manager
	market    *marketdata.Service
	log       zerolog.Logger
}

// NewSimulatedExecutor creates a simulated executor
func NewSimulatedExecutor(orders *OrderRepository, trades *TradeRepository, positions *PositionRepository, lifecycle *Lifecycle, riskMgr *risk.Manager, market *marketdata.Service, log zerolog.Logger) *SimulatedExecutor {
	return &SimulatedExecutor{
		orders:    orders,
		trades:    trades,
		positions: positions,
		lifecycle: lifecycle,
		risk:      riskMgr,
		market:    market,
		log:       log.With().Str("component", "sim_executor").Logger(),
	}
}

// CreateOrder persists the order, runs the risk chain and, if allowed,
// fills it in full at the effective price
func (e *SimulatedExecutor) CreateOrder(ctx context.Context, req Request) (*domain.Order, error) {
	price := req.Price
	if price == nil {
		last, err := e.market.LastPrice(req.Symbol)
		if err != nil {
			return nil, err
		}
		price = last
	}

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
	if price == nil || *price <= 0 {
		if err := e.reject(o, "no reference price for fill"); err != nil {
			return nil, err
		}
		return o, nil
	}

	exchangeID := "SIM-" + o.ClientOrderID
	o.ExchangeOrderID = &exchangeID
	if err := e.orders.Update(o); err != nil {
		return nil, err
	}
	if err := e.lifecycle.Transition(o.ClientOrderID, domain.StatusNew, "exchange accepted", nil); err != nil {
		return nil, err
	}
	o.Status = domain.StatusNew

	// immediate full fill at the reference price
	filled := o.Amount
	remaining := 0.0
	o.FilledAmount = &filled
	o.RemainingAmount = &remaining
	o.AveragePrice = price
	if err := e.orders.Update(o); err != nil {
		return nil, err
	}
	detail := &EventDetail{FillQty: &filled, FillPrice: price}
	if err := e.lifecycle.Transition(o.ClientOrderID, domain.StatusFilled, "ORDER_FILLED", detail); err != nil {
		return nil, err
	}
	o.Status = domain.StatusFilled

	if err := persistTradeFromReply(e.trades, o, nil); err != nil {
		return nil, err
	}
	if err := e.positions.ApplyFill(o.Symbol, o.Side, o.Amount, *price); err != nil {
		return nil, err
	}

	e.log.Info().
		Str("symbol", o.Symbol).
		Str("side", string(o.Side)).
		Float64("amount", o.Amount).
		Float64("price", *price).
		Msg("Simulated fill")
	return o, nil
}

func (e *SimulatedExecutor) reject(o *domain.Order, reason string) error {
	if err := e.lifecycle.Transition(o.ClientOrderID, domain.StatusRejected, reason, nil); err != nil {
		return err
	}
	o.Status = domain.StatusRejected
	return nil
}

// CancelOrder is a no-op for simulated orders, they are always terminal
func (e *SimulatedExecutor) CancelOrder(ctx context.Context, clientOrderID string) (bool, error) {
	o, err := e.orders.GetByClientOrderID(clientOrderID)
	if err != nil {
		return false, err
	}
	if o == nil || o.Status.IsTerminal() {
		return false, nil
	}
	if err := e.lifecycle.Transition(clientOrderID, domain.StatusCanceled, "cancel requested", nil); err != nil {
		return false, err
	}
	return true, nil
}

// RefreshOrder returns the stored order, there is no exchange to consult
func (e *SimulatedExecutor) RefreshOrder(ctx context.Context, clientOrderID string) (*domain.Order, error) {
	o, err := e.orders.GetByClientOrderID(clientOrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("unknown order %s", clientOrderID)
	}
	return o, nil
}

// WaitForFill returns immediately, simulated orders fill synchronously
func (e *SimulatedExecutor) WaitForFill(ctx context.Context, clientOrderID string, timeout, interval time.Duration) (*domain.Order, error) {
	return e.RefreshOrder(ctx, clientOrderID)
}
