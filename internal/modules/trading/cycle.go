// Package trading drives the periodic cycle: sync, decide, allocate,
// execute.
package trading

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/modules/allocation"
	"github.com/aristath/alpha-arena/internal/modules/decision"
	"github.com/aristath/alpha-arena/internal/modules/execution"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
)

// Decider produces allocation decisions. The engine is the standard
// implementation; alternative sources must satisfy the same contract.
type Decider interface {
	Decide(symbol, timeframe string) (*decision.Outcome, error)
}

// Options holds the per-cycle tunables
type Options struct {
	Symbol         string
	Timeframe      string
	Live           bool
	WaitFill       bool
	FillTimeout    time.Duration
	FillInterval   time.Duration
	SyncAccount    bool
	EquityOverride float64
}

// Cycle runs one trading pass end to end. Sync failures are logged and
// the pass continues; a missing equity figure aborts the pass.
type Cycle struct {
	market    *marketdata.Service
	decider   Decider
	allocator *allocation.Allocator
	executor  execution.Executor
	tracker   *execution.OrderTracker // nil when simulated
	account   *execution.AccountSyncer
	positions *execution.PositionRepository
	opts      Options
	log       zerolog.Logger
}

// NewCycle creates a trading cycle
func NewCycle(market *marketdata.Service, decider Decider, allocator *allocation.Allocator, executor execution.Executor, tracker *execution.OrderTracker, account *execution.AccountSyncer, positions *execution.PositionRepository, opts Options, log zerolog.Logger) *Cycle {
	return &Cycle{
		market:    market,
		decider:   decider,
		allocator: allocator,
		executor:  executor,
		tracker:   tracker,
		account:   account,
		positions: positions,
		opts:      opts,
		log:       log.With().Str("component", "trading_cycle").Str("symbol", opts.Symbol).Logger(),
	}
}

// Run executes one full cycle for the configured symbol
func (c *Cycle) Run(ctx context.Context) error {
	c.syncState(ctx)

	outcome, err := c.decider.Decide(c.opts.Symbol, c.opts.Timeframe)
	if err != nil {
		return err
	}
	if outcome == nil || !outcome.Accepted || len(outcome.Allocations) == 0 {
		reason := "no decision"
		if outcome != nil {
			reason = outcome.Reason
		}
		c.log.Info().Str("reason", reason).Msg("Holding this cycle")
		return nil
	}

	equity := c.resolveEquity()
	if equity <= 0 {
		c.log.Warn().Msg("No equity figure available, skipping cycle")
		return nil
	}

	positions, err := c.positions.ListForSymbol(c.opts.Symbol)
	if err != nil {
		return err
	}

	orders, plan, err := c.allocator.BuildOrders(c.opts.Symbol, equity, outcome.Allocations, positions)
	if err != nil {
		return err
	}
	c.logPlan(plan)
	if len(orders) == 0 {
		c.log.Info().Msg("No rebalancing needed")
		return nil
	}

	for _, po := range orders {
		if err := c.execute(ctx, po); err != nil {
			return err
		}
	}
	return nil
}

// syncState refreshes account and order state before deciding. Both
// steps are best-effort.
func (c *Cycle) syncState(ctx context.Context) {
	if !c.opts.Live {
		return
	}
	if c.opts.SyncAccount && c.account != nil {
		if err := c.account.Sync(ctx, []string{c.opts.Symbol}); err != nil {
			c.log.Warn().Err(err).Msg("Account sync failed")
		}
	}
	if c.tracker != nil {
		if _, err := c.tracker.SyncOrders(ctx, nil); err != nil {
			c.log.Warn().Err(err).Msg("Order sync failed")
		}
	}
}

func (c *Cycle) resolveEquity() float64 {
	if c.opts.EquityOverride > 0 {
		return c.opts.EquityOverride
	}
	equity, err := c.market.EquityUSDT()
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read equity")
		return 0
	}
	if equity == nil {
		return 0
	}
	return *equity
}

func (c *Cycle) logPlan(plan []allocation.PlanLine) {
	if len(plan) == 0 {
		return
	}
	payload, err := json.Marshal(plan)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to encode plan")
		return
	}
	c.log.Info().RawJSON("plan", payload).Msg("Allocation plan")
}

func (c *Cycle) execute(ctx context.Context, po allocation.PlannedOrder) error {
	req := execution.Request{
		Symbol:     po.Symbol,
		Side:       po.Side,
		Type:       po.Type,
		Quantity:   po.Quantity,
		Confidence: &po.Confidence,
		SignalOK:   &po.SignalOK,
	}
	order, err := c.executor.CreateOrder(ctx, req)
	if err != nil {
		return err
	}
	c.log.Info().
		Str("client_order_id", order.ClientOrderID).
		Str("side", string(order.Side)).
		Float64("quantity", order.Amount).
		Str("status", string(order.Status)).
		Msg("Order placed")

	if !c.opts.Live || order.Status.IsTerminal() {
		return nil
	}
	if c.opts.WaitFill {
		if _, err := c.executor.WaitForFill(ctx, order.ClientOrderID, c.opts.FillTimeout, c.opts.FillInterval); err != nil {
			return err
		}
	}
	if c.opts.SyncAccount && c.account != nil {
		if err := c.account.Sync(ctx, []string{c.opts.Symbol}); err != nil {
			c.log.Warn().Err(err).Msg("Post-fill account sync failed")
		}
	}
	return nil
}
