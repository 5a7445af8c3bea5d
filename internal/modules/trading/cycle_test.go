package trading

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/modules/allocation"
	"github.com/aristath/alpha-arena/internal/modules/decision"
	"github.com/aristath/alpha-arena/internal/modules/execution"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
	"github.com/aristath/alpha-arena/internal/modules/risk"
)

type stubDecider struct {
	outcome *decision.Outcome
	err     error
	calls   int
}

func (d *stubDecider) Decide(symbol, timeframe string) (*decision.Outcome, error) {
	d.calls++
	return d.outcome, d.err
}

type cycleEnv struct {
	db        *database.DB
	market    *marketdata.Service
	orders    *execution.OrderRepository
	positions *execution.PositionRepository
	executor  *execution.SimulatedExecutor
	allocator *allocation.Allocator
}

func newCycleEnv(t *testing.T) *cycleEnv {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	market := marketdata.NewService(
		marketdata.NewCandleRepository(db, log),
		marketdata.NewFundingRepository(db, log),
		marketdata.NewPriceRepository(db, log),
		marketdata.NewOpenInterestRepository(db, log),
		marketdata.NewBalanceRepository(db, log),
		log,
	)
	orders := execution.NewOrderRepository(db, log)
	trades := execution.NewTradeRepository(db, log)
	positions := execution.NewPositionRepository(db, log)
	lifecycle := execution.NewLifecycle(db, log)
	riskMgr := risk.NewManager(risk.DefaultRules(100000, 3.0, 0.0), risk.NewRepository(db, log), log)

	return &cycleEnv{
		db:        db,
		market:    market,
		orders:    orders,
		positions: positions,
		executor:  execution.NewSimulatedExecutor(orders, trades, positions, lifecycle, riskMgr, market, log),
		allocator: allocation.NewAllocator(market, 1.0, 10, 10, log),
	}
}

func (env *cycleEnv) seedMarket(t *testing.T, price, equity float64) {
	t.Helper()
	require.NoError(t, env.market.Prices.Insert(domain.PriceSnapshot{
		Symbol:    "BTC/USDT:USDT",
		Timestamp: 1000,
		LastPrice: &price,
	}))
	require.NoError(t, env.market.Balances.InsertBatch([]domain.Balance{
		{Currency: "USDT", Timestamp: 1000, Total: equity},
	}))
}

func newCycle(env *cycleEnv, decider Decider, opts Options) *Cycle {
	if opts.Symbol == "" {
		opts.Symbol = "BTC/USDT:USDT"
	}
	if opts.Timeframe == "" {
		opts.Timeframe = "15m"
	}
	return NewCycle(env.market, decider, env.allocator, env.executor, nil, nil, env.positions, opts, zerolog.Nop())
}

func acceptedOutcome(weights map[string]float64) *decision.Outcome {
	var allocations []decision.Allocation
	for strategy, weight := range weights {
		allocations = append(allocations, decision.Allocation{
			Strategy: strategy,
			Score:    0.8,
			Weight:   weight,
		})
	}
	return &decision.Outcome{
		Regime:      decision.RegimeStrongTrend,
		Allocations: allocations,
		Accepted:    true,
	}
}

func TestCycleExecutesRebalancingOrder(t *testing.T) {
	env := newCycleEnv(t)
	env.seedMarket(t, 100, 10000)
	decider := &stubDecider{outcome: acceptedOutcome(map[string]float64{"ema_trend": 1.0})}

	cycle := newCycle(env, decider, Options{})
	require.NoError(t, cycle.Run(context.Background()))

	filled, err := env.orders.ListByStatus(domain.StatusFilled)
	require.NoError(t, err)
	require.Len(t, filled, 1)
	assert.Equal(t, domain.SideBuy, filled[0].Side)
	assert.InDelta(t, 100.0, filled[0].Amount, 1e-9)

	pos, err := env.positions.Get("BTC/USDT:USDT", "long")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 100.0, pos.Size, 1e-9)
}

func TestCycleHoldsWhenDecisionRejected(t *testing.T) {
	env := newCycleEnv(t)
	env.seedMarket(t, 100, 10000)
	decider := &stubDecider{outcome: &decision.Outcome{Accepted: false, Reason: "no_strategy_selected"}}

	cycle := newCycle(env, decider, Options{})
	require.NoError(t, cycle.Run(context.Background()))

	orders, err := env.orders.ListByStatus(domain.StatusFilled, domain.StatusNew, domain.StatusCreated)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCycleAbortsWithoutEquity(t *testing.T) {
	env := newCycleEnv(t)
	price := 100.0
	require.NoError(t, env.market.Prices.Insert(domain.PriceSnapshot{
		Symbol: "BTC/USDT:USDT", Timestamp: 1000, LastPrice: &price,
	}))
	decider := &stubDecider{outcome: acceptedOutcome(map[string]float64{"ema_trend": 1.0})}

	cycle := newCycle(env, decider, Options{})
	require.NoError(t, cycle.Run(context.Background()))

	orders, err := env.orders.ListByStatus(domain.StatusFilled, domain.StatusNew, domain.StatusCreated)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCycleUsesEquityOverride(t *testing.T) {
	env := newCycleEnv(t)
	price := 100.0
	require.NoError(t, env.market.Prices.Insert(domain.PriceSnapshot{
		Symbol: "BTC/USDT:USDT", Timestamp: 1000, LastPrice: &price,
	}))
	decider := &stubDecider{outcome: acceptedOutcome(map[string]float64{"ema_trend": 1.0})}

	cycle := newCycle(env, decider, Options{EquityOverride: 2000})
	require.NoError(t, cycle.Run(context.Background()))

	filled, err := env.orders.ListByStatus(domain.StatusFilled)
	require.NoError(t, err)
	require.Len(t, filled, 1)
	assert.InDelta(t, 20.0, filled[0].Amount, 1e-9)
}

func TestCycleSkipsSmallDiffs(t *testing.T) {
	env := newCycleEnv(t)
	env.seedMarket(t, 100, 10000)
	// already at the target exposure
	require.NoError(t, env.positions.Upsert(domain.Position{
		Symbol: "BTC/USDT:USDT", Side: "long", Size: 100, EntryPrice: 100, UpdatedAt: 1,
	}))
	decider := &stubDecider{outcome: acceptedOutcome(map[string]float64{"ema_trend": 1.0})}

	cycle := newCycle(env, decider, Options{})
	require.NoError(t, cycle.Run(context.Background()))

	orders, err := env.orders.ListByStatus(domain.StatusFilled, domain.StatusNew, domain.StatusCreated)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCyclePropagatesDeciderError(t *testing.T) {
	env := newCycleEnv(t)
	env.seedMarket(t, 100, 10000)
	decider := &stubDecider{err: assert.AnError}

	cycle := newCycle(env, decider, Options{})
	assert.Error(t, cycle.Run(context.Background()))
}
