package allocation

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/modules/decision"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
)

func newTestAllocator(t *testing.T, leverage, diffThreshold, minNotional float64) (*Allocator, *marketdata.Service) {
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
	return NewAllocator(market, leverage, diffThreshold, minNotional, log), market
}

func setPrice(t *testing.T, market *marketdata.Service, symbol string, price float64) {
	t.Helper()
	require.NoError(t, market.Prices.Insert(domain.PriceSnapshot{
		Symbol:    symbol,
		Timestamp: 1000,
		LastPrice: &price,
	}))
}

func TestBuildOrdersNetsAllocationsIntoOneOrder(t *testing.T) {
	alloc, market := newTestAllocator(t, 1.0, 10, 10)
	setPrice(t, market, "BTC/USDT:USDT", 100)

	positions := []domain.Position{
		{Symbol: "BTC/USDT:USDT", Side: "long", Size: 30, EntryPrice: 90},
	}
	allocations := []decision.Allocation{
		{Strategy: "ema_trend", Score: 0.8, Weight: 0.6},
		{Strategy: "funding_rate_arbitrage", Score: 0.56, Weight: 0.4},
	}

	orders, plan, err := alloc.BuildOrders("BTC/USDT:USDT", 10000, allocations, positions)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	require.Len(t, orders, 1)

	// target 6000 + 4000 = 10000 against current 30 * 100 = 3000
	assert.Equal(t, "order", plan[0].Action)
	assert.InDelta(t, 6000.0, plan[0].TargetNotional, 1e-9)
	assert.InDelta(t, 4000.0, plan[1].TargetNotional, 1e-9)
	assert.InDelta(t, 3000.0, plan[0].CurrentNotional, 1e-9)
	assert.InDelta(t, 7000.0, plan[0].Diff, 1e-9)

	assert.Equal(t, domain.SideBuy, orders[0].Side)
	assert.Equal(t, domain.TypeMarket, orders[0].Type)
	assert.InDelta(t, 70.0, orders[0].Quantity, 1e-9)
	assert.Equal(t, "ema_trend", orders[0].Strategy)
	assert.InDelta(t, 0.8, orders[0].Confidence, 1e-9)
	assert.True(t, orders[0].SignalOK)
}

func TestBuildOrdersSellsExcessExposure(t *testing.T) {
	alloc, market := newTestAllocator(t, 1.0, 10, 10)
	setPrice(t, market, "BTC/USDT:USDT", 100)

	positions := []domain.Position{
		{Symbol: "BTC/USDT:USDT", Side: "long", Size: 70, EntryPrice: 90},
	}
	allocations := []decision.Allocation{{Strategy: "ema_trend", Score: 0.8, Weight: 0.5}}

	orders, _, err := alloc.BuildOrders("BTC/USDT:USDT", 10000, allocations, positions)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.SideSell, orders[0].Side)
	assert.InDelta(t, 20.0, orders[0].Quantity, 1e-9)
}

func TestBuildOrdersSkipsSmallDiff(t *testing.T) {
	alloc, market := newTestAllocator(t, 1.0, 10, 10)
	setPrice(t, market, "BTC/USDT:USDT", 100)

	positions := []domain.Position{
		{Symbol: "BTC/USDT:USDT", Side: "long", Size: 10, EntryPrice: 100},
	}
	allocations := []decision.Allocation{{Strategy: "a", Score: 0.8, Weight: 0.1005}}

	// target 1005 vs current 1000, diff 5 under threshold 10
	orders, plan, err := alloc.BuildOrders("BTC/USDT:USDT", 10000, allocations, positions)
	require.NoError(t, err)
	assert.Empty(t, orders)
	require.Len(t, plan, 1)
	assert.Equal(t, "skip_small_diff", plan[0].Action)
}

func TestBuildOrdersSkipsBelowMinNotional(t *testing.T) {
	alloc, market := newTestAllocator(t, 1.0, 10, 50)
	setPrice(t, market, "BTC/USDT:USDT", 100)

	positions := []domain.Position{
		{Symbol: "BTC/USDT:USDT", Side: "long", Size: 10, EntryPrice: 100},
	}
	allocations := []decision.Allocation{{Strategy: "a", Score: 0.8, Weight: 0.104}}

	// diff 40 clears the threshold but not the exchange minimum
	orders, plan, err := alloc.BuildOrders("BTC/USDT:USDT", 10000, allocations, positions)
	require.NoError(t, err)
	assert.Empty(t, orders)
	require.Len(t, plan, 1)
	assert.Equal(t, "skip_below_min_notional", plan[0].Action)
}

func TestBuildOrdersZeroEquity(t *testing.T) {
	alloc, _ := newTestAllocator(t, 1.0, 10, 10)

	orders, plan, err := alloc.BuildOrders("BTC/USDT:USDT", 0, []decision.Allocation{{Strategy: "a", Weight: 1}}, nil)
	require.NoError(t, err)
	assert.Nil(t, orders)
	assert.Nil(t, plan)
}

func TestBuildOrdersAppliesLeverage(t *testing.T) {
	alloc, market := newTestAllocator(t, 3.0, 10, 10)
	setPrice(t, market, "BTC/USDT:USDT", 100)

	allocations := []decision.Allocation{{Strategy: "a", Score: 0.8, Weight: 1.0}}
	orders, _, err := alloc.BuildOrders("BTC/USDT:USDT", 1000, allocations, nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.InDelta(t, 30.0, orders[0].Quantity, 1e-9)
}

func TestBuildOrdersRequiresPrice(t *testing.T) {
	alloc, _ := newTestAllocator(t, 1.0, 10, 10)

	_, _, err := alloc.BuildOrders("BTC/USDT:USDT", 1000, []decision.Allocation{{Strategy: "a", Weight: 1}}, nil)
	assert.Error(t, err)
}

func TestBuildOrdersShortPositionCountsNegative(t *testing.T) {
	alloc, market := newTestAllocator(t, 1.0, 10, 10)
	setPrice(t, market, "BTC/USDT:USDT", 100)

	positions := []domain.Position{
		{Symbol: "BTC/USDT:USDT", Side: "short", Size: 20, EntryPrice: 100},
	}
	allocations := []decision.Allocation{{Strategy: "a", Score: 0.8, Weight: 0.2}}

	orders, _, err := alloc.BuildOrders("BTC/USDT:USDT", 10000, allocations, positions)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	// target 2000 vs current -2000: buy 4000 notional
	assert.Equal(t, domain.SideBuy, orders[0].Side)
	assert.InDelta(t, 40.0, orders[0].Quantity, 1e-9)
}
