package marketdata

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	return NewService(
		NewCandleRepository(db, log),
		NewFundingRepository(db, log),
		NewPriceRepository(db, log),
		NewOpenInterestRepository(db, log),
		NewBalanceRepository(db, log),
		log,
	)
}

func candle(ts int64, close float64) domain.Candle {
	return domain.Candle{
		Symbol:    "BTC/USDT:USDT",
		Timeframe: "15m",
		Timestamp: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    1,
	}
}

func TestCandleInsertIsIdempotent(t *testing.T) {
	svc := newTestService(t)

	batch := []domain.Candle{candle(0, 100), candle(900000, 101)}
	n, err := svc.Candles.InsertBatch(batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// same rows again plus one new
	_, err = svc.Candles.InsertBatch(append(batch, candle(1800000, 102)))
	require.NoError(t, err)

	candles, err := svc.Candles.GetRecent("BTC/USDT:USDT", "15m", 10)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, int64(0), candles[0].Timestamp)
	assert.Equal(t, int64(1800000), candles[2].Timestamp)

	ts, err := svc.Candles.LatestTimestamp("BTC/USDT:USDT", "15m")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, int64(1800000), *ts)
}

func TestLatestTimestampEmptySeries(t *testing.T) {
	svc := newTestService(t)

	ts, err := svc.Candles.LatestTimestamp("BTC/USDT:USDT", "15m")
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestCloseBefore(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Candles.InsertBatch([]domain.Candle{candle(0, 100), candle(900000, 101)})
	require.NoError(t, err)

	close, err := svc.Candles.CloseBefore("BTC/USDT:USDT", "15m", 900000)
	require.NoError(t, err)
	require.NotNil(t, close)
	assert.Equal(t, 100.0, *close)

	close, err = svc.Candles.CloseBefore("BTC/USDT:USDT", "15m", 0)
	require.NoError(t, err)
	assert.Nil(t, close)
}

func TestLastPriceFallsBackToHourlyClose(t *testing.T) {
	svc := newTestService(t)

	price, err := svc.LastPrice("BTC/USDT:USDT")
	require.NoError(t, err)
	assert.Nil(t, price)

	hourly := candle(3600000, 50000)
	hourly.Timeframe = "1h"
	_, err = svc.Candles.InsertBatch([]domain.Candle{hourly})
	require.NoError(t, err)

	price, err = svc.LastPrice("BTC/USDT:USDT")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 50000.0, *price)

	last := 51000.0
	require.NoError(t, svc.Prices.Insert(domain.PriceSnapshot{
		Symbol:    "BTC/USDT:USDT",
		Timestamp: 3700000,
		LastPrice: &last,
	}))

	price, err = svc.LastPrice("BTC/USDT:USDT")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 51000.0, *price)
}

func TestCurrencyPriceUSDT(t *testing.T) {
	svc := newTestService(t)

	price, err := svc.CurrencyPriceUSDT("USDT")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 1.0, *price)

	// mark price beats last price for valuation
	last, mark := 3000.0, 3001.0
	require.NoError(t, svc.Prices.Insert(domain.PriceSnapshot{
		Symbol:    "ETH/USDT:USDT",
		Timestamp: 1000,
		LastPrice: &last,
		MarkPrice: &mark,
	}))

	price, err = svc.CurrencyPriceUSDT("eth")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 3001.0, *price)

	price, err = svc.CurrencyPriceUSDT("XRP")
	require.NoError(t, err)
	assert.Nil(t, price)
}

func TestEquityUSDT(t *testing.T) {
	svc := newTestService(t)

	equity, err := svc.EquityUSDT()
	require.NoError(t, err)
	assert.Nil(t, equity)

	free := 9000.0
	require.NoError(t, svc.Balances.InsertBatch([]domain.Balance{
		{Currency: "USDT", Timestamp: 1000, Total: 10000, Free: &free},
		{Currency: "USDT", Timestamp: 2000, Total: 12000},
	}))

	equity, err = svc.EquityUSDT()
	require.NoError(t, err)
	require.NotNil(t, equity)
	assert.Equal(t, 12000.0, *equity)
}

func TestFundingRecentAscending(t *testing.T) {
	svc := newTestService(t)

	for i, rate := range []float64{0.001, 0.002, 0.003} {
		require.NoError(t, svc.Funding.Insert(domain.FundingRate{
			Symbol:      "BTC/USDT:USDT",
			Timestamp:   int64(i) * 1000,
			FundingRate: rate,
		}))
	}

	rates, err := svc.Funding.Recent("BTC/USDT:USDT", 2)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, 0.002, rates[0].FundingRate)
	assert.Equal(t, 0.003, rates[1].FundingRate)
}
