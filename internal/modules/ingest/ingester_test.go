package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/exchange"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
)

type fakeGateway struct {
	candles    []domain.Candle
	fetchSince []int64
	fetchErr   error
	funding    *exchange.FundingSnapshot
	ticker     *exchange.Ticker
	oi         *exchange.OpenInterestSnapshot
}

func (f *fakeGateway) FetchOHLCV(_ context.Context, symbol, timeframe string, sinceMs *int64, limit int) ([]domain.Candle, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	since := int64(0)
	if sinceMs != nil {
		since = *sinceMs
	}
	f.fetchSince = append(f.fetchSince, since)

	var out []domain.Candle
	for _, c := range f.candles {
		if c.Symbol == symbol && c.Timeframe == timeframe && c.Timestamp >= since {
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeGateway) FetchFundingRate(context.Context, string) (*exchange.FundingSnapshot, error) {
	if f.funding == nil {
		return nil, errors.New("no funding")
	}
	return f.funding, nil
}

func (f *fakeGateway) FetchTicker(context.Context, string) (*exchange.Ticker, error) {
	if f.ticker == nil {
		return nil, errors.New("no ticker")
	}
	return f.ticker, nil
}

func (f *fakeGateway) FetchOpenInterest(context.Context, string) (*exchange.OpenInterestSnapshot, error) {
	if f.oi == nil {
		return nil, errors.New("no open interest")
	}
	return f.oi, nil
}

func (f *fakeGateway) FetchBalance(context.Context) (*exchange.BalanceSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) FetchPositions(context.Context, []string) ([]exchange.PositionState, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) CreateOrder(context.Context, exchange.OrderRequest) (*exchange.OrderReply, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) CancelOrder(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (f *fakeGateway) FetchOrder(context.Context, string, string) (*exchange.OrderReply, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) FetchOpenOrders(context.Context, string, *int64, int) ([]exchange.OrderReply, error) {
	return nil, nil
}

func (f *fakeGateway) FetchClosedOrders(context.Context, string, *int64, int) ([]exchange.OrderReply, error) {
	return nil, nil
}

func (f *fakeGateway) FetchMyTrades(context.Context, string, *int64, int) ([]exchange.TradeReply, error) {
	return nil, nil
}

func (f *fakeGateway) RateLimitMs() int { return 0 }

func series(symbol, timeframe string, tfMs int64, n int) []domain.Candle {
	candles := make([]domain.Candle, n)
	for i := range candles {
		candles[i] = domain.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: int64(i) * tfMs,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100.5,
			Volume:    10,
		}
	}
	return candles
}

func newTestIngester(t *testing.T, gw *fakeGateway) (*Ingester, *database.DB) {
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
	ing := NewIngester(gw, market, NewRunRepository(db, log), log)
	ing.sleep = func(time.Duration) {}
	return ing, db
}

func runStatus(t *testing.T, db *database.DB) (status string, rows int) {
	t.Helper()
	err := db.QueryRow(`SELECT status, rows_inserted FROM ingestion_runs ORDER BY id DESC LIMIT 1`).Scan(&status, &rows)
	require.NoError(t, err)
	return status, rows
}

func lastRun(t *testing.T, db *database.DB) (dataType, status string, errMsg *string) {
	t.Helper()
	err := db.QueryRow(`SELECT data_type, status, error FROM ingestion_runs ORDER BY id DESC LIMIT 1`).Scan(&dataType, &status, &errMsg)
	require.NoError(t, err)
	return dataType, status, errMsg
}

func TestIngestOHLCVPaginates(t *testing.T) {
	tfMs := int64(15 * 60 * 1000)
	gw := &fakeGateway{candles: series("BTC/USDT:USDT", "15m", tfMs, 250)}
	ing, db := newTestIngester(t, gw)

	since := int64(0)
	n, err := ing.IngestOHLCV(context.Background(), "BTC/USDT:USDT", "15m", &since, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	// full pages keep fetching past the last bar of each page
	require.Len(t, gw.fetchSince, 3)
	assert.Equal(t, int64(0), gw.fetchSince[0])
	assert.Equal(t, 100*tfMs, gw.fetchSince[1])
	assert.Equal(t, 200*tfMs, gw.fetchSince[2])

	status, rows := runStatus(t, db)
	assert.Equal(t, "success", status)
	assert.Equal(t, 250, rows)

	stored, err := ing.market.Candles.GetRecent("BTC/USDT:USDT", "15m", 300)
	require.NoError(t, err)
	assert.Len(t, stored, 250)
}

func TestIngestOHLCVResumesFromHighWaterMark(t *testing.T) {
	tfMs := int64(15 * 60 * 1000)
	gw := &fakeGateway{candles: series("BTC/USDT:USDT", "15m", tfMs, 10)}
	ing, _ := newTestIngester(t, gw)

	_, err := ing.IngestOHLCV(context.Background(), "BTC/USDT:USDT", "15m", nil, false, 0)
	require.NoError(t, err)

	gw.fetchSince = nil
	n, err := ing.IngestOHLCV(context.Background(), "BTC/USDT:USDT", "15m", nil, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.Len(t, gw.fetchSince, 1)
	assert.Equal(t, 10*tfMs, gw.fetchSince[0])
}

func TestIngestOHLCVRecordsFailure(t *testing.T) {
	gw := &fakeGateway{fetchErr: errors.New("exchange down")}
	ing, db := newTestIngester(t, gw)

	since := int64(0)
	_, err := ing.IngestOHLCV(context.Background(), "BTC/USDT:USDT", "15m", &since, true, 0)
	require.Error(t, err)

	status, rows := runStatus(t, db)
	assert.Equal(t, "failed", status)
	assert.Equal(t, 0, rows)
}

func TestIngestFundingRateSkipsMissingRate(t *testing.T) {
	gw := &fakeGateway{funding: &exchange.FundingSnapshot{Timestamp: 1000}}
	ing, db := newTestIngester(t, gw)

	require.NoError(t, ing.IngestFundingRate(context.Background(), "BTC/USDT:USDT"))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM funding_rates`).Scan(&count))
	assert.Equal(t, 0, count)

	dataType, status, errMsg := lastRun(t, db)
	assert.Equal(t, "funding_rate", dataType)
	assert.Equal(t, "skipped", status)
	require.NotNil(t, errMsg)
	assert.Equal(t, "missing fundingRate", *errMsg)
}

func TestIngestOpenInterestSkipsMissingValue(t *testing.T) {
	gw := &fakeGateway{oi: &exchange.OpenInterestSnapshot{Timestamp: 1000}}
	ing, db := newTestIngester(t, gw)

	require.NoError(t, ing.IngestOpenInterest(context.Background(), "BTC/USDT:USDT"))

	dataType, status, errMsg := lastRun(t, db)
	assert.Equal(t, "open_interest", dataType)
	assert.Equal(t, "skipped", status)
	require.NotNil(t, errMsg)
	assert.Equal(t, "missing openInterest", *errMsg)
}

func TestIngestPriceSnapshot(t *testing.T) {
	last := 50000.0
	gw := &fakeGateway{ticker: &exchange.Ticker{Timestamp: 1_700_000_000_000, Last: &last}}
	ing, db := newTestIngester(t, gw)

	require.NoError(t, ing.IngestPriceSnapshot(context.Background(), "BTC/USDT:USDT"))

	snap, err := ing.market.Prices.Latest("BTC/USDT:USDT")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.NotNil(t, snap.LastPrice)
	assert.Equal(t, 50000.0, *snap.LastPrice)
	assert.Nil(t, snap.MarkPrice)

	dataType, status, errMsg := lastRun(t, db)
	assert.Equal(t, "price_snapshot", dataType)
	assert.Equal(t, "success", status)
	assert.Nil(t, errMsg)
}

func TestJobRequestsOverlapWindow(t *testing.T) {
	tfMs := int64(15 * 60 * 1000)
	gw := &fakeGateway{candles: series("BTC/USDT:USDT", "15m", tfMs, 10)}
	ing, _ := newTestIngester(t, gw)

	since := int64(0)
	_, err := ing.IngestOHLCV(context.Background(), "BTC/USDT:USDT", "15m", &since, true, 0)
	require.NoError(t, err)

	job := NewJob(ing, []string{"BTC/USDT:USDT"}, []string{"15m"}, 2, zerolog.Nop())
	gw.fetchSince = nil
	require.NoError(t, job.Run())

	require.NotEmpty(t, gw.fetchSince)
	assert.Equal(t, 9*tfMs-2*tfMs, gw.fetchSince[0])
}
