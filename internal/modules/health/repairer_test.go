package health

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

type stubGateway struct {
	candles  []domain.Candle
	fetchErr error
}

func (s *stubGateway) FetchOHLCV(_ context.Context, symbol, timeframe string, sinceMs *int64, limit int) ([]domain.Candle, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	since := int64(0)
	if sinceMs != nil {
		since = *sinceMs
	}
	var out []domain.Candle
	for _, c := range s.candles {
		if c.Symbol == symbol && c.Timeframe == timeframe && c.Timestamp >= since {
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *stubGateway) FetchFundingRate(context.Context, string) (*exchange.FundingSnapshot, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) FetchTicker(context.Context, string) (*exchange.Ticker, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) FetchOpenInterest(context.Context, string) (*exchange.OpenInterestSnapshot, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) FetchBalance(context.Context) (*exchange.BalanceSnapshot, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) FetchPositions(context.Context, []string) ([]exchange.PositionState, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) CreateOrder(context.Context, exchange.OrderRequest) (*exchange.OrderReply, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) CancelOrder(context.Context, string, string) error {
	return errors.New("not implemented")
}
func (s *stubGateway) FetchOrder(context.Context, string, string) (*exchange.OrderReply, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) FetchOpenOrders(context.Context, string, *int64, int) ([]exchange.OrderReply, error) {
	return nil, nil
}
func (s *stubGateway) FetchClosedOrders(context.Context, string, *int64, int) ([]exchange.OrderReply, error) {
	return nil, nil
}
func (s *stubGateway) FetchMyTrades(context.Context, string, *int64, int) ([]exchange.TradeReply, error) {
	return nil, nil
}
func (s *stubGateway) RateLimitMs() int { return 0 }

func newTestRepairer(t *testing.T, gw *stubGateway) (*Repairer, *marketdata.CandleRepository, *Repository) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	candles := marketdata.NewCandleRepository(db, log)
	repo := NewRepository(db, log)
	repairer := NewRepairer(gw, candles, repo, log)
	repairer.sleep = func(time.Duration) {}
	return repairer, candles, repo
}

func bar(ts int64, close float64) domain.Candle {
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

func TestRepairRefetch(t *testing.T) {
	gw := &stubGateway{candles: []domain.Candle{
		bar(900000, 101), bar(1800000, 102), bar(2700000, 103), bar(3600000, 104),
	}}
	repairer, candles, repo := newTestRepairer(t, gw)

	job, err := repairer.Repair(context.Background(), "BTC/USDT:USDT", "15m", 900000, 2700000, ModeRefetch)
	require.NoError(t, err)
	assert.Equal(t, JobDone, job.Status)
	assert.Equal(t, 3, job.RepairedBars)

	stored, err := candles.GetRange("BTC/USDT:USDT", "15m", 0, 3600000)
	require.NoError(t, err)
	// the bar past the range end stays out
	assert.Len(t, stored, 3)

	events, err := repo.EventsFor("BTC/USDT:USDT", "15m", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventRepair, events[0].EventType)
	assert.Equal(t, SeverityLow, events[0].Severity)
	require.NotNil(t, events[0].ExpectedBars)
	assert.Equal(t, 3, *events[0].ExpectedBars)
	require.NotNil(t, events[0].RepairJobID)
	assert.Equal(t, job.JobID, *events[0].RepairJobID)
}

func TestRepairRefetchIsIdempotent(t *testing.T) {
	gw := &stubGateway{candles: []domain.Candle{bar(900000, 101), bar(1800000, 102)}}
	repairer, candles, _ := newTestRepairer(t, gw)

	_, err := repairer.Repair(context.Background(), "BTC/USDT:USDT", "15m", 900000, 1800000, ModeRefetch)
	require.NoError(t, err)
	_, err = repairer.Repair(context.Background(), "BTC/USDT:USDT", "15m", 900000, 1800000, ModeRefetch)
	require.NoError(t, err)

	stored, err := candles.GetRange("BTC/USDT:USDT", "15m", 0, 1800000)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRepairFill(t *testing.T) {
	repairer, candles, _ := newTestRepairer(t, &stubGateway{})
	_, err := candles.InsertBatch([]domain.Candle{bar(0, 100)})
	require.NoError(t, err)

	job, err := repairer.Repair(context.Background(), "BTC/USDT:USDT", "15m", 900000, 2700000, ModeFill)
	require.NoError(t, err)
	assert.Equal(t, 3, job.RepairedBars)

	stored, err := candles.GetRange("BTC/USDT:USDT", "15m", 900000, 2700000)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, c := range stored {
		assert.Equal(t, 100.0, c.Close)
		assert.Equal(t, 100.0, c.Open)
		assert.Equal(t, 0.0, c.Volume)
	}
}

func TestRepairFillWithoutAnchorFails(t *testing.T) {
	repairer, _, repo := newTestRepairer(t, &stubGateway{})

	_, err := repairer.Repair(context.Background(), "BTC/USDT:USDT", "15m", 900000, 2700000, ModeFill)
	require.Error(t, err)

	events, err := repo.EventsFor("BTC/USDT:USDT", "15m", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventRepair, events[0].EventType)
	assert.Equal(t, SeverityHigh, events[0].Severity)
}

func TestRepairRefetchFailureMarksJobFailed(t *testing.T) {
	repairer, _, repo := newTestRepairer(t, &stubGateway{fetchErr: errors.New("exchange down")})

	_, err := repairer.Repair(context.Background(), "BTC/USDT:USDT", "15m", 900000, 2700000, ModeRefetch)
	require.Error(t, err)

	events, err := repo.EventsFor("BTC/USDT:USDT", "15m", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, SeverityHigh, events[0].Severity)
}

func TestRepairUnknownMode(t *testing.T) {
	repairer, _, _ := newTestRepairer(t, &stubGateway{})
	_, err := repairer.Repair(context.Background(), "BTC/USDT:USDT", "15m", 0, 900000, "guess")
	assert.Error(t, err)
}
