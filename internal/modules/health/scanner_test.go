package health

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
)

const tfMs = int64(15 * 60 * 1000)

func newTestScanner(t *testing.T) (*Scanner, *marketdata.CandleRepository, *Repository) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	candles := marketdata.NewCandleRepository(db, log)
	repo := NewRepository(db, log)
	return NewScanner(candles, repo, 90, log), candles, repo
}

func insertBars(t *testing.T, candles *marketdata.CandleRepository, timestamps ...int64) {
	t.Helper()
	bars := make([]domain.Candle, 0, len(timestamps))
	for _, ts := range timestamps {
		bars = append(bars, domain.Candle{
			Symbol:    "BTC/USDT:USDT",
			Timeframe: "15m",
			Timestamp: ts,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    1,
		})
	}
	_, err := candles.InsertBatch(bars)
	require.NoError(t, err)
}

func TestScanFindsSingleBarGap(t *testing.T) {
	scanner, candles, _ := newTestScanner(t)
	insertBars(t, candles, 0, 900000, 1800000, 3600000)

	start, end := int64(0), int64(3600000)
	events, err := scanner.Scan("BTC/USDT:USDT", "15m", &start, &end)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, EventGap, e.EventType)
	require.NotNil(t, e.StartTs)
	require.NotNil(t, e.EndTs)
	assert.Equal(t, int64(2700000), *e.StartTs)
	assert.Equal(t, int64(2700000), *e.EndTs)
	require.NotNil(t, e.MissingBars)
	assert.Equal(t, 1, *e.MissingBars)
	assert.Equal(t, SeverityLow, e.Severity)
	require.NotNil(t, e.ExpectedBars)
	assert.Equal(t, 3, *e.ExpectedBars)
}

func TestScanCleanSeries(t *testing.T) {
	scanner, candles, repo := newTestScanner(t)
	insertBars(t, candles, 0, 900000, 1800000)

	start, end := int64(0), int64(1800000)
	events, err := scanner.Scan("BTC/USDT:USDT", "15m", &start, &end)
	require.NoError(t, err)
	assert.Empty(t, events)

	stored, err := repo.EventsFor("BTC/USDT:USDT", "15m", 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestScanSeverityScalesWithMissingBars(t *testing.T) {
	scanner, candles, _ := newTestScanner(t)
	// 25 bars missing between the two stored bars
	insertBars(t, candles, 0, 26*tfMs)

	start, end := int64(0), 26*tfMs
	events, err := scanner.Scan("BTC/USDT:USDT", "15m", &start, &end)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].MissingBars)
	assert.Equal(t, 25, *events[0].MissingBars)
	assert.Equal(t, SeverityMedium, events[0].Severity)

	insertBars(t, candles, 200*tfMs)
	events, err = scanner.Scan("BTC/USDT:USDT", "15m", &start, &end)
	require.NoError(t, err)
	require.Len(t, events, 1)

	wideStart, wideEnd := int64(0), 200*tfMs
	events, err = scanner.Scan("BTC/USDT:USDT", "15m", &wideStart, &wideEnd)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, SeverityHigh, events[1].Severity)
}

func TestCoverage(t *testing.T) {
	scanner, candles, _ := newTestScanner(t)
	insertBars(t, candles, 0, 900000, 1800000, 3600000)

	start, end := int64(0), int64(3600000)
	summary, err := scanner.Coverage("BTC/USDT:USDT", "15m", &start, &end)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Expected)
	assert.Equal(t, 4, summary.Actual)
	assert.Equal(t, 1, summary.GapCount)
	assert.InDelta(t, 80.0, summary.CoveragePct, 0.001)
}

func TestCoverageEmptySeries(t *testing.T) {
	scanner, _, _ := newTestScanner(t)

	summary, err := scanner.Coverage("BTC/USDT:USDT", "15m", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Expected)
	assert.Equal(t, 0, summary.Actual)
	assert.Equal(t, 0.0, summary.CoveragePct)
}
