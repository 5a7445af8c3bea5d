package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/exchange"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
)

const (
	// matches the deepest page the venue's history endpoint serves
	pageSize        = 100
	defaultBackfill = 30 * 24 * time.Hour
	sourceName      = "okx"
	statusSuccess   = "success"
	statusFailed    = "failed"
	statusSkipped   = "skipped"
	dataTypeOHLCV   = "ohlcv"
	dataTypeFunding = "funding_rate"
	dataTypePrice   = "price_snapshot"
	dataTypeOI      = "open_interest"
)

// Ingester pulls candles, funding rates, price snapshots and open interest
// from the gateway into local storage
type Ingester struct {
	gateway exchange.Gateway
	market  *marketdata.Service
	runs    *RunRepository
	log     zerolog.Logger
	sleep   func(time.Duration)
}

// NewIngester creates a new ingester
func NewIngester(gateway exchange.Gateway, market *marketdata.Service, runs *RunRepository, log zerolog.Logger) *Ingester {
	return &Ingester{
		gateway: gateway,
		market:  market,
		runs:    runs,
		log:     log.With().Str("component", "ingest").Logger(),
		sleep:   time.Sleep,
	}
}

// IngestOHLCV pulls candles forward from the stored high-water mark. With
// overrideSince the caller's sinceMs wins even when newer data exists,
// which re-reads the overlap window and heals late rewrites. maxBars of 0
// means unbounded.
func (i *Ingester) IngestOHLCV(ctx context.Context, symbol, timeframe string, sinceMs *int64, overrideSince bool, maxBars int) (int, error) {
	tf := &timeframe
	runID, err := i.runs.Start(sourceName, symbol, tf, dataTypeOHLCV)
	if err != nil {
		return 0, err
	}

	inserted, err := i.ingestOHLCV(ctx, symbol, timeframe, sinceMs, overrideSince, maxBars)
	if err != nil {
		msg := err.Error()
		i.finishRun(runID, statusFailed, inserted, &msg)
		return inserted, err
	}
	i.finishRun(runID, statusSuccess, inserted, nil)
	return inserted, nil
}

func (i *Ingester) finishRun(runID int64, status string, rows int, msg *string) {
	if err := i.runs.Finish(runID, status, rows, msg); err != nil {
		i.log.Error().Err(err).Msg("Failed to record ingestion run")
	}
}

func (i *Ingester) ingestOHLCV(ctx context.Context, symbol, timeframe string, sinceMs *int64, overrideSince bool, maxBars int) (int, error) {
	tfMs, err := domain.TimeframeMs(timeframe)
	if err != nil {
		return 0, err
	}

	since, err := i.resolveSince(symbol, timeframe, tfMs, sinceMs, overrideSince)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for {
		candles, err := i.gateway.FetchOHLCV(ctx, symbol, timeframe, &since, pageSize)
		if err != nil {
			return inserted, fmt.Errorf("failed to fetch candles: %w", err)
		}
		if len(candles) == 0 {
			break
		}

		n, err := i.market.Candles.InsertBatch(candles)
		if err != nil {
			return inserted, err
		}
		inserted += n

		since = candles[len(candles)-1].Timestamp + tfMs
		if maxBars > 0 && inserted >= maxBars {
			break
		}
		if len(candles) < pageSize {
			break
		}
		i.sleep(time.Duration(i.gateway.RateLimitMs()) * time.Millisecond)
	}

	i.log.Info().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Int("rows", inserted).
		Msg("Candle ingestion complete")
	return inserted, nil
}

func (i *Ingester) resolveSince(symbol, timeframe string, tfMs int64, sinceMs *int64, overrideSince bool) (int64, error) {
	if overrideSince && sinceMs != nil {
		since := *sinceMs
		if since < 0 {
			since = 0
		}
		return since, nil
	}

	lastTs, err := i.market.Candles.LatestTimestamp(symbol, timeframe)
	if err != nil {
		return 0, err
	}
	if lastTs != nil {
		return *lastTs + tfMs, nil
	}
	if sinceMs != nil {
		return *sinceMs, nil
	}
	return domain.UTCNowMs() - defaultBackfill.Milliseconds(), nil
}

// IngestFundingRate stores the current funding rate. Replies without a
// rate close the run as skipped, not failed.
func (i *Ingester) IngestFundingRate(ctx context.Context, symbol string) error {
	runID, err := i.runs.Start(sourceName, symbol, nil, dataTypeFunding)
	if err != nil {
		return err
	}

	snap, err := i.gateway.FetchFundingRate(ctx, symbol)
	if err != nil {
		msg := err.Error()
		i.finishRun(runID, statusFailed, 0, &msg)
		return fmt.Errorf("failed to fetch funding rate: %w", err)
	}
	if snap.Rate == nil {
		i.log.Debug().Str("symbol", symbol).Msg("Funding rate missing, skipped")
		msg := "missing fundingRate"
		i.finishRun(runID, statusSkipped, 0, &msg)
		return nil
	}

	ts := exchange.ToMs(snap.Timestamp)
	if ts == 0 {
		ts = domain.UTCNowMs()
	}
	if err := i.market.Funding.Insert(domain.FundingRate{
		Symbol:          symbol,
		Timestamp:       ts,
		FundingRate:     *snap.Rate,
		NextFundingTime: snap.NextFundingTime,
	}); err != nil {
		msg := err.Error()
		i.finishRun(runID, statusFailed, 0, &msg)
		return err
	}
	i.finishRun(runID, statusSuccess, 1, nil)
	return nil
}

// IngestPriceSnapshot stores the current last/mark/index prices
func (i *Ingester) IngestPriceSnapshot(ctx context.Context, symbol string) error {
	runID, err := i.runs.Start(sourceName, symbol, nil, dataTypePrice)
	if err != nil {
		return err
	}

	ticker, err := i.gateway.FetchTicker(ctx, symbol)
	if err != nil {
		msg := err.Error()
		i.finishRun(runID, statusFailed, 0, &msg)
		return fmt.Errorf("failed to fetch ticker: %w", err)
	}

	ts := exchange.ToMs(ticker.Timestamp)
	if ts == 0 {
		ts = domain.UTCNowMs()
	}
	if err := i.market.Prices.Insert(domain.PriceSnapshot{
		Symbol:     symbol,
		Timestamp:  ts,
		LastPrice:  ticker.Last,
		MarkPrice:  ticker.Mark,
		IndexPrice: ticker.Index,
	}); err != nil {
		msg := err.Error()
		i.finishRun(runID, statusFailed, 0, &msg)
		return err
	}
	i.finishRun(runID, statusSuccess, 1, nil)
	return nil
}

// IngestOpenInterest stores the current open interest. Replies without a
// value close the run as skipped, not failed.
func (i *Ingester) IngestOpenInterest(ctx context.Context, symbol string) error {
	runID, err := i.runs.Start(sourceName, symbol, nil, dataTypeOI)
	if err != nil {
		return err
	}

	snap, err := i.gateway.FetchOpenInterest(ctx, symbol)
	if err != nil {
		msg := err.Error()
		i.finishRun(runID, statusFailed, 0, &msg)
		return fmt.Errorf("failed to fetch open interest: %w", err)
	}
	if snap.OpenInterest == nil {
		i.log.Debug().Str("symbol", symbol).Msg("Open interest missing, skipped")
		msg := "missing openInterest"
		i.finishRun(runID, statusSkipped, 0, &msg)
		return nil
	}

	ts := exchange.ToMs(snap.Timestamp)
	if ts == 0 {
		ts = domain.UTCNowMs()
	}
	if err := i.market.OpenInterest.Insert(marketdata.OpenInterest{
		Symbol:    symbol,
		Timestamp: ts,
		Value:     *snap.OpenInterest,
		ValueUSD:  snap.OpenInterestValue,
	}); err != nil {
		msg := err.Error()
		i.finishRun(runID, statusFailed, 0, &msg)
		return err
	}
	i.finishRun(runID, statusSuccess, 1, nil)
	return nil
}

// IngestAll runs a full sweep for the given symbols and timeframes,
// backfilling sinceDays of candles. Funding, price and open interest
// failures are logged and do not stop the sweep.
func (i *Ingester) IngestAll(ctx context.Context, symbols, timeframes []string, sinceDays int) error {
	since := domain.UTCNowMs() - int64(sinceDays)*24*time.Hour.Milliseconds()

	for _, symbol := range symbols {
		if err := i.IngestFundingRate(ctx, symbol); err != nil {
			i.log.Warn().Err(err).Str("symbol", symbol).Msg("Funding ingestion failed")
		}
		if err := i.IngestPriceSnapshot(ctx, symbol); err != nil {
			i.log.Warn().Err(err).Str("symbol", symbol).Msg("Price ingestion failed")
		}
		if err := i.IngestOpenInterest(ctx, symbol); err != nil {
			i.log.Warn().Err(err).Str("symbol", symbol).Msg("Open interest ingestion failed")
		}

		for _, timeframe := range timeframes {
			if _, err := i.IngestOHLCV(ctx, symbol, timeframe, &since, false, 0); err != nil {
				return fmt.Errorf("candle ingestion failed for %s %s: %w", symbol, timeframe, err)
			}
			i.sleep(time.Duration(i.gateway.RateLimitMs()) * time.Millisecond)
		}
	}
	return nil
}
