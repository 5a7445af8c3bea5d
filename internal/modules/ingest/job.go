package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
)

// Job is the recurring ingestion tick. Each run re-reads a small overlap
// window behind the stored high-water mark so late exchange rewrites of
// the most recent bars are picked up.
type Job struct {
	ingester    *Ingester
	symbols     []string
	timeframes  []string
	overlapBars int
	log         zerolog.Logger
}

// NewJob creates the recurring ingestion job
func NewJob(ingester *Ingester, symbols, timeframes []string, overlapBars int, log zerolog.Logger) *Job {
	return &Job{
		ingester:    ingester,
		symbols:     symbols,
		timeframes:  timeframes,
		overlapBars: overlapBars,
		log:         log.With().Str("job", "ingest").Logger(),
	}
}

// Name implements scheduler.Job
func (j *Job) Name() string {
	return "ingest"
}

// Run implements scheduler.Job
func (j *Job) Run() error {
	ctx := context.Background()

	for _, symbol := range j.symbols {
		if err := j.ingester.IngestFundingRate(ctx, symbol); err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Funding ingestion failed")
		}
		if err := j.ingester.IngestPriceSnapshot(ctx, symbol); err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Price ingestion failed")
		}
		if err := j.ingester.IngestOpenInterest(ctx, symbol); err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Open interest ingestion failed")
		}

		for _, timeframe := range j.timeframes {
			if err := j.ingestSeries(ctx, symbol, timeframe); err != nil {
				return err
			}
		}
	}
	return nil
}

func (j *Job) ingestSeries(ctx context.Context, symbol, timeframe string) error {
	tfMs, err := domain.TimeframeMs(timeframe)
	if err != nil {
		return err
	}

	lastTs, err := j.ingester.market.Candles.LatestTimestamp(symbol, timeframe)
	if err != nil {
		return err
	}

	var since *int64
	override := false
	if lastTs != nil {
		s := *lastTs - int64(j.overlapBars)*tfMs
		if s < 0 {
			s = 0
		}
		since = &s
		override = true
	}

	if _, err := j.ingester.IngestOHLCV(ctx, symbol, timeframe, since, override, 0); err != nil {
		return fmt.Errorf("candle ingestion failed for %s %s: %w", symbol, timeframe, err)
	}
	return nil
}
