package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/exchange"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
)

// matches the deepest page the venue's history endpoint serves
const repairPageSize = 100

// Repairer closes candle gaps either by refetching the range from the
// exchange or by synthesizing flat bars from the last known close
type Repairer struct {
	gateway exchange.Gateway
	candles *marketdata.CandleRepository
	repo    *Repository
	log     zerolog.Logger
	sleep   func(time.Duration)
}

// NewRepairer creates a new candle repairer
func NewRepairer(gateway exchange.Gateway, candles *marketdata.CandleRepository, repo *Repository, log zerolog.Logger) *Repairer {
	return &Repairer{
		gateway: gateway,
		candles: candles,
		repo:    repo,
		log:     log.With().Str("component", "candle_repairer").Logger(),
		sleep:   time.Sleep,
	}
}

// Repair runs one tracked repair over [rangeStartMs, rangeEndMs]. Every
// attempt leaves a job row and a REPAIR integrity event, success or not.
func (r *Repairer) Repair(ctx context.Context, symbol, timeframe string, rangeStartMs, rangeEndMs int64, mode string) (*RepairJob, error) {
	if mode != ModeRefetch && mode != ModeFill {
		return nil, fmt.Errorf("unknown repair mode %q", mode)
	}
	if rangeEndMs < rangeStartMs {
		return nil, fmt.Errorf("repair range end %d before start %d", rangeEndMs, rangeStartMs)
	}

	job := RepairJob{
		JobID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		CreatedAt:    domain.UTCNowS(),
		Symbol:       symbol,
		Timeframe:    timeframe,
		RangeStartTs: rangeStartMs,
		RangeEndTs:   rangeEndMs,
		Status:       JobRunning,
	}
	if err := r.repo.CreateJob(job); err != nil {
		return nil, err
	}

	tfMs, err := domain.TimeframeMs(timeframe)
	if err != nil {
		return nil, r.fail(&job, err)
	}

	var repaired int
	switch mode {
	case ModeRefetch:
		repaired, err = r.refetch(ctx, symbol, timeframe, tfMs, rangeStartMs, rangeEndMs)
	case ModeFill:
		repaired, err = r.fill(symbol, timeframe, tfMs, rangeStartMs, rangeEndMs)
	}
	if err != nil {
		return nil, r.fail(&job, err)
	}

	job.Status = JobDone
	job.RepairedBars = repaired
	if err := r.repo.FinishJob(job.JobID, JobDone, repaired, nil); err != nil {
		return nil, err
	}

	expected := int((rangeEndMs-rangeStartMs)/tfMs) + 1
	if _, err := r.repo.InsertEvent(IntegrityEvent{
		Symbol:       symbol,
		Timeframe:    timeframe,
		EventType:    EventRepair,
		StartTs:      &rangeStartMs,
		EndTs:        &rangeEndMs,
		ExpectedBars: &expected,
		ActualBars:   &repaired,
		Severity:     SeverityLow,
		DetectedAt:   domain.UTCNowS(),
		RepairJobID:  &job.JobID,
		DetailsJSON:  jsonDetails(map[string]string{"mode": mode}),
	}); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Str("mode", mode).
		Int("repaired", repaired).
		Msg("Candle repair complete")
	return &job, nil
}

func (r *Repairer) fail(job *RepairJob, cause error) error {
	msg := cause.Error()
	if err := r.repo.FinishJob(job.JobID, JobFailed, 0, &msg); err != nil {
		r.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to record failed repair job")
	}
	if _, err := r.repo.InsertEvent(IntegrityEvent{
		Symbol:      job.Symbol,
		Timeframe:   job.Timeframe,
		EventType:   EventRepair,
		StartTs:     &job.RangeStartTs,
		EndTs:       &job.RangeEndTs,
		Severity:    SeverityHigh,
		DetectedAt:  domain.UTCNowS(),
		RepairJobID: &job.JobID,
		DetailsJSON: jsonDetails(map[string]string{"error": msg}),
	}); err != nil {
		r.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to record repair failure event")
	}
	return cause
}

func (r *Repairer) refetch(ctx context.Context, symbol, timeframe string, tfMs, rangeStartMs, rangeEndMs int64) (int, error) {
	since := rangeStartMs
	repaired := 0

	for {
		candles, err := r.gateway.FetchOHLCV(ctx, symbol, timeframe, &since, repairPageSize)
		if err != nil {
			return repaired, fmt.Errorf("failed to refetch candles: %w", err)
		}

		kept := candles[:0:0]
		for _, c := range candles {
			if c.Timestamp <= rangeEndMs {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			break
		}

		n, err := r.candles.InsertBatch(kept)
		if err != nil {
			return repaired, err
		}
		repaired += n

		last := kept[len(kept)-1].Timestamp
		if last < since {
			break
		}
		since = last + tfMs
		if len(candles) < repairPageSize && last >= rangeEndMs {
			break
		}
		r.sleep(time.Duration(r.gateway.RateLimitMs()) * time.Millisecond)
	}
	return repaired, nil
}

// fill synthesizes flat zero-volume bars carrying the last close forward.
// It needs at least one stored candle before the range.
func (r *Repairer) fill(symbol, timeframe string, tfMs, rangeStartMs, rangeEndMs int64) (int, error) {
	prevClose, err := r.candles.CloseBefore(symbol, timeframe, rangeStartMs)
	if err != nil {
		return 0, err
	}
	if prevClose == nil {
		return 0, fmt.Errorf("no candle before %d to fill from", rangeStartMs)
	}

	var synthetic []domain.Candle
	for ts := rangeStartMs; ts <= rangeEndMs; ts += tfMs {
		synthetic = append(synthetic, domain.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: ts,
			Open:      *prevClose,
			High:      *prevClose,
			Low:       *prevClose,
			Close:     *prevClose,
			Volume:    0,
		})
	}
	return r.candles.InsertBatch(synthetic)
}
