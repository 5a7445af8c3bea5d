package health

import (
	"context"

	"github.com/rs/zerolog"
)

// ScanJob is the recurring integrity sweep over all tracked series.
// When a repairer is attached, detected gaps are refetched in the same
// pass; repair failures are logged and do not stop the sweep.
type ScanJob struct {
	scanner    *Scanner
	repairer   *Repairer // nil disables auto-repair
	symbols    []string
	timeframes []string
	log        zerolog.Logger
}

// NewScanJob creates the recurring integrity scan job
func NewScanJob(scanner *Scanner, repairer *Repairer, symbols, timeframes []string, log zerolog.Logger) *ScanJob {
	return &ScanJob{
		scanner:    scanner,
		repairer:   repairer,
		symbols:    symbols,
		timeframes: timeframes,
		log:        log.With().Str("job", "integrity_scan").Logger(),
	}
}

// Name implements scheduler.Job
func (j *ScanJob) Name() string {
	return "integrity_scan"
}

// Run implements scheduler.Job
func (j *ScanJob) Run() error {
	ctx := context.Background()
	for _, symbol := range j.symbols {
		for _, timeframe := range j.timeframes {
			events, err := j.scanner.Scan(symbol, timeframe, nil, nil)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				j.log.Debug().
					Str("symbol", symbol).
					Str("timeframe", timeframe).
					Msg("Series clean")
				continue
			}
			j.repairGaps(ctx, symbol, timeframe, events)
		}
	}
	return nil
}

func (j *ScanJob) repairGaps(ctx context.Context, symbol, timeframe string, events []IntegrityEvent) {
	if j.repairer == nil {
		return
	}
	for _, ev := range events {
		if ev.EventType != EventGap || ev.StartTs == nil || ev.EndTs == nil {
			continue
		}
		job, err := j.repairer.Repair(ctx, symbol, timeframe, *ev.StartTs, *ev.EndTs, ModeRefetch)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("symbol", symbol).
				Str("timeframe", timeframe).
				Int64("start_ts", *ev.StartTs).
				Msg("Gap repair failed")
			continue
		}
		j.log.Info().
			Str("symbol", symbol).
			Str("timeframe", timeframe).
			Str("repair_job_id", job.JobID).
			Int("repaired", job.RepairedBars).
			Msg("Gap repaired")
	}
}
