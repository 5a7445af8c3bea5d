package health

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
)

const defaultScanDays = 90

// Scanner walks stored candle series looking for gaps and duplicate bars
type Scanner struct {
	candles  *marketdata.CandleRepository
	repo     *Repository
	scanDays int
	log      zerolog.Logger
}

// NewScanner creates a new integrity scanner. scanDays bounds the default
// scan window when the caller gives no explicit range.
func NewScanner(candles *marketdata.CandleRepository, repo *Repository, scanDays int, log zerolog.Logger) *Scanner {
	if scanDays <= 0 {
		scanDays = defaultScanDays
	}
	return &Scanner{
		candles:  candles,
		repo:     repo,
		scanDays: scanDays,
		log:      log.With().Str("component", "integrity_scanner").Logger(),
	}
}

// Scan detects gaps and duplicates in [startMs, endMs], persists one
// integrity event per finding and returns them. A nil range scans the
// trailing scan window ending now.
func (s *Scanner) Scan(symbol, timeframe string, startMs, endMs *int64) ([]IntegrityEvent, error) {
	start, end := s.resolveRange(startMs, endMs)

	events, err := s.detect(symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	for i := range events {
		id, err := s.repo.InsertEvent(events[i])
		if err != nil {
			return nil, err
		}
		events[i].ID = id
	}

	if len(events) > 0 {
		s.log.Warn().
			Str("symbol", symbol).
			Str("timeframe", timeframe).
			Int("findings", len(events)).
			Msg("Candle series has integrity defects")
	}
	return events, nil
}

// Coverage summarizes series completeness over [startMs, endMs] without
// persisting anything
func (s *Scanner) Coverage(symbol, timeframe string, startMs, endMs *int64) (*CoverageSummary, error) {
	start, end := s.resolveRange(startMs, endMs)
	tfMs, err := domain.TimeframeMs(timeframe)
	if err != nil {
		return nil, err
	}

	counts, err := s.candles.TimestampCounts(symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	summary := &CoverageSummary{
		Symbol:     symbol,
		Timeframe:  timeframe,
		RangeStart: start,
		RangeEnd:   end,
		Actual:     len(counts),
	}
	if len(counts) == 0 {
		return summary, nil
	}

	first := counts[0].Timestamp
	last := counts[len(counts)-1].Timestamp
	summary.Expected = int((last-first)/tfMs) + 1
	if summary.Expected > 0 {
		summary.CoveragePct = float64(summary.Actual) / float64(summary.Expected) * 100.0
	}

	events, err := s.detect(symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if e.EventType == EventGap {
			summary.GapCount++
		}
	}
	return summary, nil
}

func (s *Scanner) resolveRange(startMs, endMs *int64) (int64, int64) {
	end := domain.UTCNowMs()
	if endMs != nil {
		end = *endMs
	}
	start := end - int64(s.scanDays)*24*time.Hour.Milliseconds()
	if startMs != nil {
		start = *startMs
	}
	return start, end
}

func (s *Scanner) detect(symbol, timeframe string, start, end int64) ([]IntegrityEvent, error) {
	tfMs, err := domain.TimeframeMs(timeframe)
	if err != nil {
		return nil, err
	}

	counts, err := s.candles.TimestampCounts(symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	now := domain.UTCNowS()
	var events []IntegrityEvent

	for idx, tc := range counts {
		if idx > 0 {
			prev := counts[idx-1].Timestamp
			delta := tc.Timestamp - prev
			if delta > tfMs {
				gapStart := prev + tfMs
				gapEnd := tc.Timestamp - tfMs
				expected := int(delta/tfMs) + 1
				actual := 2
				missing := int(delta/tfMs) - 1
				events = append(events, IntegrityEvent{
					Symbol:       symbol,
					Timeframe:    timeframe,
					EventType:    EventGap,
					StartTs:      &gapStart,
					EndTs:        &gapEnd,
					ExpectedBars: &expected,
					ActualBars:   &actual,
					MissingBars:  &missing,
					Severity:     severity(missing, 0),
					DetectedAt:   now,
					DetailsJSON:  gapDetails(gapStart, gapEnd),
				})
			}
		}
		if tc.Count > 1 {
			ts := tc.Timestamp
			expected := 1
			duplicates := tc.Count - 1
			events = append(events, IntegrityEvent{
				Symbol:        symbol,
				Timeframe:     timeframe,
				EventType:     EventDuplicate,
				StartTs:       &ts,
				EndTs:         &ts,
				ExpectedBars:  &expected,
				ActualBars:    &tc.Count,
				DuplicateBars: &duplicates,
				Severity:      severity(0, duplicates),
				DetectedAt:    now,
				DetailsJSON:   duplicateDetails(ts, tc.Count),
			})
		}
	}
	return events, nil
}

func severity(missing, duplicates int) string {
	worst := missing
	if duplicates > worst {
		worst = duplicates
	}
	switch {
	case worst >= 100:
		return SeverityHigh
	case worst >= 20:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func gapDetails(startMs, endMs int64) *string {
	return jsonDetails(map[string]string{
		"gap_start": isoMs(startMs),
		"gap_end":   isoMs(endMs),
	})
}

func duplicateDetails(tsMs int64, count int) *string {
	return jsonDetails(map[string]string{
		"timestamp": isoMs(tsMs),
		"count":     fmt.Sprintf("%d", count),
	})
}

func jsonDetails(v interface{}) *string {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}

func isoMs(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format(time.RFC3339)
}
