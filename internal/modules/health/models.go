// Package health detects and repairs defects in stored candle series.
package health

// Integrity event types
const (
	EventGap       = "GAP"
	EventDuplicate = "DUPLICATE"
	EventRepair    = "REPAIR"
)

// Event severities
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// Repair job states
const (
	JobRunning = "RUNNING"
	JobDone    = "DONE"
	JobFailed  = "FAILED"
)

// Repair modes
const (
	ModeRefetch = "refetch"
	ModeFill    = "fill"
)

// IntegrityEvent is one detected defect or completed repair
type IntegrityEvent struct {
	ID            int64   `json:"id"`
	Symbol        string  `json:"symbol"`
	Timeframe     string  `json:"timeframe"`
	EventType     string  `json:"event_type"`
	StartTs       *int64  `json:"start_ts,omitempty"`
	EndTs         *int64  `json:"end_ts,omitempty"`
	ExpectedBars  *int    `json:"expected_bars,omitempty"`
	ActualBars    *int    `json:"actual_bars,omitempty"`
	MissingBars   *int    `json:"missing_bars,omitempty"`
	DuplicateBars *int    `json:"duplicate_bars,omitempty"`
	Severity      string  `json:"severity"`
	DetectedAt    int64   `json:"detected_at"`
	RepairJobID   *string `json:"repair_job_id,omitempty"`
	DetailsJSON   *string `json:"details_json,omitempty"`
}

// RepairJob is one tracked repair attempt over a candle range
type RepairJob struct {
	JobID        string  `json:"job_id"`
	CreatedAt    int64   `json:"created_at"`
	Symbol       string  `json:"symbol"`
	Timeframe    string  `json:"timeframe"`
	RangeStartTs int64   `json:"range_start_ts"`
	RangeEndTs   int64   `json:"range_end_ts"`
	Status       string  `json:"status"`
	RepairedBars int     `json:"repaired_bars"`
	Message      *string `json:"message,omitempty"`
	RawPayload   *string `json:"raw_payload,omitempty"`
}

// CoverageSummary describes how complete one stored series is
type CoverageSummary struct {
	Symbol      string  `json:"symbol"`
	Timeframe   string  `json:"timeframe"`
	RangeStart  int64   `json:"range_start"`
	RangeEnd    int64   `json:"range_end"`
	Expected    int     `json:"expected_bars"`
	Actual      int     `json:"actual_bars"`
	CoveragePct float64 `json:"coverage_pct"`
	GapCount    int     `json:"gap_count"`
}
