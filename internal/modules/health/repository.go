package health

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
)

// Repository persists integrity events and repair jobs
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new health repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "health").Logger(),
	}
}

// InsertEvent stores one integrity event and returns its id
func (r *Repository) InsertEvent(event IntegrityEvent) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO candle_integrity_events
		(symbol, timeframe, event_type, start_ts, end_ts, expected_bars,
		 actual_bars, missing_bars, duplicate_bars, severity, detected_at,
		 repair_job_id, details_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.Symbol, event.Timeframe, event.EventType, event.StartTs, event.EndTs,
		event.ExpectedBars, event.ActualBars, event.MissingBars, event.DuplicateBars,
		event.Severity, event.DetectedAt, event.RepairJobID, event.DetailsJSON)
	if err != nil {
		return 0, fmt.Errorf("failed to insert integrity event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get integrity event id: %w", err)
	}
	return id, nil
}

// EventsFor returns integrity events for a series, newest first
func (r *Repository) EventsFor(symbol, timeframe string, limit int) ([]IntegrityEvent, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, timeframe, event_type, start_ts, end_ts, expected_bars,
		       actual_bars, missing_bars, duplicate_bars, severity, detected_at,
		       repair_job_id, details_json
		FROM candle_integrity_events
		WHERE symbol = ? AND timeframe = ?
		ORDER BY id DESC
		LIMIT ?
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get integrity events: %w", err)
	}
	defer rows.Close()

	var events []IntegrityEvent
	for rows.Next() {
		var e IntegrityEvent
		var startTs, endTs sql.NullInt64
		var expected, actual, missing, duplicate sql.NullInt64
		var jobID, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Timeframe, &e.EventType, &startTs, &endTs,
			&expected, &actual, &missing, &duplicate, &e.Severity, &e.DetectedAt,
			&jobID, &details); err != nil {
			return nil, fmt.Errorf("failed to scan integrity event: %w", err)
		}
		if startTs.Valid {
			e.StartTs = &startTs.Int64
		}
		if endTs.Valid {
			e.EndTs = &endTs.Int64
		}
		e.ExpectedBars = nullInt(expected)
		e.ActualBars = nullInt(actual)
		e.MissingBars = nullInt(missing)
		e.DuplicateBars = nullInt(duplicate)
		if jobID.Valid {
			e.RepairJobID = &jobID.String
		}
		if details.Valid {
			e.DetailsJSON = &details.String
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integrity events: %w", err)
	}
	return events, nil
}

// CreateJob inserts a repair job row
func (r *Repository) CreateJob(job RepairJob) error {
	_, err := r.db.Exec(`
		INSERT INTO candle_repair_jobs
		(job_id, created_at, symbol, timeframe, range_start_ts, range_end_ts,
		 status, repaired_bars, message, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.JobID, job.CreatedAt, job.Symbol, job.Timeframe, job.RangeStartTs,
		job.RangeEndTs, job.Status, job.RepairedBars, job.Message, job.RawPayload)
	if err != nil {
		return fmt.Errorf("failed to create repair job: %w", err)
	}
	return nil
}

// FinishJob updates a repair job's terminal state
func (r *Repository) FinishJob(jobID, status string, repairedBars int, message *string) error {
	_, err := r.db.Exec(`
		UPDATE candle_repair_jobs
		SET status = ?, repaired_bars = ?, message = ?
		WHERE job_id = ?
	`, status, repairedBars, message, jobID)
	if err != nil {
		return fmt.Errorf("failed to finish repair job: %w", err)
	}
	return nil
}

// GetJob returns one repair job, nil when unknown
func (r *Repository) GetJob(jobID string) (*RepairJob, error) {
	var job RepairJob
	var message, raw sql.NullString
	err := r.db.QueryRow(`
		SELECT job_id, created_at, symbol, timeframe, range_start_ts, range_end_ts,
		       status, repaired_bars, message, raw_payload
		FROM candle_repair_jobs
		WHERE job_id = ?
	`, jobID).Scan(&job.JobID, &job.CreatedAt, &job.Symbol, &job.Timeframe,
		&job.RangeStartTs, &job.RangeEndTs, &job.Status, &job.RepairedBars, &message, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repair job: %w", err)
	}
	if message.Valid {
		job.Message = &message.String
	}
	if raw.Valid {
		job.RawPayload = &raw.String
	}
	return &job, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
