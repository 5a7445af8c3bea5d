// Package ingest pulls market data from the exchange into local storage.
package ingest

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

// RunRepository records ingestion run audit rows
type RunRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRunRepository creates a new ingestion run repository
func NewRunRepository(db *database.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "ingestion_runs").Logger(),
	}
}

// Start inserts a running row and returns its id
func (r *RunRepository) Start(source, symbol string, timeframe *string, dataType string) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO ingestion_runs
		(source, symbol, timeframe, data_type, started_at, status)
		VALUES (?, ?, ?, ?, ?, 'running')
	`, source, symbol, timeframe, dataType, domain.UTCNowS())
	if err != nil {
		return 0, fmt.Errorf("failed to start ingestion run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get ingestion run id: %w", err)
	}
	return id, nil
}

// Finish closes a run with its final status and row count
func (r *RunRepository) Finish(id int64, status string, rowsInserted int, errMsg *string) error {
	_, err := r.db.Exec(`
		UPDATE ingestion_runs
		SET ended_at = ?, status = ?, rows_inserted = ?, error = ?
		WHERE id = ?
	`, domain.UTCNowS(), status, rowsInserted, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to finish ingestion run: %w", err)
	}
	return nil
}
