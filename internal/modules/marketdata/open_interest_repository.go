package marketdata

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
)

// OpenInterest is one stored open interest observation
type OpenInterest struct {
	Symbol    string
	Timestamp int64
	Value     float64
	ValueUSD  *float64
}

// OpenInterestRepository handles open interest database operations
type OpenInterestRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewOpenInterestRepository creates a new open interest repository
func NewOpenInterestRepository(db *database.DB, log zerolog.Logger) *OpenInterestRepository {
	return &OpenInterestRepository{
		db:  db,
		log: log.With().Str("repo", "open_interest").Logger(),
	}
}

// Insert stores one observation, skipping duplicates
func (r *OpenInterestRepository) Insert(oi OpenInterest) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO open_interest
		(symbol, timestamp, open_interest, open_interest_value)
		VALUES (?, ?, ?, ?)
	`, oi.Symbol, oi.Timestamp, oi.Value, oi.ValueUSD)
	if err != nil {
		return fmt.Errorf("failed to insert open interest: %w", err)
	}
	return nil
}

// Latest returns the newest observation, nil when none exists
func (r *OpenInterestRepository) Latest(symbol string) (*OpenInterest, error) {
	var oi OpenInterest
	var valueUSD sql.NullFloat64
	err := r.db.QueryRow(`
		SELECT symbol, timestamp, open_interest, open_interest_value
		FROM open_interest
		WHERE symbol = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, symbol).Scan(&oi.Symbol, &oi.Timestamp, &oi.Value, &valueUSD)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest open interest: %w", err)
	}
	if valueUSD.Valid {
		oi.ValueUSD = &valueUSD.Float64
	}
	return &oi, nil
}
