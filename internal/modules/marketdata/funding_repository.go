package marketdata

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

// FundingRepository handles funding rate database operations
type FundingRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewFundingRepository creates a new funding rate repository
func NewFundingRepository(db *database.DB, log zerolog.Logger) *FundingRepository {
	return &FundingRepository{
		db:  db,
		log: log.With().Str("repo", "funding").Logger(),
	}
}

// Insert stores one funding observation, skipping duplicates
func (r *FundingRepository) Insert(rate domain.FundingRate) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO funding_rates
		(symbol, timestamp, funding_rate, next_funding_time)
		VALUES (?, ?, ?, ?)
	`, rate.Symbol, rate.Timestamp, rate.FundingRate, rate.NextFundingTime)
	if err != nil {
		return fmt.Errorf("failed to insert funding rate: %w", err)
	}
	return nil
}

// Latest returns the newest funding observation, nil when none exists
func (r *FundingRepository) Latest(symbol string) (*domain.FundingRate, error) {
	var rate domain.FundingRate
	var next sql.NullInt64
	err := r.db.QueryRow(`
		SELECT symbol, timestamp, funding_rate, next_funding_time
		FROM funding_rates
		WHERE symbol = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, symbol).Scan(&rate.Symbol, &rate.Timestamp, &rate.FundingRate, &next)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest funding rate: %w", err)
	}
	if next.Valid {
		rate.NextFundingTime = &next.Int64
	}
	return &rate, nil
}

// Recent returns the newest observations in ascending timestamp order
func (r *FundingRepository) Recent(symbol string, limit int) ([]domain.FundingRate, error) {
	rows, err := r.db.Query(`
		SELECT symbol, timestamp, funding_rate, next_funding_time
		FROM funding_rates
		WHERE symbol = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent funding rates: %w", err)
	}
	defer rows.Close()

	var rates []domain.FundingRate
	for rows.Next() {
		var rate domain.FundingRate
		var next sql.NullInt64
		if err := rows.Scan(&rate.Symbol, &rate.Timestamp, &rate.FundingRate, &next); err != nil {
			return nil, fmt.Errorf("failed to scan funding rate: %w", err)
		}
		if next.Valid {
			rate.NextFundingTime = &next.Int64
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funding rates: %w", err)
	}

	for i, j := 0, len(rates)-1; i < j; i, j = i+1, j-1 {
		rates[i], rates[j] = rates[j], rates[i]
	}
	return rates, nil
}
