package marketdata

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

// PriceRepository handles price snapshot database operations
type PriceRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price snapshot repository
func NewPriceRepository(db *database.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// Insert stores one snapshot, skipping duplicates
func (r *PriceRepository) Insert(snap domain.PriceSnapshot) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO price_snapshots
		(symbol, timestamp, last_price, mark_price, index_price)
		VALUES (?, ?, ?, ?, ?)
	`, snap.Symbol, snap.Timestamp, snap.LastPrice, snap.MarkPrice, snap.IndexPrice)
	if err != nil {
		return fmt.Errorf("failed to insert price snapshot: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot, nil when none exists
func (r *PriceRepository) Latest(symbol string) (*domain.PriceSnapshot, error) {
	var snap domain.PriceSnapshot
	var last, mark, index sql.NullFloat64
	err := r.db.QueryRow(`
		SELECT symbol, timestamp, last_price, mark_price, index_price
		FROM price_snapshots
		WHERE symbol = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, symbol).Scan(&snap.Symbol, &snap.Timestamp, &last, &mark, &index)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price snapshot: %w", err)
	}
	if last.Valid {
		snap.LastPrice = &last.Float64
	}
	if mark.Valid {
		snap.MarkPrice = &mark.Float64
	}
	if index.Valid {
		snap.IndexPrice = &index.Float64
	}
	return &snap, nil
}
