// Package marketdata persists and serves candles, funding rates, price
// snapshots, open interest and balances.
package marketdata

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

// CandleRepository handles OHLCV database operations
type CandleRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCandleRepository creates a new candle repository
func NewCandleRepository(db *database.DB, log zerolog.Logger) *CandleRepository {
	return &CandleRepository{
		db:  db,
		log: log.With().Str("repo", "candles").Logger(),
	}
}

// InsertBatch inserts candles, silently skipping rows that already exist.
// The returned count is the number of rows attempted.
func (r *CandleRepository) InsertBatch(candles []domain.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO market_data
			(symbol, timeframe, timestamp, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare candle insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range candles {
			if _, err := stmt.Exec(c.Symbol, c.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
				return fmt.Errorf("failed to insert candle at %d: %w", c.Timestamp, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(candles), nil
}

// GetRecent returns the most recent candles in ascending timestamp order
func (r *CandleRepository) GetRecent(symbol, timeframe string, limit int) ([]domain.Candle, error) {
	rows, err := r.db.Query(`
		SELECT symbol, timeframe, timestamp, open, high, low, close, volume
		FROM market_data
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get candles: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}
	// flip DESC page back into series order
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// GetRange returns candles with startMs <= timestamp <= endMs ascending
func (r *CandleRepository) GetRange(symbol, timeframe string, startMs, endMs int64) ([]domain.Candle, error) {
	rows, err := r.db.Query(`
		SELECT symbol, timeframe, timestamp, open, high, low, close, volume
		FROM market_data
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("failed to get candle range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// LatestTimestamp returns the newest stored candle timestamp, nil when the
// series is empty
func (r *CandleRepository) LatestTimestamp(symbol, timeframe string) (*int64, error) {
	var ts sql.NullInt64
	err := r.db.QueryRow(`
		SELECT MAX(timestamp) FROM market_data
		WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&ts)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest candle timestamp: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Int64, nil
}

// LatestClose returns the newest close price, nil when the series is empty
func (r *CandleRepository) LatestClose(symbol, timeframe string) (*float64, error) {
	var close float64
	err := r.db.QueryRow(`
		SELECT close FROM market_data
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, symbol, timeframe).Scan(&close)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest close: %w", err)
	}
	return &close, nil
}

// CloseBefore returns the last close strictly before tsMs, nil when none
func (r *CandleRepository) CloseBefore(symbol, timeframe string, tsMs int64) (*float64, error) {
	var close float64
	err := r.db.QueryRow(`
		SELECT close FROM market_data
		WHERE symbol = ? AND timeframe = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, symbol, timeframe, tsMs).Scan(&close)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get close before %d: %w", tsMs, err)
	}
	return &close, nil
}

// TimestampCount is the number of stored rows sharing one bar timestamp
type TimestampCount struct {
	Timestamp int64
	Count     int
}

// TimestampCounts returns per-timestamp row counts in [startMs, endMs],
// ascending. The integrity scanner walks this to find gaps and duplicates.
func (r *CandleRepository) TimestampCounts(symbol, timeframe string, startMs, endMs int64) ([]TimestampCount, error) {
	rows, err := r.db.Query(`
		SELECT timestamp, COUNT(*) FROM market_data
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		GROUP BY timestamp
		ORDER BY timestamp ASC
	`, symbol, timeframe, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("failed to get timestamp counts: %w", err)
	}
	defer rows.Close()

	var counts []TimestampCount
	for rows.Next() {
		var tc TimestampCount
		if err := rows.Scan(&tc.Timestamp, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan timestamp count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timestamp counts: %w", err)
	}
	return counts, nil
}

// CountRange returns the number of candles in [startMs, endMs]
func (r *CandleRepository) CountRange(symbol, timeframe string, startMs, endMs int64) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM market_data
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
	`, symbol, timeframe, startMs, endMs).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count candles: %w", err)
	}
	return count, nil
}

func scanCandles(rows *sql.Rows) ([]domain.Candle, error) {
	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}
	return candles, nil
}
