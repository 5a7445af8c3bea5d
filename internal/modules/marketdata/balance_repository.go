package marketdata

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

// BalanceSnapshot is one enriched balance row with USDT valuations
type BalanceSnapshot struct {
	Timestamp  int64
	Exchange   string
	AccountID  string
	Currency   string
	Total      float64
	Available  *float64
	Used       *float64
	PriceUSDT  *float64
	TotalUSDT  *float64
	AvailUSDT  *float64
	UsedUSDT   *float64
	RawPayload *string
}

// BalanceRepository handles balance database operations
type BalanceRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db *database.DB, log zerolog.Logger) *BalanceRepository {
	return &BalanceRepository{
		db:  db,
		log: log.With().Str("repo", "balances").Logger(),
	}
}

// InsertBatch stores one balance observation per currency, skipping
// duplicates on (currency, timestamp)
func (r *BalanceRepository) InsertBatch(balances []domain.Balance) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO balances
			(currency, timestamp, total, free, used)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare balance insert: %w", err)
		}
		defer stmt.Close()

		for _, b := range balances {
			if _, err := stmt.Exec(b.Currency, b.Timestamp, b.Total, b.Free, b.Used); err != nil {
				return fmt.Errorf("failed to insert balance for %s: %w", b.Currency, err)
			}
		}
		return nil
	})
}

// InsertSnapshot appends one enriched balance snapshot row
func (r *BalanceRepository) InsertSnapshot(snap BalanceSnapshot) error {
	_, err := r.db.Exec(`
		INSERT INTO balance_snapshots
		(timestamp, exchange, account_id, currency, total, available, used,
		 price_usdt, total_usdt, available_usdt, used_usdt, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.Timestamp, snap.Exchange, snap.AccountID, snap.Currency, snap.Total,
		snap.Available, snap.Used, snap.PriceUSDT, snap.TotalUSDT, snap.AvailUSDT,
		snap.UsedUSDT, snap.RawPayload)
	if err != nil {
		return fmt.Errorf("failed to insert balance snapshot: %w", err)
	}
	return nil
}

// LatestTotal returns the newest total for a currency, nil when none exists
func (r *BalanceRepository) LatestTotal(currency string) (*float64, error) {
	var total float64
	err := r.db.QueryRow(`
		SELECT total FROM balances
		WHERE currency = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, currency).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest balance: %w", err)
	}
	return &total, nil
}
