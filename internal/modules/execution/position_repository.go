package execution

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

// sizes below this are treated as flat
const positionEpsilon = 1e-9

// PositionRepository persists current positions and historical snapshots
type PositionRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *database.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "positions").Logger(),
	}
}

// Upsert writes the current state of one (symbol, side) position
func (r *PositionRepository) Upsert(p domain.Position) error {
	_, err := r.db.Exec(`
		INSERT INTO positions
		(symbol, side, size, entry_price, leverage, unrealized_pnl, margin, liquidation_price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, side) DO UPDATE SET
			size = excluded.size,
			entry_price = excluded.entry_price,
			leverage = excluded.leverage,
			unrealized_pnl = excluded.unrealized_pnl,
			margin = excluded.margin,
			liquidation_price = excluded.liquidation_price,
			updated_at = excluded.updated_at
	`, p.Symbol, p.Side, p.Size, p.EntryPrice, p.Leverage, p.UnrealizedPnL, p.Margin, p.LiquidationPrice, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// Delete removes one (symbol, side) position
func (r *PositionRepository) Delete(symbol, side string) error {
	_, err := r.db.Exec(`DELETE FROM positions WHERE symbol = ? AND side = ?`, symbol, side)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

// Get returns one (symbol, side) position, or nil
func (r *PositionRepository) Get(symbol, side string) (*domain.Position, error) {
	row := r.db.QueryRow(`
		SELECT symbol, side, size, entry_price, leverage, unrealized_pnl, margin, liquidation_price, updated_at
		FROM positions
		WHERE symbol = ? AND side = ?
	`, symbol, side)
	return scanPosition(row)
}

// ListForSymbol returns all open positions for a symbol
func (r *PositionRepository) ListForSymbol(symbol string) ([]domain.Position, error) {
	rows, err := r.db.Query(`
		SELECT symbol, side, size, entry_price, leverage, unrealized_pnl, margin, liquidation_price, updated_at
		FROM positions
		WHERE symbol = ?
		ORDER BY side ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

// ListAll returns every open position
func (r *PositionRepository) ListAll() ([]domain.Position, error) {
	rows, err := r.db.Query(`
		SELECT symbol, side, size, entry_price, leverage, unrealized_pnl, margin, liquidation_price, updated_at
		FROM positions
		ORDER BY symbol ASC, side ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

// ReplaceAll swaps the full position set atomically. Exchange-reported
// state wins over whatever is stored.
func (r *PositionRepository) ReplaceAll(positions []domain.Position) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
			return fmt.Errorf("failed to clear positions: %w", err)
		}
		for _, p := range positions {
			_, err := tx.Exec(`
				INSERT INTO positions
				(symbol, side, size, entry_price, leverage, unrealized_pnl, margin, liquidation_price, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, p.Symbol, p.Side, p.Size, p.EntryPrice, p.Leverage, p.UnrealizedPnL, p.Margin, p.LiquidationPrice, p.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert position: %w", err)
			}
		}
		return nil
	})
}

// PositionSnapshot is one historical observation of a position
type PositionSnapshot struct {
	Symbol        string
	Timestamp     int64
	Side          string
	Size          float64
	EntryPrice    float64
	MarkPrice     *float64
	UnrealizedPnL *float64
	Leverage      *float64
	Margin        *float64
	Exchange      string
	AccountID     string
	NotionalUSDT  *float64
	RawPayload    *string
}

// InsertSnapshot appends one position snapshot; duplicate
// (symbol, timestamp, side) observations are ignored
func (r *PositionRepository) InsertSnapshot(s PositionSnapshot) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO position_snapshots
		(symbol, timestamp, side, size, entry_price, mark_price, unrealized_pnl,
		 leverage, margin, exchange, account_id, qty, notional_usdt, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Symbol, s.Timestamp, s.Side, s.Size, s.EntryPrice, s.MarkPrice, s.UnrealizedPnL,
		s.Leverage, s.Margin, s.Exchange, s.AccountID, s.Size, s.NotionalUSDT, s.RawPayload)
	if err != nil {
		return fmt.Errorf("failed to insert position snapshot: %w", err)
	}
	return nil
}

// ApplyFill folds one fill into the net position for a symbol. Additions
// in the same direction move the entry price to the size-weighted average;
// reductions keep it; a reversal resets it to the fill price. A net size
// at or near zero removes the row.
func (r *PositionRepository) ApplyFill(symbol string, side domain.OrderSide, quantity, price float64) error {
	net := 0.0
	entry := 0.0
	for _, s := range []string{"long", "short"} {
		p, err := r.Get(symbol, s)
		if err != nil {
			return err
		}
		if p != nil {
			net += p.SignedSize()
			entry = p.EntryPrice
		}
	}

	delta := quantity
	if side == domain.SideSell {
		delta = -quantity
	}
	newNet := net + delta

	if err := r.Delete(symbol, "long"); err != nil {
		return err
	}
	if err := r.Delete(symbol, "short"); err != nil {
		return err
	}
	if math.Abs(newNet) <= positionEpsilon {
		return nil
	}

	newEntry := price
	switch {
	case net == 0:
		newEntry = price
	case sameSign(net, newNet) && math.Abs(newNet) > math.Abs(net):
		// adding to the position: weighted average entry
		newEntry = (math.Abs(net)*entry + math.Abs(delta)*price) / math.Abs(newNet)
	case sameSign(net, newNet):
		// reducing: entry unchanged
		newEntry = entry
	}

	posSide := "long"
	if newNet < 0 {
		posSide = "short"
	}
	return r.Upsert(domain.Position{
		Symbol:     symbol,
		Side:       posSide,
		Size:       math.Abs(newNet),
		EntryPrice: newEntry,
		UpdatedAt:  domain.UTCNowS(),
	})
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var p domain.Position
	var leverage, pnl, margin, liq sql.NullFloat64
	err := row.Scan(&p.Symbol, &p.Side, &p.Size, &p.EntryPrice, &leverage, &pnl, &margin, &liq, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}
	if leverage.Valid {
		p.Leverage = &leverage.Float64
	}
	if pnl.Valid {
		p.UnrealizedPnL = &pnl.Float64
	}
	if margin.Valid {
		p.Margin = &margin.Float64
	}
	if liq.Valid {
		p.LiquidationPrice = &liq.Float64
	}
	return &p, nil
}

func collectPositions(rows *sql.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}
