package decision

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

// Repository persists portfolio decisions
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new decision repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "decisions").Logger(),
	}
}

// Insert stores one decision and returns its id
func (r *Repository) Insert(d domain.Decision) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO decisions
		(symbol, timeframe, timestamp, action, confidence, reasoning, technical_analysis)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.Symbol, d.Timeframe, d.Timestamp, d.Action, d.Confidence, d.Reasoning, d.TechnicalAnalysis)
	if err != nil {
		return 0, fmt.Errorf("failed to insert decision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get decision id: %w", err)
	}
	return id, nil
}

// Recent returns the newest decisions for a symbol, newest first
func (r *Repository) Recent(symbol string, limit int) ([]domain.Decision, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, timeframe, timestamp, action, confidence, reasoning, technical_analysis
		FROM decisions
		WHERE symbol = ?
		ORDER BY id DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get decisions: %w", err)
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		var d domain.Decision
		var confidence sql.NullFloat64
		var reasoning, analysis sql.NullString
		if err := rows.Scan(&d.ID, &d.Symbol, &d.Timeframe, &d.Timestamp, &d.Action, &confidence, &reasoning, &analysis); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		if confidence.Valid {
			d.Confidence = &confidence.Float64
		}
		d.Reasoning = reasoning.String
		d.TechnicalAnalysis = analysis.String
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}
	return decisions, nil
}
