// Package risk gates orders through a rule chain before they reach the
// exchange and records every block as a risk event.
package risk

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
)

// Event levels
const (
	LevelBlock = "block"
)

// Event is one recorded risk intervention
type Event struct {
	ID        int64  `json:"id"`
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"timestamp"`
	Level     string `json:"level"`
	Rule      string `json:"rule"`
	Details   string `json:"details"`
}

// Repository persists risk events
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new risk event repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "risk_events").Logger(),
	}
}

// Insert stores one risk event
func (r *Repository) Insert(e Event) error {
	_, err := r.db.Exec(`
		INSERT INTO risk_events (symbol, timestamp, level, rule, details)
		VALUES (?, ?, ?, ?, ?)
	`, e.Symbol, e.Timestamp, e.Level, e.Rule, e.Details)
	if err != nil {
		return fmt.Errorf("failed to insert risk event: %w", err)
	}
	return nil
}

// Recent returns the newest events for a symbol, newest first
func (r *Repository) Recent(symbol string, limit int) ([]Event, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, timestamp, level, rule, COALESCE(details, '')
		FROM risk_events
		WHERE symbol = ?
		ORDER BY id DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get risk events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Timestamp, &e.Level, &e.Rule, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan risk event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk events: %w", err)
	}
	return events, nil
}
