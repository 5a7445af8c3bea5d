package decision

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/database"
)

const backtestSampleSize = 50

// PerformanceRepository reads backtest outcomes written offline by the
// backtest engine and folds them into per-strategy scores
type PerformanceRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewPerformanceRepository creates a new performance repository
func NewPerformanceRepository(db *database.DB, log zerolog.Logger) *PerformanceRepository {
	return &PerformanceRepository{
		db:  db,
		log: log.With().Str("repo", "performance").Logger(),
	}
}

type backtestRow struct {
	winRate     sql.NullFloat64
	totalReturn sql.NullFloat64
	maxDrawdown sql.NullFloat64
	strategyKey string
}

// Scores returns one aggregate score per strategy key seen in the most
// recent backtest results for (symbol, timeframe). Strategies without
// history fall back to the neutral 0.5 at lookup time.
func (r *PerformanceRepository) Scores(symbol, timeframe string) (map[string]float64, error) {
	rows, err := r.db.Query(`
		SELECT r.win_rate, r.total_return, r.max_drawdown, c.strategy_params
		FROM backtest_results r
		JOIN backtest_configs c ON r.config_id = c.id
		WHERE c.symbol = ? AND c.timeframe = ?
		ORDER BY r.id DESC
		LIMIT ?
	`, symbol, timeframe, backtestSampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest results: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]backtestRow)
	for rows.Next() {
		var row backtestRow
		var params sql.NullString
		if err := rows.Scan(&row.winRate, &row.totalReturn, &row.maxDrawdown, &params); err != nil {
			return nil, fmt.Errorf("failed to scan backtest row: %w", err)
		}
		row.strategyKey = strategyKey(params)
		if row.strategyKey == "" {
			continue
		}
		grouped[row.strategyKey] = append(grouped[row.strategyKey], row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest rows: %w", err)
	}

	scores := make(map[string]float64, len(grouped))
	for key, group := range grouped {
		scores[key] = aggregate(group)
	}
	return scores, nil
}

// strategyKey digs the strategy name out of the stored params JSON
func strategyKey(params sql.NullString) string {
	if !params.Valid || params.String == "" {
		return ""
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(params.String), &parsed); err != nil {
		return ""
	}
	for _, field := range []string{"strategy_key", "strategy", "strategy_name"} {
		if v, ok := parsed[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// aggregate blends win rate, return and drawdown into one 0..1 score
func aggregate(group []backtestRow) float64 {
	if len(group) == 0 {
		return 0.5
	}

	var winSum, retSum, ddSum float64
	for _, row := range group {
		winSum += row.winRate.Float64
		retSum += row.totalReturn.Float64
		ddSum += row.maxDrawdown.Float64
	}
	n := float64(len(group))

	winScore := clamp(winSum/n, 0, 100) / 100.0
	retScore := clamp(retSum/n, -100, 100)/200.0 + 0.5
	ddScore := 1.0 - clamp(ddSum/n, 0, 100)/100.0

	return 0.5*winScore + 0.3*retScore + 0.2*ddScore
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
