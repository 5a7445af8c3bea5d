package decision

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/modules/strategies"
)

const (
	regimeWeight = 0.6
	perfWeight   = 0.4

	regimeMatchScore    = 1.0
	regimeMismatchScore = 0.3
	regimeAgnosticScore = 0.6

	neutralPerfScore = 0.5
)

// StrategyScore is one scored strategy candidate
type StrategyScore struct {
	Strategy string  `json:"strategy"`
	Score    float64 `json:"score"`
	Regime   float64 `json:"regime_score"`
	Perf     float64 `json:"performance_score"`
	Notes    string  `json:"notes"`
}

// Scorer ranks strategy candidates by regime affinity and backtest
// performance
type Scorer struct {
	perf *PerformanceRepository
	log  zerolog.Logger
}

// NewScorer creates a new strategy scorer
func NewScorer(perf *PerformanceRepository, log zerolog.Logger) *Scorer {
	return &Scorer{
		perf: perf,
		log:  log.With().Str("component", "scorer").Logger(),
	}
}

// Score ranks the given candidates for one (symbol, timeframe, regime),
// highest first
func (s *Scorer) Score(symbol, timeframe string, regime Regime, candidates []strategies.Spec) ([]StrategyScore, error) {
	perfScores, err := s.perf.Scores(symbol, timeframe)
	if err != nil {
		return nil, err
	}

	normalized := regime.Normalize()
	scores := make([]StrategyScore, 0, len(candidates))
	for _, spec := range candidates {
		regimeScore := regimeAffinity(spec.Regimes, normalized)
		perfScore, ok := perfScores[spec.Name]
		if !ok {
			perfScore = neutralPerfScore
		}
		final := regimeWeight*regimeScore + perfWeight*perfScore
		scores = append(scores, StrategyScore{
			Strategy: spec.Name,
			Score:    final,
			Regime:   regimeScore,
			Perf:     perfScore,
			Notes:    fmt.Sprintf("regime=%s, base=%.2f, perf=%.2f", regime, regimeScore, perfScore),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores, nil
}

func regimeAffinity(declared []string, normalized string) float64 {
	if len(declared) == 0 {
		return regimeAgnosticScore
	}
	for _, r := range declared {
		if r == normalized {
			return regimeMatchScore
		}
	}
	return regimeMismatchScore
}
