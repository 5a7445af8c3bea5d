package decision

// Allocation is one selected strategy and its portfolio weight
type Allocation struct {
	Strategy string  `json:"strategy"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Notes    string  `json:"notes"`
}

// Selector turns ranked scores into normalized portfolio weights
type Selector struct {
	MinScore float64
	TopN     int
}

// NewSelector creates a selector with the given cutoffs
func NewSelector(minScore float64, topN int) *Selector {
	return &Selector{MinScore: minScore, TopN: topN}
}

// Select keeps the top N scores at or above the minimum and spreads
// weight proportionally to score. Weights of the returned allocations sum
// to 1 unless nothing qualifies.
func (s *Selector) Select(scores []StrategyScore) []Allocation {
	var kept []StrategyScore
	for _, score := range scores {
		if score.Score >= s.MinScore {
			kept = append(kept, score)
		}
	}
	if s.TopN > 0 && len(kept) > s.TopN {
		kept = kept[:s.TopN]
	}
	if len(kept) == 0 {
		return nil
	}

	total := 0.0
	for _, score := range kept {
		total += score.Score
	}
	if total <= 0 {
		total = 1.0
	}

	allocations := make([]Allocation, 0, len(kept))
	for _, score := range kept {
		allocations = append(allocations, Allocation{
			Strategy: score.Strategy,
			Score:    score.Score,
			Weight:   score.Score / total,
			Notes:    score.Notes,
		})
	}
	return allocations
}
