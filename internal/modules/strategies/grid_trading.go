package strategies

import (
	"math"
	"sync"

	"github.com/aristath/alpha-arena/pkg/formulas"
)

// GridTrading lays evenly spaced levels around the Bollinger midline and
// buys crossings downward, selling them back on the way up. Held levels
// are per-instance state, so one instance must own one (symbol,
// timeframe) series.
type GridTrading struct {
	Levels      int
	Period      int
	StdDev      float64
	MinRange    float64
	PerGridSize float64
	MaxPosition float64
	Confidence  float64

	mu   sync.Mutex
	held map[int]float64 // level index -> entry price
}

// NewGridTrading creates the strategy with its default parameters
func NewGridTrading() *GridTrading {
	return &GridTrading{
		Levels:      5,
		Period:      20,
		StdDev:      2.0,
		MinRange:    0.04,
		PerGridSize: 0.05,
		MaxPosition: 0.30,
		Confidence:  0.7,
		held:        make(map[int]float64),
	}
}

// Name implements Strategy
func (s *GridTrading) Name() string { return "grid_trading" }

// Evaluate implements Strategy
func (s *GridTrading) Evaluate(in Input) (*Signal, error) {
	n := len(in.Candles)
	if n < s.Period+2 {
		return hold(s.Name(), in, ReasonNotEnoughData), nil
	}

	closes := make([]float64, n)
	for i, c := range in.Candles {
		closes[i] = c.Close
	}

	_, mid, _, bandwidth := formulas.BollingerBands(closes, s.Period, s.StdDev)

	i := n - 1
	price := closes[i]
	prevPrice := closes[i-1]
	center := mid[i]
	if center <= 0 {
		return hold(s.Name(), in, ReasonDataError), nil
	}

	gridRange := math.Max(s.MinRange, bandwidth[i]*2)
	low := center * (1 - gridRange/2)
	high := center * (1 + gridRange/2)
	step := (high - low) / float64(s.Levels-1)

	s.mu.Lock()
	defer s.mu.Unlock()

	// crossing a level downward arms a buy for the closest unheld level
	buyLevel := -1
	for lvl := 0; lvl < s.Levels; lvl++ {
		levelPrice := low + float64(lvl)*step
		if prevPrice > levelPrice && price <= levelPrice {
			if _, taken := s.held[lvl]; !taken {
				if buyLevel == -1 || levelPrice < low+float64(buyLevel)*step {
					buyLevel = lvl
				}
			}
		}
	}
	if buyLevel >= 0 && float64(len(s.held)+1)*s.PerGridSize <= s.MaxPosition {
		s.held[buyLevel] = price
		size := s.PerGridSize
		return &Signal{
			Strategy:     s.Name(),
			Symbol:       in.Symbol,
			Timeframe:    in.Timeframe,
			Type:         SignalBuy,
			Confidence:   s.Confidence,
			Timestamp:    in.LastTimestamp(),
			Price:        price,
			PositionSize: &size,
			Reasoning:    "grid_level_crossed_down",
		}, nil
	}

	// crossing a held level upward releases the highest held level
	sellLevel := -1
	for lvl := range s.held {
		levelPrice := low + float64(lvl)*step
		if prevPrice < levelPrice && price >= levelPrice && lvl > sellLevel {
			sellLevel = lvl
		}
	}
	if sellLevel >= 0 {
		delete(s.held, sellLevel)
		size := s.PerGridSize
		return &Signal{
			Strategy:     s.Name(),
			Symbol:       in.Symbol,
			Timeframe:    in.Timeframe,
			Type:         SignalSell,
			Confidence:   s.Confidence,
			Timestamp:    in.LastTimestamp(),
			Price:        price,
			PositionSize: &size,
			Reasoning:    "grid_level_crossed_up",
		}, nil
	}
	return hold(s.Name(), in, ReasonNoSignal), nil
}
