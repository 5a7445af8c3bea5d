package strategies

import (
	"github.com/aristath/alpha-arena/pkg/formulas"
)

// BollingerRange fades band touches inside quiet, narrow ranges
type BollingerRange struct {
	Period       int
	StdDev       float64
	MaxBandwidth float64
	TouchFactor  float64
	RSIPeriod    int
	RSIBuyMax    float64
	RSISellMin   float64
	Confidence   float64
	StopPct      float64
}

// NewBollingerRange creates the strategy with its default parameters
func NewBollingerRange() *BollingerRange {
	return &BollingerRange{
		Period:       20,
		StdDev:       2.0,
		MaxBandwidth: 0.04,
		TouchFactor:  1.005,
		RSIPeriod:    14,
		RSIBuyMax:    35,
		RSISellMin:   65,
		Confidence:   0.75,
		StopPct:      0.02,
	}
}

// Name implements Strategy
func (s *BollingerRange) Name() string { return "bollinger_range" }

// Evaluate implements Strategy
func (s *BollingerRange) Evaluate(in Input) (*Signal, error) {
	n := len(in.Candles)
	if n < s.Period+1 {
		return hold(s.Name(), in, ReasonNotEnoughData), nil
	}

	closes := make([]float64, n)
	for i, c := range in.Candles {
		closes[i] = c.Close
	}

	upper, mid, lower, bandwidth := formulas.BollingerBands(closes, s.Period, s.StdDev)
	rsi := formulas.RSI(closes, s.RSIPeriod)

	i := n - 1
	price := closes[i]

	// the range play only works while the band stays tight
	if bandwidth[i] > s.MaxBandwidth {
		return hold(s.Name(), in, ReasonBandwidthTooWide), nil
	}

	if price <= lower[i]*s.TouchFactor && rsi[i] < s.RSIBuyMax {
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalBuy,
			Confidence: s.Confidence,
			Timestamp:  in.LastTimestamp(),
			Price:      price,
			StopLoss:   ptr(price * (1 - s.StopPct)),
			TakeProfit: ptr(mid[i]),
			Reasoning:  "lower_band_touch_oversold",
		}, nil
	}
	if price >= upper[i]/s.TouchFactor && rsi[i] > s.RSISellMin {
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalSell,
			Confidence: s.Confidence,
			Timestamp:  in.LastTimestamp(),
			Price:      price,
			StopLoss:   ptr(price * (1 + s.StopPct)),
			TakeProfit: ptr(mid[i]),
			Reasoning:  "upper_band_touch_overbought",
		}, nil
	}
	return hold(s.Name(), in, ReasonNoSignal), nil
}
