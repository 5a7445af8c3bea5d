package strategies

import (
	"github.com/aristath/alpha-arena/pkg/formulas"
)

// Momentum rides persistent directional moves confirmed by volume and an
// accelerating RSI
type Momentum struct {
	Period       int
	MinChange    float64
	VolumePeriod int
	VolumeFactor float64
	RSIPeriod    int
	MinRSIDelta  float64
	ATRPeriod    int
	Confidence   float64
	StopATR      float64
	TargetATR    float64
}

// NewMomentum creates the strategy with its default parameters
func NewMomentum() *Momentum {
	return &Momentum{
		Period:       14,
		MinChange:    0.05,
		VolumePeriod: 20,
		VolumeFactor: 1.3,
		RSIPeriod:    14,
		MinRSIDelta:  5.0,
		ATRPeriod:    14,
		Confidence:   0.8,
		StopATR:      2.5,
		TargetATR:    5.0,
	}
}

// Name implements Strategy
func (s *Momentum) Name() string { return "momentum" }

// Evaluate implements Strategy
func (s *Momentum) Evaluate(in Input) (*Signal, error) {
	n := len(in.Candles)
	if n < 2*s.Period+1 {
		return hold(s.Name(), in, ReasonNotEnoughData), nil
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range in.Candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	rsi := formulas.RSI(closes, s.RSIPeriod)
	atr := formulas.ATR(highs, lows, closes, s.ATRPeriod)
	volMA := formulas.RollingMean(volumes, s.VolumePeriod)

	i := n - 1
	price := closes[i]

	change := pctChange(closes, i, s.Period)
	prevChange := pctChange(closes, i-1, s.Period)
	rsiDelta := rsi[i] - rsi[i-s.Period]
	volumeOK := volMA[i] > 0 && volumes[i] >= s.VolumeFactor*volMA[i]

	// persistence: the move must already have been underway last bar
	if change >= s.MinChange && prevChange > 0 && rsiDelta >= s.MinRSIDelta && volumeOK {
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalBuy,
			Confidence: s.Confidence,
			Timestamp:  in.LastTimestamp(),
			Price:      price,
			StopLoss:   ptr(price - s.StopATR*atr[i]),
			TakeProfit: ptr(price + s.TargetATR*atr[i]),
			Reasoning:  "momentum_up_persistent_volume_confirmed",
		}, nil
	}
	if change <= -s.MinChange && prevChange < 0 && rsiDelta <= -s.MinRSIDelta && volumeOK {
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalSell,
			Confidence: s.Confidence,
			Timestamp:  in.LastTimestamp(),
			Price:      price,
			StopLoss:   ptr(price + s.StopATR*atr[i]),
			TakeProfit: ptr(price - s.TargetATR*atr[i]),
			Reasoning:  "momentum_down_persistent_volume_confirmed",
		}, nil
	}
	return hold(s.Name(), in, ReasonNoSignal), nil
}

func pctChange(closes []float64, i, period int) float64 {
	if i-period < 0 || closes[i-period] == 0 {
		return 0
	}
	return (closes[i] - closes[i-period]) / closes[i-period]
}
