package strategies

import (
	"github.com/aristath/alpha-arena/pkg/formulas"
)

// Breakout trades closes beyond the previous N-bar extremes on expanding
// volume. The broken level becomes the stop; the target mirrors the risk
// twice over.
type Breakout struct {
	Lookback     int
	Buffer       float64
	VolumePeriod int
	VolumeFactor float64
	Confidence   float64
	RewardRisk   float64
}

// NewBreakout creates the strategy with its default parameters
func NewBreakout() *Breakout {
	return &Breakout{
		Lookback:     20,
		Buffer:       1.002,
		VolumePeriod: 20,
		VolumeFactor: 1.5,
		Confidence:   0.8,
		RewardRisk:   2.0,
	}
}

// Name implements Strategy
func (s *Breakout) Name() string { return "breakout" }

// Evaluate implements Strategy
func (s *Breakout) Evaluate(in Input) (*Signal, error) {
	n := len(in.Candles)
	if n < s.Lookback+1 {
		return hold(s.Name(), in, ReasonNotEnoughData), nil
	}

	volumes := make([]float64, n)
	for i, c := range in.Candles {
		volumes[i] = c.Volume
	}
	volMA := formulas.RollingMean(volumes, s.VolumePeriod)

	i := n - 1
	price := in.Candles[i].Close

	// extremes of the window before the current bar
	prevHigh := in.Candles[i-s.Lookback].High
	prevLow := in.Candles[i-s.Lookback].Low
	for _, c := range in.Candles[i-s.Lookback : i] {
		if c.High > prevHigh {
			prevHigh = c.High
		}
		if c.Low < prevLow {
			prevLow = c.Low
		}
	}

	volumeOK := volMA[i] > 0 && volumes[i] >= s.VolumeFactor*volMA[i]
	if !volumeOK {
		return hold(s.Name(), in, ReasonNoSignal), nil
	}

	if price > prevHigh*s.Buffer {
		risk := price - prevHigh
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalBuy,
			Confidence: s.Confidence,
			Timestamp:  in.LastTimestamp(),
			Price:      price,
			StopLoss:   ptr(prevHigh),
			TakeProfit: ptr(price + s.RewardRisk*risk),
			Reasoning:  "range_high_breakout_volume_confirmed",
		}, nil
	}
	if price < prevLow/s.Buffer {
		risk := prevLow - price
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalSell,
			Confidence: s.Confidence,
			Timestamp:  in.LastTimestamp(),
			Price:      price,
			StopLoss:   ptr(prevLow),
			TakeProfit: ptr(price - s.RewardRisk*risk),
			Reasoning:  "range_low_breakdown_volume_confirmed",
		}, nil
	}
	return hold(s.Name(), in, ReasonNoSignal), nil
}
