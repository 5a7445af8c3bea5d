package strategies

import (
	"github.com/aristath/alpha-arena/pkg/formulas"
)

// EMATrend trades aligned EMA stacks confirmed by MACD, volume and RSI
type EMATrend struct {
	FastPeriod   int
	MidPeriod    int
	SlowPeriod   int
	RSIPeriod    int
	ATRPeriod    int
	VolumePeriod int
	VolumeFactor float64
	Confidence   float64
	StopATR      float64
	TargetATR    float64
}

// NewEMATrend creates the strategy with its default parameters
func NewEMATrend() *EMATrend {
	return &EMATrend{
		FastPeriod:   9,
		MidPeriod:    21,
		SlowPeriod:   55,
		RSIPeriod:    14,
		ATRPeriod:    14,
		VolumePeriod: 20,
		VolumeFactor: 1.2,
		Confidence:   0.85,
		StopATR:      2.0,
		TargetATR:    4.0,
	}
}

// Name implements Strategy
func (s *EMATrend) Name() string { return "ema_trend" }

// Evaluate implements Strategy
func (s *EMATrend) Evaluate(in Input) (*Signal, error) {
	n := len(in.Candles)
	if n < s.SlowPeriod+1 {
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

	fast := formulas.EMA(closes, s.FastPeriod)
	mid := formulas.EMA(closes, s.MidPeriod)
	slow := formulas.EMA(closes, s.SlowPeriod)
	macd, signalLine, _ := formulas.MACD(closes, 12, 26, 9)
	rsi := formulas.RSI(closes, s.RSIPeriod)
	atr := formulas.ATR(highs, lows, closes, s.ATRPeriod)
	volMA := formulas.RollingMean(volumes, s.VolumePeriod)

	i := n - 1
	price := closes[i]
	volumeOK := volMA[i] > 0 && volumes[i] > s.VolumeFactor*volMA[i]

	bullStack := fast[i] > mid[i] && mid[i] > slow[i]
	bearStack := fast[i] < mid[i] && mid[i] < slow[i]

	if bullStack && macd[i] > signalLine[i] && volumeOK && rsi[i] > 50 && rsi[i] < 70 {
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
			Reasoning:  "ema_stack_bullish_macd_volume_confirmed",
		}, nil
	}
	if bearStack && macd[i] < signalLine[i] && volumeOK && rsi[i] > 30 && rsi[i] < 50 {
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
			Reasoning:  "ema_stack_bearish_macd_volume_confirmed",
		}, nil
	}
	return hold(s.Name(), in, ReasonNoSignal), nil
}
