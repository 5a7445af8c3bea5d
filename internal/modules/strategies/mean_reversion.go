package strategies

import (
	"github.com/aristath/alpha-arena/pkg/formulas"
)

// MeanReversion fades stretched z-scores back toward the rolling mean.
// A strong ADX reading disables entries so the strategy never fights an
// established trend, but exits stay live.
type MeanReversion struct {
	Period     int
	EntryZ     float64
	ExitZ      float64
	RSIPeriod  int
	RSIBuyMax  float64
	RSISellMin float64
	ADXPeriod  int
	MaxADX     float64
	EntryConf  float64
	ExitConf   float64
	StopPct    float64
}

// NewMeanReversion creates the strategy with its default parameters
func NewMeanReversion() *MeanReversion {
	return &MeanReversion{
		Period:     20,
		EntryZ:     2.0,
		ExitZ:      0.5,
		RSIPeriod:  14,
		RSIBuyMax:  30,
		RSISellMin: 70,
		ADXPeriod:  14,
		MaxADX:     25,
		EntryConf:  0.78,
		ExitConf:   0.6,
		StopPct:    0.03,
	}
}

// Name implements Strategy
func (s *MeanReversion) Name() string { return "mean_reversion" }

// Evaluate implements Strategy
func (s *MeanReversion) Evaluate(in Input) (*Signal, error) {
	n := len(in.Candles)
	if n < 2*s.ADXPeriod+1 || n < s.Period+1 {
		return hold(s.Name(), in, ReasonNotEnoughData), nil
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range in.Candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	mean := formulas.RollingMean(closes, s.Period)
	std := formulas.RollingStdDev(closes, s.Period)
	rsi := formulas.RSI(closes, s.RSIPeriod)
	adx := formulas.ADX(highs, lows, closes, s.ADXPeriod)

	i := n - 1
	price := closes[i]
	z := formulas.ZScore(price, mean[i], std[i])
	trending := adx[i] > s.MaxADX

	// unwind once the stretch has mostly reverted
	if z >= -s.ExitZ && z <= s.ExitZ {
		if in.HasLong() {
			return s.exit(in, SignalCloseLong, "z_score_reverted"), nil
		}
		if in.HasShort() {
			return s.exit(in, SignalCloseShort, "z_score_reverted"), nil
		}
	}

	if trending {
		return hold(s.Name(), in, ReasonNoSignal), nil
	}

	if z <= -s.EntryZ && rsi[i] < s.RSIBuyMax {
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalBuy,
			Confidence: s.EntryConf,
			Timestamp:  in.LastTimestamp(),
			Price:      price,
			StopLoss:   ptr(price * (1 - s.StopPct)),
			TakeProfit: ptr(mean[i]),
			Reasoning:  "oversold_stretch_below_mean",
		}, nil
	}
	if z >= s.EntryZ && rsi[i] > s.RSISellMin {
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalSell,
			Confidence: s.EntryConf,
			Timestamp:  in.LastTimestamp(),
			Price:      price,
			StopLoss:   ptr(price * (1 + s.StopPct)),
			TakeProfit: ptr(mean[i]),
			Reasoning:  "overbought_stretch_above_mean",
		}, nil
	}
	return hold(s.Name(), in, ReasonNoSignal), nil
}

func (s *MeanReversion) exit(in Input, typ SignalType, reason string) *Signal {
	return &Signal{
		Strategy:   s.Name(),
		Symbol:     in.Symbol,
		Timeframe:  in.Timeframe,
		Type:       typ,
		Confidence: s.ExitConf,
		Timestamp:  in.LastTimestamp(),
		Price:      in.LastClose(),
		Reasoning:  reason,
	}
}
