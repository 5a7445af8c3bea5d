// Package decision classifies the market regime, scores strategies and
// turns the winners into a weighted portfolio decision.
package decision

import (
	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/modules/strategies"
	"github.com/aristath/alpha-arena/pkg/formulas"
)

// Regime labels the current market character
type Regime string

const (
	RegimeUnknown        Regime = "UNKNOWN"
	RegimeBreakout       Regime = "BREAKOUT"
	RegimeStrongTrend    Regime = "STRONG_TREND"
	RegimeWeakTrend      Regime = "WEAK_TREND"
	RegimeHighVolatility Regime = "HIGH_VOLATILITY"
	RegimeLowVolatility  Regime = "LOW_VOLATILITY"
	RegimeRange          Regime = "RANGE"
)

// Indicator keys published in decision payloads
const (
	KeyADX             = "ADX"
	KeyRSI             = "RSI"
	KeyBBWidth         = "BB_Width"
	KeyBBWidthRatio    = "BB_Width_Ratio"
	KeyMACD            = "MACD"
	KeyMACDSignal      = "MACD_Signal"
	KeyMACDHist        = "MACD_Hist"
	KeyATRPercentile   = "ATR_Percentile"
	KeyPriceEfficiency = "Price_Efficiency"
	KeyVolumeTrend     = "Volume_Trend"
)

// Classifier derives a regime label from indicator readings
type Classifier struct {
	ADXThreshold     float64
	BBWidthThreshold float64
}

// NewClassifier creates a classifier with the given thresholds
func NewClassifier(adxThreshold, bbWidthThreshold float64) *Classifier {
	return &Classifier{
		ADXThreshold:     adxThreshold,
		BBWidthThreshold: bbWidthThreshold,
	}
}

// Indicators computes the classifier's indicator map from a candle window
func (c *Classifier) Indicators(candles []domain.Candle) map[string]float64 {
	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, cd := range candles {
		closes[i] = cd.Close
		highs[i] = cd.High
		lows[i] = cd.Low
		volumes[i] = cd.Volume
	}

	out := make(map[string]float64)
	if n == 0 {
		return out
	}
	i := n - 1

	adx := formulas.ADX(highs, lows, closes, 14)
	rsi := formulas.RSI(closes, 14)
	macd, macdSignal, macdHist := formulas.MACD(closes, 12, 26, 9)
	_, _, _, bandwidth := formulas.BollingerBands(closes, 20, 2.0)
	bwMA := formulas.RollingMean(bandwidth, 20)
	atrPct := formulas.ATRPercentile(highs, lows, closes, 14, 100)
	priceEff := formulas.PriceEfficiency(closes, 20)
	volTrend := formulas.VolumeTrend(volumes, 20)

	out[KeyADX] = adx[i]
	out[KeyRSI] = rsi[i]
	out[KeyBBWidth] = bandwidth[i]
	if bwMA[i] > 0 {
		out[KeyBBWidthRatio] = bandwidth[i] / bwMA[i]
	}
	out[KeyMACD] = macd[i]
	out[KeyMACDSignal] = macdSignal[i]
	out[KeyMACDHist] = macdHist[i]
	out[KeyATRPercentile] = atrPct[i]
	out[KeyPriceEfficiency] = priceEff[i]
	out[KeyVolumeTrend] = volTrend[i]
	return out
}

// Classify applies the regime rules in priority order. The first matching
// rule wins.
func (c *Classifier) Classify(ind map[string]float64) Regime {
	adx := ind[KeyADX]
	bbWidth := ind[KeyBBWidth]
	bbRatio := ind[KeyBBWidthRatio]
	atrPct := ind[KeyATRPercentile]
	priceEff := ind[KeyPriceEfficiency]
	volTrend := ind[KeyVolumeTrend]

	switch {
	case bbRatio >= 1.5 && bbWidth > c.BBWidthThreshold && volTrend >= 0.2:
		return RegimeBreakout
	case adx > 30 && priceEff > 0.7:
		return RegimeStrongTrend
	case adx >= 20 && adx <= 30:
		return RegimeWeakTrend
	case atrPct >= 80:
		return RegimeHighVolatility
	case atrPct <= 20:
		return RegimeLowVolatility
	case adx < 20 && bbWidth <= c.BBWidthThreshold:
		return RegimeRange
	case adx >= c.ADXThreshold:
		return RegimeWeakTrend
	case bbWidth <= c.BBWidthThreshold:
		return RegimeRange
	default:
		return RegimeBreakout
	}
}

// Normalize folds the fine-grained regimes onto the affinity labels the
// strategy registry declares
func (r Regime) Normalize() string {
	switch r {
	case RegimeStrongTrend, RegimeWeakTrend:
		return strategies.RegimeTrend
	case RegimeHighVolatility:
		return strategies.RegimeBreakout
	case RegimeLowVolatility:
		return strategies.RegimeRange
	case RegimeRange:
		return strategies.RegimeRange
	case RegimeBreakout:
		return strategies.RegimeBreakout
	default:
		return string(r)
	}
}
