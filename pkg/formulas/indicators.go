package formulas

import (
	"github.com/markcheno/go-talib"
)

// RSI calculates the Relative Strength Index series
//
// RSI Formula:
//   RSI = 100 - (100 / (1 + RS))
//   where RS = Average Gain / Average Loss over N periods
func RSI(closes []float64, period int) []float64 {
	if len(closes) < period+1 {
		return make([]float64, len(closes))
	}
	return talib.Rsi(closes, period)
}

// EMA calculates the exponential moving average series
func EMA(values []float64, period int) []float64 {
	if len(values) < period {
		return make([]float64, len(values))
	}
	return talib.Ema(values, period)
}

// SMA calculates the simple moving average series
func SMA(values []float64, period int) []float64 {
	if len(values) < period {
		return make([]float64, len(values))
	}
	return talib.Sma(values, period)
}

// MACD returns the MACD line, signal line, and histogram series
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine, hist []float64) {
	if len(closes) < slow+signal {
		empty := make([]float64, len(closes))
		return empty, make([]float64, len(closes)), make([]float64, len(closes))
	}
	return talib.Macd(closes, fast, slow, signal)
}

// ADX calculates the Average Directional Index series (trend strength)
func ADX(highs, lows, closes []float64, period int) []float64 {
	if len(closes) < 2*period {
		return make([]float64, len(closes))
	}
	return talib.Adx(highs, lows, closes, period)
}

// ATR calculates the Average True Range series
func ATR(highs, lows, closes []float64, period int) []float64 {
	if len(closes) < period+1 {
		return make([]float64, len(closes))
	}
	return talib.Atr(highs, lows, closes, period)
}

// BollingerBands returns upper/mid/lower band series plus the bandwidth
// series ((upper-lower)/mid, 0 where mid is 0).
func BollingerBands(closes []float64, period int, stdDev float64) (upper, mid, lower, bandwidth []float64) {
	n := len(closes)
	if n < period {
		empty := make([]float64, n)
		return empty, make([]float64, n), make([]float64, n), make([]float64, n)
	}
	upper, mid, lower = talib.BBands(closes, period, stdDev, stdDev, talib.SMA)
	bandwidth = make([]float64, n)
	for i := range closes {
		if mid[i] != 0 {
			bandwidth[i] = (upper[i] - lower[i]) / mid[i]
		}
	}
	return upper, mid, lower, bandwidth
}

// RollingMean returns the simple rolling mean with zeros during warm-up
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}
