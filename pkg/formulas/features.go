package formulas

import (
	"math"
	"sort"
)

// ATRPercentile ranks the current ATR value within a trailing lookback
// window, as a 0-100 percentile. Warm-up entries (before the ATR is
// defined, or with fewer than two defined values in the window) are 0.
func ATRPercentile(highs, lows, closes []float64, period, lookback int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	atr := ATR(highs, lows, closes, period)
	for i := period; i < n; i++ {
		start := i - lookback + 1
		if start < period {
			start = period
		}
		window := atr[start : i+1]
		if len(window) < 2 {
			continue
		}
		current := atr[i]
		sorted := make([]float64, len(window))
		copy(sorted, window)
		sort.Float64s(sorted)
		rank := sort.SearchFloat64s(sorted, current)
		// upper-bound rank: count values <= current
		for rank < len(sorted) && sorted[rank] <= current {
			rank++
		}
		out[i] = float64(rank) / float64(len(sorted)) * 100.0
	}
	return out
}

// PriceEfficiency measures |net move| / sum(|per-bar move|) over the period.
// Values near 1 mean directional movement, near 0 mean chop.
func PriceEfficiency(closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	for i := period; i < n; i++ {
		net := math.Abs(closes[i] - closes[i-period])
		var total float64
		for j := i - period + 1; j <= i; j++ {
			total += math.Abs(closes[j] - closes[j-1])
		}
		if total > 0 {
			out[i] = net / total
		}
	}
	return out
}

// VolumeTrend compares the current volume moving average with the moving
// average one period earlier: (ma - prev_ma) / prev_ma, 0 where undefined.
func VolumeTrend(volumes []float64, period int) []float64 {
	n := len(volumes)
	out := make([]float64, n)
	ma := RollingMean(volumes, period)
	for i := 2 * period; i < n; i++ {
		prev := ma[i-period]
		if prev != 0 {
			out[i] = (ma[i] - prev) / prev
		}
	}
	return out
}
