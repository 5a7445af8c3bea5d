package formulas

import (
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// RollingStdDev returns the rolling sample standard deviation with zeros
// during warm-up
func RollingStdDev(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		out[i] = StdDev(values[i-window+1 : i+1])
	}
	return out
}

// ZScore returns (value - mean) / std, or 0 when std is not positive
func ZScore(value, mean, std float64) float64 {
	if std <= 0 {
		return 0
	}
	return (value - mean) / std
}
