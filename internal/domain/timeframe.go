package domain

import (
	"fmt"
	"strconv"
	"time"
)

var timeframeSeconds = map[string]int64{
	"1m":  60,
	"3m":  180,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"2h":  7200,
	"4h":  14400,
	"6h":  21600,
	"12h": 43200,
	"1d":  86400,
}

// TimeframeMs returns the bar interval in milliseconds for timeframes such
// as "15m", "1h" or "1d".
func TimeframeMs(timeframe string) (int64, error) {
	if seconds, ok := timeframeSeconds[timeframe]; ok {
		return seconds * 1000, nil
	}
	if len(timeframe) < 2 {
		return 0, fmt.Errorf("unsupported timeframe: %q", timeframe)
	}
	n, err := strconv.Atoi(timeframe[:len(timeframe)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unsupported timeframe: %q", timeframe)
	}
	switch timeframe[len(timeframe)-1] {
	case 'm':
		return int64(n) * 60 * 1000, nil
	case 'h':
		return int64(n) * 60 * 60 * 1000, nil
	case 'd':
		return int64(n) * 24 * 60 * 60 * 1000, nil
	}
	return 0, fmt.Errorf("unsupported timeframe: %q", timeframe)
}

// UTCNowMs returns the current UTC time in milliseconds since epoch.
// Market-data rows use milliseconds; operational rows use seconds.
func UTCNowMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// UTCNowS returns the current UTC time in seconds since epoch.
func UTCNowS() int64 {
	return time.Now().UTC().Unix()
}
