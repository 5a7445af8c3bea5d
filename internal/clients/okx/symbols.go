package okx

import (
	"fmt"
	"strings"
)

// instrument maps a unified symbol like "BTC/USDT:USDT" to the OKX
// instId ("BTC-USDT-SWAP") and instType ("SWAP"). Symbols without a
// settlement suffix are treated as spot.
func instrument(symbol string) (instID, instType string, err error) {
	base := symbol
	settle := ""
	if idx := strings.Index(symbol, ":"); idx >= 0 {
		base = symbol[:idx]
		settle = symbol[idx+1:]
	}

	parts := strings.Split(base, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid symbol %q", symbol)
	}

	if settle != "" {
		return parts[0] + "-" + parts[1] + "-SWAP", "SWAP", nil
	}
	return parts[0] + "-" + parts[1], "SPOT", nil
}

// bar maps a unified timeframe to the OKX bar parameter. Hours and above
// are uppercase on OKX.
func bar(timeframe string) string {
	if strings.HasSuffix(timeframe, "h") || strings.HasSuffix(timeframe, "d") || strings.HasSuffix(timeframe, "w") {
		return strings.ToUpper(timeframe)
	}
	return timeframe
}
