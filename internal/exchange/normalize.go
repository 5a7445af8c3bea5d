package exchange

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/alpha-arena/internal/domain"
)

// Error is a structured exchange error carrying the venue's error code
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("exchange error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("exchange error: %s", e.Message)
}

// IsPosSideError reports whether err is a position-side mismatch rejection.
// OKX signals these with sCode 51000-range codes; the message substring is
// the fallback for venues that only return text.
func IsPosSideError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		switch e.Code {
		case "51000", "51010", "51169":
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "posside")
}

// ParseFloat converts a string field into a float pointer, nil for empty or
// unparseable values
func ParseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseInt converts a string field into an int64 pointer, nil for empty or
// unparseable values
func ParseInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ToMs interprets a timestamp as milliseconds, promoting second-precision
// values (anything below 1e12)
func ToMs(ts int64) int64 {
	if ts != 0 && ts < 1_000_000_000_000 {
		return ts * 1000
	}
	return ts
}

// ToS converts a millisecond timestamp to seconds
func ToS(tsMs int64) int64 {
	return ToMs(tsMs) / 1000
}

// NormalizeSide maps raw side strings to domain sides
func NormalizeSide(raw string) (domain.OrderSide, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "b", "long":
		return domain.SideBuy, nil
	case "sell", "s", "short":
		return domain.SideSell, nil
	}
	return "", fmt.Errorf("unknown order side %q", raw)
}

// NormalizeOrderType maps raw order type strings to domain types
func NormalizeOrderType(raw string) (domain.OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "market":
		return domain.TypeMarket, nil
	case "limit", "post_only", "fok", "ioc":
		return domain.TypeLimit, nil
	}
	return "", fmt.Errorf("unknown order type %q", raw)
}

// MapStatus folds a raw exchange status plus fill progress into a domain
// status. Fill quantities take precedence over the raw string for live
// orders so that partial fills surface even when the venue still reports
// the order as open.
func MapStatus(raw string, amount, filled *float64) domain.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "canceled", "cancelled":
		return domain.StatusCanceled
	case "rejected":
		return domain.StatusRejected
	}
	if amount != nil && filled != nil && *amount > 0 && *filled > 0 {
		if *filled >= *amount {
			return domain.StatusFilled
		}
		return domain.StatusPartiallyFilled
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "closed", "filled":
		return domain.StatusFilled
	case "open", "live", "new", "partially_filled":
		return domain.StatusNew
	}
	return domain.StatusNew
}
