package risk

import (
	"fmt"

	"github.com/aristath/alpha-arena/internal/domain"
)

// Rule inspects one order and either passes it or names a denial reason
type Rule interface {
	Name() string
	Check(order *domain.Order) (allowed bool, reason string)
}

// MaxNotional denies orders whose price*amount exceeds a cap. Orders
// without a usable price are denied outright, the cap cannot be verified.
type MaxNotional struct {
	Max float64
}

// Name returns the rule identifier
func (r *MaxNotional) Name() string { return "max_notional" }

// Check enforces the notional cap
func (r *MaxNotional) Check(order *domain.Order) (bool, string) {
	if order.Price == nil || *order.Price <= 0 {
		return false, "missing price for notional check"
	}
	notional := *order.Price * order.Amount
	if notional > r.Max {
		return false, fmt.Sprintf("notional %.2f exceeds max %.2f", notional, r.Max)
	}
	return true, ""
}

// MaxLeverage denies orders requesting leverage beyond a cap. Orders
// without a leverage hint pass, the exchange default applies.
type MaxLeverage struct {
	Max float64
}

// Name returns the rule identifier
func (r *MaxLeverage) Name() string { return "max_leverage" }

// Check enforces the leverage cap
func (r *MaxLeverage) Check(order *domain.Order) (bool, string) {
	if order.Leverage == nil {
		return true, ""
	}
	if *order.Leverage > r.Max {
		return false, fmt.Sprintf("leverage %v exceeds max %v", *order.Leverage, r.Max)
	}
	return true, ""
}

// CircuitBreaker denies orders whose originating signal was marked as
// failed or whose confidence falls below a floor.
type CircuitBreaker struct {
	MinConfidence float64
}

// Name returns the rule identifier
func (r *CircuitBreaker) Name() string { return "circuit_breaker" }

// Check enforces the signal quality gate
func (r *CircuitBreaker) Check(order *domain.Order) (bool, string) {
	if order.SignalOK != nil && !*order.SignalOK {
		return false, "signal marked as failed"
	}
	if order.Confidence != nil && *order.Confidence < r.MinConfidence {
		return false, fmt.Sprintf("confidence %.2f below %.2f", *order.Confidence, r.MinConfidence)
	}
	return true, ""
}
