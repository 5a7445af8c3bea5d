// Package allocation turns weighted strategy allocations into a single
// net rebalancing order against current positions.
package allocation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/modules/decision"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
)

// PlannedOrder is one sized order proposal, not yet risk-checked
type PlannedOrder struct {
	Strategy   string           `json:"strategy"`
	Symbol     string           `json:"symbol"`
	Side       domain.OrderSide `json:"side"`
	Type       domain.OrderType `json:"type"`
	Quantity   float64          `json:"quantity"`
	Price      float64          `json:"price"` // reference price used for sizing
	Confidence float64          `json:"confidence"`
	SignalOK   bool             `json:"signal_ok"`
}

// PlanLine explains how one allocation contributed to the net order
type PlanLine struct {
	Strategy        string  `json:"strategy"`
	Weight          float64 `json:"weight"`
	TargetNotional  float64 `json:"target_notional"`  // this allocation's share
	CurrentNotional float64 `json:"current_notional"` // net exposure before the order
	Diff            float64 `json:"diff"`             // net diff across all allocations
	Action          string  `json:"action"`           // order | skip_small_diff | skip_below_min_notional
}

// Allocator sizes one net order from portfolio weights
type Allocator struct {
	market         *marketdata.Service
	globalLeverage float64
	diffThreshold  float64
	minNotional    float64
	log            zerolog.Logger
}

// NewAllocator creates a new portfolio allocator
func NewAllocator(market *marketdata.Service, globalLeverage, diffThreshold, minNotional float64, log zerolog.Logger) *Allocator {
	return &Allocator{
		market:         market,
		globalLeverage: globalLeverage,
		diffThreshold:  diffThreshold,
		minNotional:    minNotional,
		log:            log.With().Str("component", "allocator").Logger(),
	}
}

// BuildOrders reconciles the summed target exposure of all allocations
// against the current net position and sizes at most one market order
// covering the difference. Zero or negative equity produces an empty plan.
func (a *Allocator) BuildOrders(symbol string, equity float64, allocations []decision.Allocation, positions []domain.Position) ([]PlannedOrder, []PlanLine, error) {
	if equity <= 0 {
		return nil, nil, nil
	}

	price, err := a.market.LastPrice(symbol)
	if err != nil {
		return nil, nil, err
	}
	if price == nil || *price <= 0 {
		return nil, nil, fmt.Errorf("no reference price for %s", symbol)
	}

	current := currentNotional(symbol, positions, *price)

	target := 0.0
	for _, alloc := range allocations {
		target += equity * alloc.Weight * a.globalLeverage
	}
	diff := target - current

	var action string
	switch {
	case math.Abs(diff) < a.diffThreshold:
		action = "skip_small_diff"
	case a.minNotional > 0 && math.Abs(diff) < a.minNotional:
		action = "skip_below_min_notional"
	default:
		action = "order"
	}

	var plan []PlanLine
	for _, alloc := range allocations {
		if alloc.Weight == 0 {
			continue
		}
		plan = append(plan, PlanLine{
			Strategy:        alloc.Strategy,
			Weight:          alloc.Weight,
			TargetNotional:  equity * alloc.Weight * a.globalLeverage,
			CurrentNotional: current,
			Diff:            diff,
			Action:          action,
		})
	}
	if action != "order" || len(allocations) == 0 {
		return nil, plan, nil
	}

	side := domain.SideBuy
	if diff < 0 {
		side = domain.SideSell
	}
	// allocations arrive sorted by score; the order carries the top one
	lead := allocations[0]
	order := PlannedOrder{
		Strategy:   lead.Strategy,
		Symbol:     symbol,
		Side:       side,
		Type:       domain.TypeMarket,
		Quantity:   math.Abs(diff) / *price,
		Price:      *price,
		Confidence: lead.Score,
		SignalOK:   true,
	}
	return []PlannedOrder{order}, plan, nil
}

// currentNotional values open positions at the reference price, longs
// positive and shorts negative
func currentNotional(symbol string, positions []domain.Position, price float64) float64 {
	total := 0.0
	for _, p := range positions {
		if p.Symbol != symbol {
			continue
		}
		total += p.SignedSize() * price
	}
	return total
}
