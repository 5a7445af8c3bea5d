package strategies

// Normalized market regimes a strategy can declare affinity for. An empty
// regime list means the strategy is regime-agnostic.
const (
	RegimeTrend    = "TREND"
	RegimeRange    = "RANGE"
	RegimeBreakout = "BREAKOUT"
)

// Spec is one registry entry. Entries without a factory are reserved
// names whose implementations have not landed yet.
type Spec struct {
	Name    string
	Regimes []string
	Enabled bool
	New     func() Strategy
}

// Implemented reports whether the strategy can be instantiated
func (s Spec) Implemented() bool {
	return s.New != nil
}

// Registry returns every known strategy in registration order
func Registry() []Spec {
	return []Spec{
		{Name: "ema_trend", Regimes: []string{RegimeTrend}, Enabled: true, New: func() Strategy { return NewEMATrend() }},
		{Name: "bollinger_range", Regimes: []string{RegimeRange}, Enabled: true, New: func() Strategy { return NewBollingerRange() }},
		{Name: "funding_rate_arbitrage", Regimes: nil, Enabled: true, New: func() Strategy { return NewFundingArb() }},
		{Name: "breakout", Regimes: []string{RegimeBreakout, RegimeTrend}, Enabled: false, New: func() Strategy { return NewBreakout() }},
		{Name: "grid_trading", Regimes: []string{RegimeRange}, Enabled: false, New: func() Strategy { return NewGridTrading() }},
		{Name: "momentum", Regimes: []string{RegimeTrend, RegimeBreakout}, Enabled: false, New: func() Strategy { return NewMomentum() }},
		{Name: "mean_reversion", Regimes: []string{RegimeRange}, Enabled: false, New: func() Strategy { return NewMeanReversion() }},
		{Name: "onchain_signal", Regimes: nil, Enabled: false},
		{Name: "time_cycle", Regimes: nil, Enabled: false},
		{Name: "volatility", Regimes: []string{RegimeBreakout}, Enabled: false},
	}
}

// Lookup returns the registry entry by name, false when unknown
func Lookup(name string) (Spec, bool) {
	for _, spec := range Registry() {
		if spec.Name == name {
			return spec, true
		}
	}
	return Spec{}, false
}

// Candidates returns the specs eligible for scoring: enabled and
// implemented
func Candidates() []Spec {
	var out []Spec
	for _, spec := range Registry() {
		if spec.Enabled && spec.Implemented() {
			out = append(out, spec)
		}
	}
	return out
}
