package strategies

// FundingArb harvests sustained positive funding on perpetual swaps.
// It enters once the rate has stayed above the entry threshold for
// MinDuration consecutive observations and unwinds when funding decays.
type FundingArb struct {
	EntryRate     float64
	ExitRate      float64
	MinDuration   int
	HistoryWindow int
	EntryConf     float64
	ExitConf      float64
}

// NewFundingArb creates the strategy with its default parameters
func NewFundingArb() *FundingArb {
	return &FundingArb{
		EntryRate:     0.001,
		ExitRate:      0.0005,
		MinDuration:   3,
		HistoryWindow: 10,
		EntryConf:     0.9,
		ExitConf:      0.8,
	}
}

// Name implements Strategy
func (s *FundingArb) Name() string { return "funding_rate_arbitrage" }

// Evaluate implements Strategy
func (s *FundingArb) Evaluate(in Input) (*Signal, error) {
	rates := in.FundingRates
	if len(rates) > s.HistoryWindow {
		rates = rates[len(rates)-s.HistoryWindow:]
	}
	if len(rates) < s.MinDuration {
		return hold(s.Name(), in, ReasonNotEnoughData), nil
	}

	current := rates[len(rates)-1].FundingRate

	sustained := true
	for _, r := range rates[len(rates)-s.MinDuration:] {
		if r.FundingRate < s.EntryRate {
			sustained = false
			break
		}
	}

	if sustained {
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalBuy,
			Confidence: s.EntryConf,
			Timestamp:  in.LastTimestamp(),
			Price:      in.LastClose(),
			Reasoning:  "funding_rate_sustained_above_entry",
		}, nil
	}
	if current <= s.ExitRate && in.HasLong() {
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     in.Symbol,
			Timeframe:  in.Timeframe,
			Type:       SignalCloseLong,
			Confidence: s.ExitConf,
			Timestamp:  in.LastTimestamp(),
			Price:      in.LastClose(),
			Reasoning:  "funding_rate_decayed_below_exit",
		}, nil
	}
	return hold(s.Name(), in, ReasonNoSignal), nil
}
