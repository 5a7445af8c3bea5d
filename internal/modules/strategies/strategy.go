// Package strategies holds the signal generators evaluated each trading
// cycle. Every strategy consumes a candle window and emits at most one
// actionable signal.
package strategies

import (
	"github.com/aristath/alpha-arena/internal/domain"
)

// SignalType is the action a strategy proposes
type SignalType string

const (
	SignalBuy        SignalType = "BUY"
	SignalSell       SignalType = "SELL"
	SignalHold       SignalType = "HOLD"
	SignalCloseLong  SignalType = "CLOSE_LONG"
	SignalCloseShort SignalType = "CLOSE_SHORT"
)

// Hold reasons shared across strategies
const (
	ReasonNotEnoughData    = "not_enough_data"
	ReasonNoSignal         = "no_signal"
	ReasonBandwidthTooWide = "bandwidth_too_wide"
	ReasonDataError        = "data_error"
)

// Input is the market context one strategy evaluation sees
type Input struct {
	Symbol       string
	Timeframe    string
	Candles      []domain.Candle
	FundingRates []domain.FundingRate
	Positions    []domain.Position
}

// LastClose returns the most recent close, 0 when there are no candles
func (in *Input) LastClose() float64 {
	if len(in.Candles) == 0 {
		return 0
	}
	return in.Candles[len(in.Candles)-1].Close
}

// LastTimestamp returns the most recent candle timestamp in ms
func (in *Input) LastTimestamp() int64 {
	if len(in.Candles) == 0 {
		return 0
	}
	return in.Candles[len(in.Candles)-1].Timestamp
}

// HasLong reports whether a long position is open for the input symbol
func (in *Input) HasLong() bool {
	for _, p := range in.Positions {
		if p.Symbol == in.Symbol && p.SignedSize() > 0 {
			return true
		}
	}
	return false
}

// HasShort reports whether a short position is open for the input symbol
func (in *Input) HasShort() bool {
	for _, p := range in.Positions {
		if p.Symbol == in.Symbol && p.SignedSize() < 0 {
			return true
		}
	}
	return false
}

// Signal is one strategy verdict
type Signal struct {
	Strategy     string     `json:"strategy"`
	Symbol       string     `json:"symbol"`
	Timeframe    string     `json:"timeframe"`
	Type         SignalType `json:"signal_type"`
	Confidence   float64    `json:"confidence"`
	Timestamp    int64      `json:"timestamp"`
	Price        float64    `json:"price"`
	StopLoss     *float64   `json:"stop_loss,omitempty"`
	TakeProfit   *float64   `json:"take_profit,omitempty"`
	PositionSize *float64   `json:"position_size,omitempty"`
	Leverage     *float64   `json:"leverage,omitempty"`
	Reasoning    string     `json:"reasoning"`
}

// Strategy is one signal generator
type Strategy interface {
	Name() string
	Evaluate(in Input) (*Signal, error)
}

// hold builds a HOLD verdict with a reason
func hold(name string, in Input, reason string) *Signal {
	return &Signal{
		Strategy:  name,
		Symbol:    in.Symbol,
		Timeframe: in.Timeframe,
		Type:      SignalHold,
		Timestamp: in.LastTimestamp(),
		Price:     in.LastClose(),
		Reasoning: reason,
	}
}

func ptr(v float64) *float64 { return &v }
