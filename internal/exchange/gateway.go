// Package exchange defines the gateway contract the trading core depends on
// and the normalization boundary for loosely typed exchange payloads.
package exchange

import (
	"context"

	"github.com/aristath/alpha-arena/internal/domain"
)

// Ticker is a normalized ticker reply
type Ticker struct {
	Timestamp int64
	Last      *float64
	Mark      *float64
	Index     *float64
}

// Price returns the best available price: last, then mark, then index
func (t *Ticker) Price() *float64 {
	if t == nil {
		return nil
	}
	for _, p := range []*float64{t.Last, t.Mark, t.Index} {
		if p != nil {
			return p
		}
	}
	return nil
}

// FundingSnapshot is a normalized funding-rate reply
type FundingSnapshot struct {
	Timestamp       int64
	Rate            *float64
	NextFundingTime *int64
}

// OpenInterestSnapshot is a normalized open-interest reply
type OpenInterestSnapshot struct {
	Timestamp         int64
	OpenInterest      *float64
	OpenInterestValue *float64
}

// BalanceSnapshot holds per-currency balances at one timestamp
type BalanceSnapshot struct {
	Timestamp int64
	Total     map[string]float64
	Free      map[string]float64
	Used      map[string]float64
}

// PositionState is a normalized exchange position
type PositionState struct {
	Symbol           string
	Side             string // long | short | "" (net)
	Size             float64
	EntryPrice       *float64
	MarkPrice        *float64
	UnrealizedPnL    *float64
	Leverage         *float64
	Margin           *float64
	LiquidationPrice *float64
}

// OrderReply is the normalized shape of create/fetch order responses
type OrderReply struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          string // raw side, normalized via NormalizeSide
	Type          string
	Status        string // raw exchange status string
	Price         *float64
	Average       *float64
	Amount        *float64
	Filled        *float64
	Leverage      *float64
	TimeInForce   string
	FeeCost       *float64
	FeeCurrency   string
	Timestamp     *int64 // ms
	UpdatedAt     *int64 // ms
	Raw           string // serialized payload for lifecycle events
}

// TradeReply is the normalized shape of own-trade responses
type TradeReply struct {
	ID              string
	ExchangeOrderID string
	Symbol          string
	Side            string
	Price           *float64
	Amount          *float64
	Fee             *float64
	FeeCurrency     string
	RealizedPnL     *float64
	Timestamp       *int64 // ms
}

// OrderRequest describes an order submission
type OrderRequest struct {
	Symbol   string
	Side     domain.OrderSide
	Type     domain.OrderType
	Quantity float64
	Price    *float64
	Params   map[string]string // tdMode, posSide, ...
}

// Gateway is the unified REST contract over the exchange. Implementations
// enforce rate limits and retry transient failures internally.
type Gateway interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, sinceMs *int64, limit int) ([]domain.Candle, error)
	FetchFundingRate(ctx context.Context, symbol string) (*FundingSnapshot, error)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchOpenInterest(ctx context.Context, symbol string) (*OpenInterestSnapshot, error)
	FetchBalance(ctx context.Context) (*BalanceSnapshot, error)
	FetchPositions(ctx context.Context, symbols []string) ([]PositionState, error)

	CreateOrder(ctx context.Context, req OrderRequest) (*OrderReply, error)
	CancelOrder(ctx context.Context, exchangeOrderID, symbol string) error
	FetchOrder(ctx context.Context, exchangeOrderID, symbol string) (*OrderReply, error)
	FetchOpenOrders(ctx context.Context, symbol string, sinceMs *int64, limit int) ([]OrderReply, error)
	FetchClosedOrders(ctx context.Context, symbol string, sinceMs *int64, limit int) ([]OrderReply, error)
	FetchMyTrades(ctx context.Context, symbol string, sinceMs *int64, limit int) ([]TradeReply, error)

	// RateLimitMs is the suggested inter-page sleep in milliseconds
	RateLimitMs() int
}
