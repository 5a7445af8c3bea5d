package domain

// OrderSide is the direction of an order
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType is the execution style of an order
type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

// OrderStatus tracks an order through its lifecycle
type OrderStatus string

const (
	StatusCreated         OrderStatus = "CREATED"
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal reports whether no further transitions are allowed
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected
}

// Candle is one OHLCV bar. Timestamp is milliseconds since epoch.
type Candle struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// FundingRate is one funding observation for a perpetual swap
type FundingRate struct {
	Symbol          string  `json:"symbol"`
	Timestamp       int64   `json:"timestamp"`
	FundingRate     float64 `json:"funding_rate"`
	NextFundingTime *int64  `json:"next_funding_time,omitempty"`
}

// PriceSnapshot captures last/mark/index prices at a point in time
type PriceSnapshot struct {
	Symbol     string   `json:"symbol"`
	Timestamp  int64    `json:"timestamp"`
	LastPrice  *float64 `json:"last_price,omitempty"`
	MarkPrice  *float64 `json:"mark_price,omitempty"`
	IndexPrice *float64 `json:"index_price,omitempty"`
}

// Order is the in-flight working copy of an order row
type Order struct {
	ID              int64       `json:"id"`
	ClientOrderID   string      `json:"client_order_id"`
	ExchangeOrderID *string     `json:"exchange_order_id,omitempty"`
	Symbol          string      `json:"symbol"`
	Side            OrderSide   `json:"side"`
	Type            OrderType   `json:"type"`
	Price           *float64    `json:"price,omitempty"`
	Amount          float64     `json:"amount"`
	FilledAmount    *float64    `json:"filled_amount,omitempty"`
	RemainingAmount *float64    `json:"remaining_amount,omitempty"`
	AveragePrice    *float64    `json:"average_price,omitempty"`
	Leverage        *float64    `json:"leverage,omitempty"`
	Status          OrderStatus `json:"status"`
	TimeInForce     *string     `json:"time_in_force,omitempty"`
	Confidence      *float64    `json:"confidence,omitempty"`
	SignalOK        *bool       `json:"signal_ok,omitempty"`
	CreatedAt       int64       `json:"created_at"`
	UpdatedAt       int64       `json:"updated_at"`
}

// Notional returns price*amount, or 0 when the price is unknown
func (o *Order) Notional() float64 {
	if o.Price == nil {
		return 0
	}
	return *o.Price * o.Amount
}

// Trade is one execution attributed to an order row
type Trade struct {
	ID          int64    `json:"id"`
	OrderID     int64    `json:"order_id"`
	Symbol      string   `json:"symbol"`
	Side        string   `json:"side"`
	Price       float64  `json:"price"`
	Amount      float64  `json:"amount"`
	Fee         *float64 `json:"fee,omitempty"`
	FeeCurrency *string  `json:"fee_currency,omitempty"`
	RealizedPnL *float64 `json:"realized_pnl,omitempty"`
	Timestamp   int64    `json:"timestamp"`
}

// Position is the current net exposure per (symbol, side)
type Position struct {
	Symbol           string   `json:"symbol"`
	Side             string   `json:"side"` // long | short
	Size             float64  `json:"size"`
	EntryPrice       float64  `json:"entry_price"`
	Leverage         *float64 `json:"leverage,omitempty"`
	UnrealizedPnL    *float64 `json:"unrealized_pnl,omitempty"`
	Margin           *float64 `json:"margin,omitempty"`
	LiquidationPrice *float64 `json:"liquidation_price,omitempty"`
	UpdatedAt        int64    `json:"updated_at"`
}

// SignedSize returns size with a negative sign for shorts
func (p *Position) SignedSize() float64 {
	if p.Side == "short" || p.Side == "sell" {
		return -p.Size
	}
	return p.Size
}

// Balance is one currency balance observation
type Balance struct {
	Currency  string   `json:"currency"`
	Timestamp int64    `json:"timestamp"`
	Total     float64  `json:"total"`
	Free      *float64 `json:"free,omitempty"`
	Used      *float64 `json:"used,omitempty"`
}

// Decision is one persisted allocation decision
type Decision struct {
	ID                int64    `json:"id"`
	Symbol            string   `json:"symbol"`
	Timeframe         string   `json:"timeframe"`
	Timestamp         int64    `json:"timestamp"`
	Action            string   `json:"action"`
	Confidence        *float64 `json:"confidence,omitempty"`
	Reasoning         string   `json:"reasoning"`
	TechnicalAnalysis string   `json:"technical_analysis"`
}
