package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aristath/alpha-arena/internal/exchange"
)

type orderData struct {
	OrdID     string `json:"ordId"`
	ClOrdID   string `json:"clOrdId"`
	InstID    string `json:"instId"`
	Side      string `json:"side"`
	OrdType   string `json:"ordType"`
	State     string `json:"state"`
	Px        string `json:"px"`
	AvgPx     string `json:"avgPx"`
	Sz        string `json:"sz"`
	AccFillSz string `json:"accFillSz"`
	Lever     string `json:"lever"`
	Fee       string `json:"fee"`
	FeeCcy    string `json:"feeCcy"`
	CTime     string `json:"cTime"`
	UTime     string `json:"uTime"`
}

func toOrderReply(row orderData) exchange.OrderReply {
	raw, _ := json.Marshal(row)
	return exchange.OrderReply{
		ID:            row.OrdID,
		ClientOrderID: row.ClOrdID,
		Symbol:        symbolFromInstID(row.InstID),
		Side:          row.Side,
		Type:          row.OrdType,
		Status:        row.State,
		Price:         exchange.ParseFloat(row.Px),
		Average:       exchange.ParseFloat(row.AvgPx),
		Amount:        exchange.ParseFloat(row.Sz),
		Filled:        exchange.ParseFloat(row.AccFillSz),
		Leverage:      exchange.ParseFloat(row.Lever),
		FeeCost:       feeCost(row.Fee),
		FeeCurrency:   row.FeeCcy,
		Timestamp:     exchange.ParseInt(row.CTime),
		UpdatedAt:     exchange.ParseInt(row.UTime),
		Raw:           string(raw),
	}
}

// feeCost flips OKX's sign convention: fees are reported negative
func feeCost(s string) *float64 {
	v := exchange.ParseFloat(s)
	if v != nil && *v < 0 {
		flipped := -*v
		return &flipped
	}
	return v
}

type orderAck struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// CreateOrder submits a new order. Params carries venue fields such as
// tdMode, posSide and clOrdId.
func (c *Client) CreateOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderReply, error) {
	instID, _, err := instrument(req.Symbol)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"instId":  instID,
		"side":    string(req.Side),
		"ordType": string(req.Type),
		"sz":      strconv.FormatFloat(req.Quantity, 'f', -1, 64),
	}
	if req.Price != nil {
		body["px"] = strconv.FormatFloat(*req.Price, 'f', -1, 64)
	}
	for k, v := range req.Params {
		body[k] = v
	}

	resp, err := c.request(ctx, "POST", "/api/v5/trade/order", nil, body, true)
	if err != nil {
		return nil, err
	}

	var acks []orderAck
	if err := json.Unmarshal(resp.Data, &acks); err != nil {
		return nil, fmt.Errorf("failed to parse order ack: %w", err)
	}
	if len(acks) == 0 {
		return nil, fmt.Errorf("empty order ack")
	}
	if acks[0].SCode != "" && acks[0].SCode != "0" {
		return nil, &exchange.Error{Code: acks[0].SCode, Message: acks[0].SMsg}
	}

	return &exchange.OrderReply{
		ID:            acks[0].OrdID,
		ClientOrderID: acks[0].ClOrdID,
		Symbol:        req.Symbol,
		Side:          string(req.Side),
		Type:          string(req.Type),
	}, nil
}

// CancelOrder cancels an order by exchange order id
func (c *Client) CancelOrder(ctx context.Context, exchangeOrderID, symbol string) error {
	instID, _, err := instrument(symbol)
	if err != nil {
		return err
	}

	body := map[string]string{
		"instId": instID,
		"ordId":  exchangeOrderID,
	}
	resp, err := c.request(ctx, "POST", "/api/v5/trade/cancel-order", nil, body, true)
	if err != nil {
		return err
	}

	var acks []orderAck
	if err := json.Unmarshal(resp.Data, &acks); err != nil {
		return fmt.Errorf("failed to parse cancel ack: %w", err)
	}
	if len(acks) > 0 && acks[0].SCode != "" && acks[0].SCode != "0" {
		return &exchange.Error{Code: acks[0].SCode, Message: acks[0].SMsg}
	}
	return nil
}

// FetchOrder retrieves one order by exchange order id
func (c *Client) FetchOrder(ctx context.Context, exchangeOrderID, symbol string) (*exchange.OrderReply, error) {
	instID, _, err := instrument(symbol)
	if err != nil {
		return nil, err
	}

	resp, err := c.request(ctx, "GET", "/api/v5/trade/order", map[string]string{
		"instId": instID,
		"ordId":  exchangeOrderID,
	}, nil, true)
	if err != nil {
		return nil, err
	}

	var rows []orderData
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse order: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("order %s not found", exchangeOrderID)
	}
	reply := toOrderReply(rows[0])
	return &reply, nil
}

// FetchOpenOrders lists pending orders for a symbol
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, sinceMs *int64, limit int) ([]exchange.OrderReply, error) {
	return c.fetchOrderList(ctx, "/api/v5/trade/orders-pending", symbol, sinceMs, limit)
}

// FetchClosedOrders lists recently completed orders for a symbol
func (c *Client) FetchClosedOrders(ctx context.Context, symbol string, sinceMs *int64, limit int) ([]exchange.OrderReply, error) {
	return c.fetchOrderList(ctx, "/api/v5/trade/orders-history", symbol, sinceMs, limit)
}

func (c *Client) fetchOrderList(ctx context.Context, path, symbol string, sinceMs *int64, limit int) ([]exchange.OrderReply, error) {
	instID, instType, err := instrument(symbol)
	if err != nil {
		return nil, err
	}

	query := map[string]string{
		"instType": instType,
		"instId":   instID,
	}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	if sinceMs != nil {
		query["begin"] = strconv.FormatInt(*sinceMs, 10)
	}

	resp, err := c.request(ctx, "GET", path, query, nil, true)
	if err != nil {
		return nil, err
	}

	var rows []orderData
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse orders: %w", err)
	}

	replies := make([]exchange.OrderReply, 0, len(rows))
	for _, row := range rows {
		replies = append(replies, toOrderReply(row))
	}
	return replies, nil
}

type fillData struct {
	TradeID string `json:"tradeId"`
	OrdID   string `json:"ordId"`
	InstID  string `json:"instId"`
	Side    string `json:"side"`
	FillPx  string `json:"fillPx"`
	FillSz  string `json:"fillSz"`
	Fee     string `json:"fee"`
	FeeCcy  string `json:"feeCcy"`
	FillPnl string `json:"fillPnl"`
	Ts      string `json:"ts"`
}

// FetchMyTrades lists own fills for a symbol
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, sinceMs *int64, limit int) ([]exchange.TradeReply, error) {
	instID, instType, err := instrument(symbol)
	if err != nil {
		return nil, err
	}

	query := map[string]string{
		"instType": instType,
		"instId":   instID,
	}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	if sinceMs != nil {
		query["begin"] = strconv.FormatInt(*sinceMs, 10)
	}

	resp, err := c.request(ctx, "GET", "/api/v5/trade/fills", query, nil, true)
	if err != nil {
		return nil, err
	}

	var rows []fillData
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse fills: %w", err)
	}

	trades := make([]exchange.TradeReply, 0, len(rows))
	for _, row := range rows {
		trades = append(trades, exchange.TradeReply{
			ID:              row.TradeID,
			ExchangeOrderID: row.OrdID,
			Symbol:          symbolFromInstID(row.InstID),
			Side:            row.Side,
			Price:           exchange.ParseFloat(row.FillPx),
			Amount:          exchange.ParseFloat(row.FillSz),
			Fee:             feeCost(row.Fee),
			FeeCurrency:     row.FeeCcy,
			RealizedPnL:     exchange.ParseFloat(row.FillPnl),
			Timestamp:       exchange.ParseInt(row.Ts),
		})
	}
	return trades, nil
}
