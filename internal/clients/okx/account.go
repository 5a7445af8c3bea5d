package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/alpha-arena/internal/exchange"
)

type balanceDetail struct {
	Ccy       string `json:"ccy"`
	Eq        string `json:"eq"`
	CashBal   string `json:"cashBal"`
	AvailBal  string `json:"availBal"`
	FrozenBal string `json:"frozenBal"`
}

type balanceData struct {
	UTime   string          `json:"uTime"`
	Details []balanceDetail `json:"details"`
}

// FetchBalance returns per-currency balances for the trading account
func (c *Client) FetchBalance(ctx context.Context) (*exchange.BalanceSnapshot, error) {
	resp, err := c.request(ctx, "GET", "/api/v5/account/balance", nil, nil, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}

	var rows []balanceData
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty balance reply")
	}

	snap := &exchange.BalanceSnapshot{
		Total: make(map[string]float64),
		Free:  make(map[string]float64),
		Used:  make(map[string]float64),
	}
	if ts := exchange.ParseInt(rows[0].UTime); ts != nil {
		snap.Timestamp = *ts
	}

	for _, d := range rows[0].Details {
		if d.Ccy == "" {
			continue
		}
		total := exchange.ParseFloat(d.Eq)
		if total == nil {
			total = exchange.ParseFloat(d.CashBal)
		}
		if total != nil {
			snap.Total[d.Ccy] = *total
		}
		if free := exchange.ParseFloat(d.AvailBal); free != nil {
			snap.Free[d.Ccy] = *free
		}
		if used := exchange.ParseFloat(d.FrozenBal); used != nil {
			snap.Used[d.Ccy] = *used
		}
	}
	return snap, nil
}

type positionData struct {
	InstID  string `json:"instId"`
	PosSide string `json:"posSide"`
	Pos     string `json:"pos"`
	AvgPx   string `json:"avgPx"`
	MarkPx  string `json:"markPx"`
	Upl     string `json:"upl"`
	Lever   string `json:"lever"`
	Margin  string `json:"margin"`
	Imr     string `json:"imr"`
	LiqPx   string `json:"liqPx"`
}

// FetchPositions returns open positions, optionally filtered by symbols.
// Zero-size rows are dropped; net-mode rows get their side from the sign
// of the position size.
func (c *Client) FetchPositions(ctx context.Context, symbols []string) ([]exchange.PositionState, error) {
	wanted := make(map[string]string)
	for _, s := range symbols {
		instID, _, err := instrument(s)
		if err != nil {
			return nil, err
		}
		wanted[instID] = s
	}

	resp, err := c.request(ctx, "GET", "/api/v5/account/positions", nil, nil, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	var rows []positionData
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse positions: %w", err)
	}

	positions := make([]exchange.PositionState, 0, len(rows))
	for _, row := range rows {
		size := exchange.ParseFloat(row.Pos)
		if size == nil || *size == 0 {
			continue
		}

		symbol := symbolFromInstID(row.InstID)
		if len(wanted) > 0 {
			mapped, ok := wanted[row.InstID]
			if !ok {
				continue
			}
			symbol = mapped
		}

		side := strings.ToLower(row.PosSide)
		if side == "net" || side == "both" || side == "" {
			if *size >= 0 {
				side = "long"
			} else {
				side = "short"
			}
		}

		entry := exchange.ParseFloat(row.AvgPx)
		mark := exchange.ParseFloat(row.MarkPx)
		if entry == nil {
			entry = mark
		}
		margin := exchange.ParseFloat(row.Margin)
		if margin == nil {
			margin = exchange.ParseFloat(row.Imr)
		}

		abs := *size
		if abs < 0 {
			abs = -abs
		}
		positions = append(positions, exchange.PositionState{
			Symbol:           symbol,
			Side:             side,
			Size:             abs,
			EntryPrice:       entry,
			MarkPrice:        mark,
			UnrealizedPnL:    exchange.ParseFloat(row.Upl),
			Leverage:         exchange.ParseFloat(row.Lever),
			Margin:           margin,
			LiquidationPrice: exchange.ParseFloat(row.LiqPx),
		})
	}
	return positions, nil
}

// symbolFromInstID converts "BTC-USDT-SWAP" back to "BTC/USDT:USDT" and
// "BTC-USDT" to "BTC/USDT"
func symbolFromInstID(instID string) string {
	parts := strings.Split(instID, "-")
	if len(parts) >= 3 && parts[2] == "SWAP" {
		return parts[0] + "/" + parts[1] + ":" + parts[1]
	}
	if len(parts) == 2 {
		return parts[0] + "/" + parts[1]
	}
	return instID
}
