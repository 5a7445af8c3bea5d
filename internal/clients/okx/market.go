package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/exchange"
)

const (
	maxCandleLimit        = 300
	maxHistoryCandleLimit = 100
)

// FetchOHLCV returns candles in ascending timestamp order. When sinceMs is
// set, only candles at or after it are returned.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, sinceMs *int64, limit int) ([]domain.Candle, error) {
	instID, _, err := instrument(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxCandleLimit {
		limit = maxCandleLimit
	}

	path := "/api/v5/market/candles"
	query := map[string]string{
		"instId": instID,
		"bar":    bar(timeframe),
	}
	if sinceMs != nil {
		tfMs, err := domain.TimeframeMs(timeframe)
		if err != nil {
			return nil, err
		}
		// the recent endpoint only retains the newest candles and
		// serves them when before is sent alone; older ranges come
		// from the history endpoint, bounded so the venue returns
		// the chunk adjacent to since rather than the newest page
		if domain.UTCNowMs()-*sinceMs > int64(limit)*tfMs {
			path = "/api/v5/market/history-candles"
			if limit > maxHistoryCandleLimit {
				limit = maxHistoryCandleLimit
			}
		}
		query["before"] = strconv.FormatInt(*sinceMs-1, 10)
		query["after"] = strconv.FormatInt(*sinceMs+int64(limit)*tfMs, 10)
	}
	query["limit"] = strconv.Itoa(limit)

	resp, err := c.request(ctx, "GET", path, query, nil, false)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s %s: %w", symbol, timeframe, err)
	}

	var rows [][]string
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse candles: %w", err)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		if sinceMs != nil && ts < *sinceMs {
			continue
		}
		candle := domain.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: ts,
		}
		vals := make([]float64, 5)
		ok := true
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		candle.Open, candle.High, candle.Low, candle.Close, candle.Volume = vals[0], vals[1], vals[2], vals[3], vals[4]
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	return candles, nil
}

type fundingRateData struct {
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
	FundingTime     string `json:"fundingTime"`
}

// FetchFundingRate returns the current funding rate for a swap symbol
func (c *Client) FetchFundingRate(ctx context.Context, symbol string) (*exchange.FundingSnapshot, error) {
	instID, instType, err := instrument(symbol)
	if err != nil {
		return nil, err
	}
	if instType != "SWAP" {
		return nil, fmt.Errorf("funding rate requires a swap symbol, got %q", symbol)
	}

	resp, err := c.request(ctx, "GET", "/api/v5/public/funding-rate", map[string]string{"instId": instID}, nil, false)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch funding rate for %s: %w", symbol, err)
	}

	var rows []fundingRateData
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse funding rate: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty funding rate reply for %s", symbol)
	}

	row := rows[0]
	snap := &exchange.FundingSnapshot{
		Rate:            exchange.ParseFloat(row.FundingRate),
		NextFundingTime: exchange.ParseInt(row.NextFundingTime),
	}
	if ts := exchange.ParseInt(row.FundingTime); ts != nil {
		snap.Timestamp = *ts
	}
	return snap, nil
}

type tickerData struct {
	Last string `json:"last"`
	Ts   string `json:"ts"`
}

type markPriceData struct {
	MarkPx string `json:"markPx"`
}

type indexTickerData struct {
	IdxPx string `json:"idxPx"`
}

// FetchTicker returns last price plus, best-effort, mark and index prices
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	instID, instType, err := instrument(symbol)
	if err != nil {
		return nil, err
	}

	resp, err := c.request(ctx, "GET", "/api/v5/market/ticker", map[string]string{"instId": instID}, nil, false)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker for %s: %w", symbol, err)
	}

	var rows []tickerData
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse ticker: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty ticker reply for %s", symbol)
	}

	ticker := &exchange.Ticker{Last: exchange.ParseFloat(rows[0].Last)}
	if ts := exchange.ParseInt(rows[0].Ts); ts != nil {
		ticker.Timestamp = *ts
	}

	if instType == "SWAP" {
		if mark, err := c.fetchMarkPrice(ctx, instID, instType); err != nil {
			c.log.Debug().Err(err).Str("symbol", symbol).Msg("Mark price unavailable")
		} else {
			ticker.Mark = mark
		}
		if index, err := c.fetchIndexPrice(ctx, instID); err != nil {
			c.log.Debug().Err(err).Str("symbol", symbol).Msg("Index price unavailable")
		} else {
			ticker.Index = index
		}
	}
	return ticker, nil
}

func (c *Client) fetchMarkPrice(ctx context.Context, instID, instType string) (*float64, error) {
	resp, err := c.request(ctx, "GET", "/api/v5/public/mark-price", map[string]string{
		"instId":   instID,
		"instType": instType,
	}, nil, false)
	if err != nil {
		return nil, err
	}
	var rows []markPriceData
	if err := json.Unmarshal(resp.Data, &rows); err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("failed to parse mark price")
	}
	return exchange.ParseFloat(rows[0].MarkPx), nil
}

func (c *Client) fetchIndexPrice(ctx context.Context, instID string) (*float64, error) {
	// index instruments drop the -SWAP suffix
	indexID := instID
	if idx := len(instID) - len("-SWAP"); idx > 0 && instID[idx:] == "-SWAP" {
		indexID = instID[:idx]
	}
	resp, err := c.request(ctx, "GET", "/api/v5/market/index-tickers", map[string]string{"instId": indexID}, nil, false)
	if err != nil {
		return nil, err
	}
	var rows []indexTickerData
	if err := json.Unmarshal(resp.Data, &rows); err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("failed to parse index ticker")
	}
	return exchange.ParseFloat(rows[0].IdxPx), nil
}

type openInterestData struct {
	Oi    string `json:"oi"`
	OiUsd string `json:"oiUsd"`
	Ts    string `json:"ts"`
}

// FetchOpenInterest returns the current open interest for a swap symbol
func (c *Client) FetchOpenInterest(ctx context.Context, symbol string) (*exchange.OpenInterestSnapshot, error) {
	instID, instType, err := instrument(symbol)
	if err != nil {
		return nil, err
	}
	if instType != "SWAP" {
		return nil, fmt.Errorf("open interest requires a swap symbol, got %q", symbol)
	}

	resp, err := c.request(ctx, "GET", "/api/v5/public/open-interest", map[string]string{"instId": instID}, nil, false)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open interest for %s: %w", symbol, err)
	}

	var rows []openInterestData
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse open interest: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty open interest reply for %s", symbol)
	}

	snap := &exchange.OpenInterestSnapshot{
		OpenInterest:      exchange.ParseFloat(rows[0].Oi),
		OpenInterestValue: exchange.ParseFloat(rows[0].OiUsd),
	}
	if ts := exchange.ParseInt(rows[0].Ts); ts != nil {
		snap.Timestamp = *ts
	}
	return snap, nil
}
