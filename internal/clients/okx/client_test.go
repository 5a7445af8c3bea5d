package okx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/exchange"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		APIKey:      "key",
		APISecret:   "secret",
		Passphrase:  "pass",
		BaseURL:     srv.URL,
		IsDemo:      true,
		RateLimitMs: 1,
	}, zerolog.Nop())
}

func TestInstrument(t *testing.T) {
	tests := []struct {
		symbol   string
		instID   string
		instType string
		wantErr  bool
	}{
		{"BTC/USDT:USDT", "BTC-USDT-SWAP", "SWAP", false},
		{"ETH/USDT", "ETH-USDT", "SPOT", false},
		{"BTCUSDT", "", "", true},
	}

	for _, tt := range tests {
		instID, instType, err := instrument(tt.symbol)
		if tt.wantErr {
			assert.Error(t, err, tt.symbol)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.instID, instID)
		assert.Equal(t, tt.instType, instType)
	}
}

func TestSymbolFromInstID(t *testing.T) {
	assert.Equal(t, "BTC/USDT:USDT", symbolFromInstID("BTC-USDT-SWAP"))
	assert.Equal(t, "ETH/USDT", symbolFromInstID("ETH-USDT"))
}

func TestFetchOHLCVSortsAndFilters(t *testing.T) {
	tfMs := int64(15 * 60 * 1000)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// a since far in the past goes to the history endpoint with
		// a bounded window
		require.Equal(t, "/api/v5/market/history-candles", r.URL.Path)
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		assert.Equal(t, "15m", r.URL.Query().Get("bar"))
		assert.Equal(t, "899999", r.URL.Query().Get("before"))
		assert.Equal(t, strconv.FormatInt(900000+100*tfMs, 10), r.URL.Query().Get("after"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		// newest first, one row below the since cutoff
		w.Write([]byte(`{"code":"0","msg":"","data":[
			["1800000","101","102","100","101.5","10","0","0","1"],
			["900000","100","101","99","100.5","12","0","0","1"],
			["0","99","100","98","99.5","11","0","0","1"]
		]}`))
	})

	since := int64(900000)
	candles, err := client.FetchOHLCV(context.Background(), "BTC/USDT:USDT", "15m", &since, 100)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(900000), candles[0].Timestamp)
	assert.Equal(t, int64(1800000), candles[1].Timestamp)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, "BTC/USDT:USDT", candles[0].Symbol)
	assert.Equal(t, "15m", candles[0].Timeframe)
}

func TestFetchOHLCVRecentWindowUsesLiveEndpoint(t *testing.T) {
	tfMs := int64(15 * 60 * 1000)
	since := domain.UTCNowMs() - 10*tfMs

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v5/market/candles", r.URL.Path)
		assert.Equal(t, strconv.FormatInt(since-1, 10), r.URL.Query().Get("before"))
		assert.Equal(t, strconv.FormatInt(since+100*tfMs, 10), r.URL.Query().Get("after"))
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	})

	candles, err := client.FetchOHLCV(context.Background(), "BTC/USDT:USDT", "15m", &since, 100)
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestFetchBalanceSignsRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("OK-ACCESS-KEY"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-SIGN"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-TIMESTAMP"))
		assert.Equal(t, "pass", r.Header.Get("OK-ACCESS-PASSPHRASE"))
		assert.Equal(t, "1", r.Header.Get("x-simulated-trading"))
		w.Write([]byte(`{"code":"0","msg":"","data":[{"uTime":"1700000000000","details":[
			{"ccy":"USDT","eq":"10000","availBal":"9000","frozenBal":"1000"}
		]}]}`))
	})

	snap, err := client.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), snap.Timestamp)
	assert.Equal(t, 10000.0, snap.Total["USDT"])
	assert.Equal(t, 9000.0, snap.Free["USDT"])
	assert.Equal(t, 1000.0, snap.Used["USDT"])
}

func TestCreateOrderRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[{"ordId":"","clOrdId":"abc","sCode":"51000","sMsg":"Parameter posSide error"}]}`))
	})

	_, err := client.CreateOrder(context.Background(), exchange.OrderRequest{
		Symbol:   "BTC/USDT:USDT",
		Side:     domain.SideBuy,
		Type:     domain.TypeMarket,
		Quantity: 1,
		Params:   map[string]string{"tdMode": "cross", "posSide": "long"},
	})
	require.Error(t, err)
	assert.True(t, exchange.IsPosSideError(err))
}

func TestCreateOrderSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v5/trade/order", r.URL.Path)
		w.Write([]byte(`{"code":"0","msg":"","data":[{"ordId":"123","clOrdId":"abc","sCode":"0","sMsg":""}]}`))
	})

	reply, err := client.CreateOrder(context.Background(), exchange.OrderRequest{
		Symbol:   "BTC/USDT:USDT",
		Side:     domain.SideBuy,
		Type:     domain.TypeMarket,
		Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "123", reply.ID)
	assert.Equal(t, "abc", reply.ClientOrderID)
}

func TestFetchOrderMapsFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[{
			"ordId":"123","clOrdId":"abc","instId":"BTC-USDT-SWAP","side":"buy","ordType":"market",
			"state":"filled","px":"","avgPx":"50000","sz":"2","accFillSz":"2",
			"fee":"-0.5","feeCcy":"USDT","cTime":"1700000000000","uTime":"1700000001000"
		}]}`))
	})

	reply, err := client.FetchOrder(context.Background(), "123", "BTC/USDT:USDT")
	require.NoError(t, err)
	assert.Equal(t, "filled", reply.Status)
	assert.Equal(t, "BTC/USDT:USDT", reply.Symbol)
	require.NotNil(t, reply.Average)
	assert.Equal(t, 50000.0, *reply.Average)
	require.NotNil(t, reply.FeeCost)
	assert.Equal(t, 0.5, *reply.FeeCost)
	assert.Nil(t, reply.Price)
}

func TestAPIErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"50011","msg":"rate limit","data":[]}`))
	})

	_, err := client.FetchTicker(context.Background(), "BTC/USDT")
	require.Error(t, err)
	var exErr *exchange.Error
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "50011", exErr.Code)
}
