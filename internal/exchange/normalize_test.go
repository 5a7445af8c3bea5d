package exchange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alpha-arena/internal/domain"
)

func f(v float64) *float64 { return &v }

func TestMapStatus(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		amount   *float64
		filled   *float64
		expected domain.OrderStatus
	}{
		{"canceled", "canceled", nil, nil, domain.StatusCanceled},
		{"cancelled british", "cancelled", f(10), f(10), domain.StatusCanceled},
		{"rejected", "rejected", nil, nil, domain.StatusRejected},
		{"fully filled by quantity", "live", f(10), f(10), domain.StatusFilled},
		{"partially filled by quantity", "open", f(10), f(4), domain.StatusPartiallyFilled},
		{"closed without quantities", "closed", nil, nil, domain.StatusFilled},
		{"filled without quantities", "filled", nil, nil, domain.StatusFilled},
		{"live without fills", "live", f(10), nil, domain.StatusNew},
		{"unknown status", "weird", nil, nil, domain.StatusNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapStatus(tt.raw, tt.amount, tt.filled))
		})
	}
}

func TestNormalizeSide(t *testing.T) {
	side, err := NormalizeSide("BUY")
	require.NoError(t, err)
	assert.Equal(t, domain.SideBuy, side)

	side, err = NormalizeSide("s")
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, side)

	_, err = NormalizeSide("hold")
	assert.Error(t, err)
}

func TestNormalizeOrderType(t *testing.T) {
	typ, err := NormalizeOrderType("market")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeMarket, typ)

	typ, err = NormalizeOrderType("post_only")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeLimit, typ)

	_, err = NormalizeOrderType("stop_loss")
	assert.Error(t, err)
}

func TestToMs(t *testing.T) {
	assert.Equal(t, int64(1_700_000_000_000), ToMs(1_700_000_000))
	assert.Equal(t, int64(1_700_000_000_000), ToMs(1_700_000_000_000))
	assert.Equal(t, int64(0), ToMs(0))
}

func TestParseFloat(t *testing.T) {
	assert.Nil(t, ParseFloat(""))
	assert.Nil(t, ParseFloat("n/a"))
	v := ParseFloat(" 42.5 ")
	require.NotNil(t, v)
	assert.Equal(t, 42.5, *v)
}

func TestIsPosSideError(t *testing.T) {
	assert.True(t, IsPosSideError(&Error{Code: "51000", Message: "parameter posSide error"}))
	assert.True(t, IsPosSideError(errors.New("Parameter posSide error")))
	assert.False(t, IsPosSideError(&Error{Code: "50001", Message: "system busy"}))
	assert.False(t, IsPosSideError(nil))
}

func TestTickerPrice(t *testing.T) {
	var nilTicker *Ticker
	assert.Nil(t, nilTicker.Price())

	tk := &Ticker{Mark: f(101.5), Index: f(100)}
	require.NotNil(t, tk.Price())
	assert.Equal(t, 101.5, *tk.Price())

	tk.Last = f(102)
	assert.Equal(t, 102.0, *tk.Price())
}
