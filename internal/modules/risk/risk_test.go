package risk

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func order(price *float64, amount float64) *domain.Order {
	return &domain.Order{
		Symbol: "BTC/USDT:USDT",
		Side:   domain.SideBuy,
		Type:   domain.TypeMarket,
		Price:  price,
		Amount: amount,
		Status: domain.StatusCreated,
	}
}

func TestMaxNotional(t *testing.T) {
	rule := &MaxNotional{Max: 10000}

	allowed, _ := rule.Check(order(ptr(100.0), 50))
	assert.True(t, allowed)

	allowed, reason := rule.Check(order(ptr(100.0), 500))
	assert.False(t, allowed)
	assert.Equal(t, "notional 50000.00 exceeds max 10000.00", reason)

	allowed, reason = rule.Check(order(nil, 50))
	assert.False(t, allowed)
	assert.Equal(t, "missing price for notional check", reason)
}

func TestMaxLeverage(t *testing.T) {
	rule := &MaxLeverage{Max: 3.0}

	o := order(ptr(100.0), 1)
	allowed, _ := rule.Check(o)
	assert.True(t, allowed)

	o.Leverage = ptr(2.0)
	allowed, _ = rule.Check(o)
	assert.True(t, allowed)

	o.Leverage = ptr(5.0)
	allowed, reason := rule.Check(o)
	assert.False(t, allowed)
	assert.Equal(t, "leverage 5 exceeds max 3", reason)
}

func TestCircuitBreaker(t *testing.T) {
	rule := &CircuitBreaker{MinConfidence: 0.6}

	o := order(ptr(100.0), 1)
	allowed, _ := rule.Check(o)
	assert.True(t, allowed)

	o.SignalOK = ptr(false)
	allowed, reason := rule.Check(o)
	assert.False(t, allowed)
	assert.Equal(t, "signal marked as failed", reason)

	o.SignalOK = ptr(true)
	o.Confidence = ptr(0.4)
	allowed, reason = rule.Check(o)
	assert.False(t, allowed)
	assert.Equal(t, "confidence 0.40 below 0.60", reason)

	o.Confidence = ptr(0.9)
	allowed, _ = rule.Check(o)
	assert.True(t, allowed)
}

func newTestManager(t *testing.T) (*Manager, *Repository) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	events := NewRepository(db, zerolog.Nop())
	return NewManager(DefaultRules(10000, 3.0, 0.6), events, zerolog.Nop()), events
}

func TestManagerRecordsFirstDenial(t *testing.T) {
	mgr, events := newTestManager(t)

	// over-notional order that would also trip the confidence floor:
	// only the first rule in the chain is reported
	o := order(ptr(100.0), 500)
	o.Confidence = ptr(0.1)

	verdict := mgr.Check(o)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "max_notional", verdict.Rule)
	assert.Contains(t, verdict.Reason, "notional")

	stored, err := events.Recent("BTC/USDT:USDT", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, LevelBlock, stored[0].Level)
	assert.Equal(t, "max_notional", stored[0].Rule)
	assert.Contains(t, stored[0].Details, "exceeds max")
	assert.Greater(t, stored[0].Timestamp, int64(0))
}

func TestManagerPassesCleanOrder(t *testing.T) {
	mgr, events := newTestManager(t)

	o := order(ptr(100.0), 50)
	o.Confidence = ptr(0.9)
	o.SignalOK = ptr(true)
	o.Leverage = ptr(2.0)

	verdict := mgr.Check(o)
	assert.True(t, verdict.Allowed)
	assert.Empty(t, verdict.Rule)

	stored, err := events.Recent("BTC/USDT:USDT", 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
