package execution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/exchange"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
)

// AccountSyncer mirrors exchange balances and positions into the store,
// valuing each balance in USDT where a price is known.
type AccountSyncer struct {
	gateway      exchange.Gateway
	market       *marketdata.Service
	positions    *PositionRepository
	exchangeName string
	accountID    string
	log          zerolog.Logger
}

// NewAccountSyncer creates a new account syncer. The account id is
// derived from the API key tail so rows from different keys stay apart.
func NewAccountSyncer(gateway exchange.Gateway, market *marketdata.Service, positions *PositionRepository, apiKey string, log zerolog.Logger) *AccountSyncer {
	return &AccountSyncer{
		gateway:      gateway,
		market:       market,
		positions:    positions,
		exchangeName: "okx",
		accountID:    accountIDFromKey(apiKey),
		log:          log.With().Str("component", "account_sync").Logger(),
	}
}

func accountIDFromKey(apiKey string) string {
	if apiKey == "" {
		return "okx-default"
	}
	tail := apiKey
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return "okx-" + tail
}

// Sync refreshes balances and positions in one pass
func (s *AccountSyncer) Sync(ctx context.Context, symbols []string) error {
	if err := s.SyncBalances(ctx); err != nil {
		return err
	}
	return s.SyncPositions(ctx, symbols)
}

// SyncBalances fetches account balances and stores both the raw
// observations and valuation snapshots
func (s *AccountSyncer) SyncBalances(ctx context.Context) error {
	snap, err := s.gateway.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch balance: %w", err)
	}

	var balances []domain.Balance
	for currency, total := range snap.Total {
		b := domain.Balance{
			Currency:  currency,
			Timestamp: snap.Timestamp,
			Total:     total,
		}
		if free, ok := snap.Free[currency]; ok {
			b.Free = &free
		}
		if used, ok := snap.Used[currency]; ok {
			b.Used = &used
		}
		balances = append(balances, b)
	}
	if err := s.market.Balances.InsertBatch(balances); err != nil {
		return err
	}

	for _, b := range balances {
		row := marketdata.BalanceSnapshot{
			Timestamp: b.Timestamp,
			Exchange:  s.exchangeName,
			AccountID: s.accountID,
			Currency:  b.Currency,
			Total:     b.Total,
			Available: b.Free,
			Used:      b.Used,
		}
		price, err := s.market.CurrencyPriceUSDT(b.Currency)
		if err != nil {
			return err
		}
		if price != nil {
			row.PriceUSDT = price
			row.TotalUSDT = floatPtr(b.Total * *price)
			if b.Free != nil {
				row.AvailUSDT = floatPtr(*b.Free * *price)
			}
			if b.Used != nil {
				row.UsedUSDT = floatPtr(*b.Used * *price)
			}
		}
		if err := s.market.Balances.InsertSnapshot(row); err != nil {
			return err
		}
	}

	s.log.Debug().Int("currencies", len(balances)).Msg("Balances synced")
	return nil
}

// SyncPositions replaces the stored position set with the exchange's
// view and appends a snapshot per position. Positions that vanished
// since the last sync get a zero-size closing snapshot.
func (s *AccountSyncer) SyncPositions(ctx context.Context, symbols []string) error {
	previous, err := s.positions.ListAll()
	if err != nil {
		return err
	}

	states, err := s.gateway.FetchPositions(ctx, symbols)
	if err != nil {
		return fmt.Errorf("failed to fetch positions: %w", err)
	}

	now := domain.UTCNowMs()
	nowS := now / 1000
	current := make([]domain.Position, 0, len(states))
	live := map[string]bool{}
	for _, st := range states {
		side := st.Side
		if side == "" {
			side = "long"
		}
		entry := 0.0
		if st.EntryPrice != nil {
			entry = *st.EntryPrice
		} else if st.MarkPrice != nil {
			entry = *st.MarkPrice
		}
		p := domain.Position{
			Symbol:        st.Symbol,
			Side:          side,
			Size:          st.Size,
			EntryPrice:    entry,
			Leverage:      st.Leverage,
			UnrealizedPnL: st.UnrealizedPnL,
			Margin:        st.Margin,
			UpdatedAt:     nowS,
		}
		current = append(current, p)
		live[st.Symbol+"|"+side] = true

		snap := PositionSnapshot{
			Symbol:        st.Symbol,
			Timestamp:     now,
			Side:          side,
			Size:          st.Size,
			EntryPrice:    entry,
			MarkPrice:     st.MarkPrice,
			UnrealizedPnL: st.UnrealizedPnL,
			Leverage:      st.Leverage,
			Margin:        st.Margin,
			Exchange:      s.exchangeName,
			AccountID:     s.accountID,
		}
		if st.MarkPrice != nil {
			snap.NotionalUSDT = floatPtr(st.Size * *st.MarkPrice)
		}
		if err := s.positions.InsertSnapshot(snap); err != nil {
			return err
		}
	}

	// closing snapshots for positions the exchange no longer reports
	for _, p := range previous {
		if live[p.Symbol+"|"+p.Side] {
			continue
		}
		closing := PositionSnapshot{
			Symbol:     p.Symbol,
			Timestamp:  now,
			Side:       p.Side,
			Size:       0,
			EntryPrice: p.EntryPrice,
			Exchange:   s.exchangeName,
			AccountID:  s.accountID,
		}
		if err := s.positions.InsertSnapshot(closing); err != nil {
			return err
		}
	}

	if err := s.positions.ReplaceAll(current); err != nil {
		return err
	}
	s.log.Debug().Int("positions", len(current)).Msg("Positions synced")
	return nil
}
