package marketdata

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Service is the read facade over the market data repositories. It owns
// the price fallback chains shared by the allocator and account sync.
type Service struct {
	Candles      *CandleRepository
	Funding      *FundingRepository
	Prices       *PriceRepository
	OpenInterest *OpenInterestRepository
	Balances     *BalanceRepository
	log          zerolog.Logger
}

// NewService creates a new market data service
func NewService(candles *CandleRepository, funding *FundingRepository, prices *PriceRepository, oi *OpenInterestRepository, balances *BalanceRepository, log zerolog.Logger) *Service {
	return &Service{
		Candles:      candles,
		Funding:      funding,
		Prices:       prices,
		OpenInterest: oi,
		Balances:     balances,
		log:          log.With().Str("component", "marketdata").Logger(),
	}
}

// LastPrice resolves a sizing price for a symbol: the latest snapshot
// last price, falling back to the latest 1h close. Nil when neither
// exists.
func (s *Service) LastPrice(symbol string) (*float64, error) {
	snap, err := s.Prices.Latest(symbol)
	if err != nil {
		return nil, err
	}
	if snap != nil && snap.LastPrice != nil {
		return snap.LastPrice, nil
	}
	return s.Candles.LatestClose(symbol, "1h")
}

// CurrencyPriceUSDT values one unit of a currency in USDT using stored
// snapshots (mark, then last, then index) for the swap and spot symbol
// variants, falling back to the latest 1h close. USDT itself is 1.
func (s *Service) CurrencyPriceUSDT(currency string) (*float64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, fmt.Errorf("empty currency")
	}
	if currency == "USDT" {
		one := 1.0
		return &one, nil
	}

	symbols := []string{
		currency + "/USDT:USDT",
		currency + "/USDT",
	}
	for _, symbol := range symbols {
		snap, err := s.Prices.Latest(symbol)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			continue
		}
		for _, p := range []*float64{snap.MarkPrice, snap.LastPrice, snap.IndexPrice} {
			if p != nil {
				return p, nil
			}
		}
	}
	for _, symbol := range symbols {
		close, err := s.Candles.LatestClose(symbol, "1h")
		if err != nil {
			return nil, err
		}
		if close != nil {
			return close, nil
		}
	}
	return nil, nil
}

// EquityUSDT returns the latest stored USDT balance total, nil when the
// account has never been synced
func (s *Service) EquityUSDT() (*float64, error) {
	return s.Balances.LatestTotal("USDT")
}
