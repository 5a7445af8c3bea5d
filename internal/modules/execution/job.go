package execution

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
)

// SyncJob periodically reconciles open orders and, once per run, the
// exchange's recent order and trade history.
type SyncJob struct {
	tracker   *OrderTracker
	symbols   []string
	historyMs int64 // how far back each history sweep looks
	log       zerolog.Logger
}

// NewSyncJob creates a scheduled order sync job
func NewSyncJob(tracker *OrderTracker, symbols []string, historyMs int64, log zerolog.Logger) *SyncJob {
	return &SyncJob{
		tracker:   tracker,
		symbols:   symbols,
		historyMs: historyMs,
		log:       log.With().Str("job", "order_sync").Logger(),
	}
}

// Name returns the job name
func (j *SyncJob) Name() string {
	return "order_sync"
}

// Run refreshes open orders, then backfills history per symbol
func (j *SyncJob) Run() error {
	ctx := context.Background()
	changed, err := j.tracker.SyncOrders(ctx, nil)
	if err != nil {
		return err
	}
	if changed > 0 {
		j.log.Info().Int("changed", changed).Msg("Open orders updated")
	}

	since := domain.UTCNowMs() - j.historyMs
	if since < 0 {
		since = 0
	}
	for _, symbol := range j.symbols {
		written, err := j.tracker.SyncExchangeHistory(ctx, symbol, since)
		if err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("History sync failed")
			continue
		}
		if written > 0 {
			j.log.Info().Str("symbol", symbol).Int("written", written).Msg("History backfilled")
		}
	}
	return nil
}

// AccountSyncJob periodically mirrors balances and positions
type AccountSyncJob struct {
	syncer  *AccountSyncer
	symbols []string
	log     zerolog.Logger
}

// NewAccountSyncJob creates a scheduled account sync job
func NewAccountSyncJob(syncer *AccountSyncer, symbols []string, log zerolog.Logger) *AccountSyncJob {
	return &AccountSyncJob{
		syncer:  syncer,
		symbols: symbols,
		log:     log.With().Str("job", "account_sync").Logger(),
	}
}

// Name returns the job name
func (j *AccountSyncJob) Name() string {
	return "account_sync"
}

// Run performs one balance and position sync
func (j *AccountSyncJob) Run() error {
	return j.syncer.Sync(context.Background(), j.symbols)
}
