// The daemon runs the full trading loop: market data ingestion, candle
// integrity scanning, decision making and order execution, all on
// schedules driven by configuration.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/alpha-arena/internal/clients/okx"
	"github.com/aristath/alpha-arena/internal/config"
	"github.com/aristath/alpha-arena/internal/database"
	"github.com/aristath/alpha-arena/internal/modules/allocation"
	"github.com/aristath/alpha-arena/internal/modules/decision"
	"github.com/aristath/alpha-arena/internal/modules/execution"
	"github.com/aristath/alpha-arena/internal/modules/health"
	"github.com/aristath/alpha-arena/internal/modules/ingest"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
	"github.com/aristath/alpha-arena/internal/modules/risk"
	"github.com/aristath/alpha-arena/internal/modules/trading"
	"github.com/aristath/alpha-arena/internal/scheduler"
	"github.com/aristath/alpha-arena/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Info().Bool("trading_enabled", cfg.TradingEnabled).Msg("Starting daemon")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	gateway := okx.NewClient(okx.Config{
		APIKey:      cfg.OKXAPIKey,
		APISecret:   cfg.OKXAPISecret,
		Passphrase:  cfg.OKXPassphrase,
		BaseURL:     cfg.OKXBaseURL,
		IsDemo:      cfg.OKXIsDemo,
		RateLimitMs: cfg.OKXRateLimitMs,
	}, log)

	market := marketdata.NewService(
		marketdata.NewCandleRepository(db, log),
		marketdata.NewFundingRepository(db, log),
		marketdata.NewPriceRepository(db, log),
		marketdata.NewOpenInterestRepository(db, log),
		marketdata.NewBalanceRepository(db, log),
		log,
	)

	ingester := ingest.NewIngester(gateway, market, ingest.NewRunRepository(db, log), log)
	healthRepo := health.NewRepository(db, log)
	scanner := health.NewScanner(market.Candles, healthRepo, cfg.IntegrityScanDays, log)
	repairer := health.NewRepairer(gateway, market.Candles, healthRepo, log)

	engine := decision.NewEngine(
		market,
		decision.NewClassifier(cfg.RegimeADXThreshold, cfg.RegimeBBWidthThreshold),
		decision.NewScorer(decision.NewPerformanceRepository(db, log), log),
		decision.NewSelector(cfg.PortfolioMinScore, cfg.PortfolioTopN),
		decision.NewRepository(db, log),
		log,
	)
	allocator := allocation.NewAllocator(market, cfg.PortfolioGlobalLeverage, cfg.PortfolioDiffThreshold, cfg.PortfolioMinNotional, log)
	riskMgr := risk.NewManager(
		risk.DefaultRules(cfg.RiskMaxNotional, cfg.RiskMaxLeverage, cfg.RiskMinConfidence),
		risk.NewRepository(db, log),
		log,
	)

	orders := execution.NewOrderRepository(db, log)
	trades := execution.NewTradeRepository(db, log)
	positions := execution.NewPositionRepository(db, log)
	lifecycle := execution.NewLifecycle(db, log)

	var executor execution.Executor
	var tracker *execution.OrderTracker
	var account *execution.AccountSyncer
	if cfg.TradingEnabled {
		executor = execution.NewLiveExecutor(gateway, orders, trades, lifecycle, riskMgr, market, cfg.OKXTdMode, cfg.HedgeMode(), log)
		tracker = execution.NewOrderTracker(gateway, orders, trades, lifecycle, log)
		account = execution.NewAccountSyncer(gateway, market, positions, cfg.OKXAPIKey, log)
	} else {
		executor = execution.NewSimulatedExecutor(orders, trades, positions, lifecycle, riskMgr, market, log)
	}

	symbols := []string{cfg.OKXDefaultSymbol}
	cycle := trading.NewCycle(market, engine, allocator, executor, tracker, account, positions, trading.Options{
		Symbol:         cfg.OKXDefaultSymbol,
		Timeframe:      cfg.OKXTimeframes[0],
		Live:           cfg.TradingEnabled,
		WaitFill:       cfg.WaitFill,
		FillTimeout:    time.Duration(cfg.FillTimeoutS * float64(time.Second)),
		FillInterval:   time.Duration(cfg.FillIntervalS * float64(time.Second)),
		SyncAccount:    cfg.SyncAccount,
		EquityOverride: cfg.EquityOverride,
	}, log)

	sched := scheduler.New(log)
	register := func(schedule string, job scheduler.Job) {
		if err := sched.AddJob(schedule, job); err != nil {
			log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
		}
	}

	ingestJob := ingest.NewJob(ingester, symbols, cfg.OKXTimeframes, cfg.IngestOverlapBars, log)
	register(fmt.Sprintf("@every %ds", cfg.IngestIntervalS), ingestJob)
	register("@every 24h", health.NewScanJob(scanner, repairer, symbols, cfg.OKXTimeframes, log))
	register(fmt.Sprintf("@every %ds", cfg.TradingIntervalS), trading.NewJob(cycle, log))
	if cfg.TradingEnabled {
		historyWindow := int64(7 * 24 * time.Hour / time.Millisecond)
		register(fmt.Sprintf("@every %ds", cfg.OrderSyncIntervalS), execution.NewSyncJob(tracker, symbols, historyWindow, log))
		register(fmt.Sprintf("@every %ds", cfg.AccountSyncS), execution.NewAccountSyncJob(account, symbols, log))
	}

	// backfill before the first scheduled ticks
	if err := sched.RunNow(ingestJob); err != nil {
		log.Warn().Err(err).Msg("Initial ingestion failed")
	}

	sched.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("Shutting down")
	sched.Stop()
}
