package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	LogLevel     string
	LogPretty    bool

	// OKX gateway
	OKXAPIKey        string
	OKXAPISecret     string
	OKXPassphrase    string
	OKXBaseURL       string
	OKXIsDemo        bool
	OKXTdMode        string // cross | isolated | cash
	OKXPosMode       string // long_short | net
	OKXDefaultSymbol string
	OKXDefaultMarket string // swap | spot
	OKXTimeframes    []string
	OKXRateLimitMs   int

	// Order fill polling
	WaitFill      bool
	FillTimeoutS  float64
	FillIntervalS float64
	SyncAccount   bool

	// Regime classifier thresholds
	RegimeADXThreshold     float64
	RegimeBBWidthThreshold float64

	// Portfolio allocator
	PortfolioGlobalLeverage float64
	PortfolioDiffThreshold  float64
	PortfolioMinNotional    float64
	PortfolioTopN           int
	PortfolioMinScore       float64

	// Risk rules
	RiskMaxNotional   float64
	RiskMaxLeverage   float64
	RiskMinConfidence float64

	// Background loops
	TradingEnabled     bool
	APIWriteEnabled    bool
	EquityOverride     float64
	TradingIntervalS   int
	IngestIntervalS    int
	IngestOverlapBars  int
	OrderSyncIntervalS int
	AccountSyncS       int
	IntegrityScanDays  int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath: getEnv("DATABASE_PATH", "./data/alpha_arena.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", false),

		OKXAPIKey:        getEnv("OKX_API_KEY", ""),
		OKXAPISecret:     getEnv("OKX_API_SECRET", ""),
		OKXPassphrase:    getEnv("OKX_PASSWORD", ""),
		OKXBaseURL:       getEnv("OKX_BASE_URL", "https://www.okx.com"),
		OKXIsDemo:        getEnvAsBool("OKX_IS_DEMO", true),
		OKXTdMode:        getEnv("OKX_TD_MODE", "cross"),
		OKXPosMode:       getEnv("OKX_POS_MODE", "long_short"),
		OKXDefaultSymbol: getEnv("OKX_DEFAULT_SYMBOL", "BTC/USDT:USDT"),
		OKXDefaultMarket: getEnv("OKX_DEFAULT_MARKET", "swap"),
		OKXTimeframes:    getEnvAsSlice("OKX_TIMEFRAMES", []string{"15m", "1h", "4h", "1d"}),
		OKXRateLimitMs:   getEnvAsInt("OKX_RATE_LIMIT_MS", 100),

		WaitFill:      getEnvAsBool("OKX_WAIT_FILL", true),
		FillTimeoutS:  getEnvAsFloat("OKX_FILL_TIMEOUT_S", 8.0),
		FillIntervalS: getEnvAsFloat("OKX_FILL_INTERVAL_S", 1.0),
		SyncAccount:   getEnvAsBool("OKX_SYNC_ACCOUNT", true),

		RegimeADXThreshold:     getEnvAsFloat("REGIME_ADX_THRESHOLD", 25.0),
		RegimeBBWidthThreshold: getEnvAsFloat("REGIME_BB_WIDTH_THRESHOLD", 0.04),

		PortfolioGlobalLeverage: getEnvAsFloat("PORTFOLIO_GLOBAL_LEVERAGE", 1.0),
		PortfolioDiffThreshold:  getEnvAsFloat("PORTFOLIO_DIFF_THRESHOLD", 10.0),
		PortfolioMinNotional:    getEnvAsFloat("PORTFOLIO_MIN_NOTIONAL", 10.0),
		PortfolioTopN:           getEnvAsInt("PORTFOLIO_TOP_N", 3),
		PortfolioMinScore:       getEnvAsFloat("PORTFOLIO_MIN_SCORE", 0.45),

		RiskMaxNotional:   getEnvAsFloat("RISK_MAX_NOTIONAL", 20000.0),
		RiskMaxLeverage:   getEnvAsFloat("RISK_MAX_LEVERAGE", 3.0),
		RiskMinConfidence: getEnvAsFloat("RISK_MIN_CONFIDENCE", 0.6),

		TradingEnabled:     getEnvAsBool("TRADING_ENABLED", false),
		APIWriteEnabled:    getEnvAsBool("API_WRITE_ENABLED", false),
		EquityOverride:     getEnvAsFloat("TRADING_EQUITY_OVERRIDE", 0),
		TradingIntervalS:   getEnvAsInt("TRADING_INTERVAL_S", 900),
		IngestIntervalS:    getEnvAsInt("INGEST_INTERVAL_S", 300),
		IngestOverlapBars:  getEnvAsInt("INGEST_OVERLAP_BARS", 2),
		OrderSyncIntervalS: getEnvAsInt("ORDER_SYNC_INTERVAL_S", 60),
		AccountSyncS:       getEnvAsInt("ACCOUNT_SYNC_INTERVAL_S", 300),
		IntegrityScanDays:  getEnvAsInt("INTEGRITY_SCAN_DAYS", 90),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if len(c.OKXTimeframes) == 0 {
		return fmt.Errorf("OKX_TIMEFRAMES must not be empty")
	}
	if c.TradingEnabled && c.OKXAPIKey == "" {
		return fmt.Errorf("OKX_API_KEY is required when TRADING_ENABLED=true")
	}
	return nil
}

// HedgeMode reports whether orders must carry an explicit position side.
func (c *Config) HedgeMode() bool {
	mode := strings.ToLower(strings.TrimSpace(c.OKXPosMode))
	return mode == "long_short" || mode == "hedge" || mode == "longshort"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
