package decision

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
	"github.com/aristath/alpha-arena/internal/modules/marketdata"
	"github.com/aristath/alpha-arena/internal/modules/strategies"
)

const candleWindow = 200

// Decision actions
const (
	ActionPortfolio = "portfolio"
	ActionHold      = "HOLD"
)

// Rejection reasons
const (
	ReasonNoCandles          = "no_candles"
	ReasonNoStrategySelected = "no_strategy_selected"
)

// Outcome is the result of one decision pass
type Outcome struct {
	DecisionID  int64
	Regime      Regime
	Indicators  map[string]float64
	Allocations []Allocation
	Accepted    bool
	Reason      string
}

// Engine runs the classify-score-select pipeline and persists the result
type Engine struct {
	market     *marketdata.Service
	classifier *Classifier
	scorer     *Scorer
	selector   *Selector
	decisions  *Repository
	log        zerolog.Logger
}

// NewEngine creates a new decision engine
func NewEngine(market *marketdata.Service, classifier *Classifier, scorer *Scorer, selector *Selector, decisions *Repository, log zerolog.Logger) *Engine {
	return &Engine{
		market:     market,
		classifier: classifier,
		scorer:     scorer,
		selector:   selector,
		decisions:  decisions,
		log:        log.With().Str("component", "decision_engine").Logger(),
	}
}

// Decide runs one decision pass for (symbol, timeframe). Every pass
// leaves a decisions row, accepted or not.
func (e *Engine) Decide(symbol, timeframe string) (*Outcome, error) {
	candles, err := e.market.Candles.GetRecent(symbol, timeframe, candleWindow)
	if err != nil {
		return nil, err
	}

	if len(candles) == 0 {
		outcome := &Outcome{
			Regime:     RegimeUnknown,
			Indicators: map[string]float64{},
			Accepted:   false,
			Reason:     ReasonNoCandles,
		}
		if err := e.persist(symbol, timeframe, candles, outcome); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	indicators := e.classifier.Indicators(candles)
	regime := e.classifier.Classify(indicators)

	scores, err := e.scorer.Score(symbol, timeframe, regime, strategies.Candidates())
	if err != nil {
		return nil, err
	}
	allocations := e.selector.Select(scores)

	outcome := &Outcome{
		Regime:      regime,
		Indicators:  indicators,
		Allocations: allocations,
		Accepted:    len(allocations) > 0,
	}
	if !outcome.Accepted {
		outcome.Reason = ReasonNoStrategySelected
	}

	if err := e.persist(symbol, timeframe, candles, outcome); err != nil {
		return nil, err
	}

	e.log.Info().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Str("regime", string(regime)).
		Bool("accepted", outcome.Accepted).
		Int("allocations", len(allocations)).
		Msg("Decision made")
	return outcome, nil
}

func (e *Engine) persist(symbol, timeframe string, candles []domain.Candle, outcome *Outcome) error {
	marketData := map[string]interface{}{"candles": len(candles)}
	if len(candles) > 0 {
		last := candles[len(candles)-1]
		marketData["last_close"] = last.Close
		marketData["last_timestamp"] = last.Timestamp
	}

	payload, err := json.Marshal(map[string]interface{}{
		"regime":      outcome.Regime,
		"indicators":  outcome.Indicators,
		"market_data": marketData,
		"allocations": outcome.Allocations,
		"accepted":    outcome.Accepted,
		"reason":      outcome.Reason,
	})
	if err != nil {
		return err
	}

	d := domain.Decision{
		Symbol:            symbol,
		Timeframe:         timeframe,
		Timestamp:         domain.UTCNowS(),
		TechnicalAnalysis: string(payload),
	}
	if outcome.Accepted {
		d.Action = ActionPortfolio
		d.Reasoning = "scored_by_regime_and_performance"
		d.Confidence = &outcome.Allocations[0].Score
	} else {
		d.Action = ActionHold
		d.Reasoning = outcome.Reason
	}

	id, err := e.decisions.Insert(d)
	if err != nil {
		return err
	}
	outcome.DecisionID = id
	return nil
}
