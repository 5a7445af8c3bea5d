package risk

import (
	"github.com/rs/zerolog"

	"github.com/aristath/alpha-arena/internal/domain"
)

// Verdict is the outcome of a rule-chain pass
type Verdict struct {
	Allowed bool
	Rule    string
	Reason  string
}

// Manager runs orders through the rule chain. The first denial wins and
// is recorded as a block-level risk event.
type Manager struct {
	rules  []Rule
	events *Repository
	log    zerolog.Logger
}

// NewManager creates a risk manager over the given rule chain
func NewManager(rules []Rule, events *Repository, log zerolog.Logger) *Manager {
	return &Manager{
		rules:  rules,
		events: events,
		log:    log.With().Str("component", "risk").Logger(),
	}
}

// DefaultRules builds the standard chain from configured limits
func DefaultRules(maxNotional, maxLeverage, minConfidence float64) []Rule {
	return []Rule{
		&MaxNotional{Max: maxNotional},
		&MaxLeverage{Max: maxLeverage},
		&CircuitBreaker{MinConfidence: minConfidence},
	}
}

// Check runs the order through every rule in sequence and stops at the
// first denial. Denials are persisted; a failure to persist does not
// turn a denial into an approval.
func (m *Manager) Check(order *domain.Order) Verdict {
	for _, rule := range m.rules {
		allowed, reason := rule.Check(order)
		if allowed {
			continue
		}
		m.log.Warn().
			Str("symbol", order.Symbol).
			Str("rule", rule.Name()).
			Str("reason", reason).
			Msg("Order blocked by risk rule")
		if err := m.events.Insert(Event{
			Symbol:    order.Symbol,
			Timestamp: domain.UTCNowS(),
			Level:     LevelBlock,
			Rule:      rule.Name(),
			Details:   reason,
		}); err != nil {
			m.log.Error().Err(err).Msg("Failed to record risk event")
		}
		return Verdict{Allowed: false, Rule: rule.Name(), Reason: reason}
	}
	return Verdict{Allowed: true}
}
