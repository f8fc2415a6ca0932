package fraud

import (
	"strings"

	"github.com/google/uuid"

	"github.com/sokohub-labs/sokohub-backend/pkg/config"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

// Signals are the per-transaction inputs the scorer weighs. Velocity
// counters come from the caller so the scorer stays a pure function.
type Signals struct {
	ActorID           uuid.UUID
	IPAddress         string
	DeviceFingerprint string
	Amount            types.Money
	RecentAttempts    int
	RecentFailures    int
	AccountAgeDays    int
	PriorIncidents    int
}

// Assessment is the scored verdict for one transaction.
type Assessment struct {
	RiskScore         int
	TriggeredRules    []string
	RecommendedAction enums.FraudAction
}

// Rule names surfaced in incidents and audit rows.
const (
	RuleHighAmount       = "high_amount"
	RuleVeryHighAmount   = "very_high_amount"
	RuleMissingIP        = "missing_ip_address"
	RuleMissingDevice    = "missing_device_fingerprint"
	RuleRapidAttempts    = "rapid_payment_attempts"
	RuleRepeatedFailures = "repeated_payment_failures"
	RuleNewAccount       = "new_account"
	RulePriorIncidents   = "prior_fraud_incidents"
)

var (
	highAmount     = types.MoneyFromInt(100000)
	veryHighAmount = types.MoneyFromInt(500000)
)

// Scorer turns signals into a deterministic risk verdict.
type Scorer struct {
	thresholds config.FraudConfig
}

// NewScorer builds a scorer with the configured action thresholds.
func NewScorer(thresholds config.FraudConfig) *Scorer {
	return &Scorer{thresholds: thresholds}
}

// Score accumulates rule weights into [0,100] and maps the total onto the
// four ascending thresholds: below medium allow, then flag, review, block.
func (s *Scorer) Score(in Signals) Assessment {
	score := 0
	var rules []string

	add := func(rule string, weight int) {
		score += weight
		rules = append(rules, rule)
	}

	switch {
	case in.Amount.GreaterThanOrEqual(veryHighAmount):
		add(RuleVeryHighAmount, 30)
	case in.Amount.GreaterThanOrEqual(highAmount):
		add(RuleHighAmount, 15)
	}
	if strings.TrimSpace(in.IPAddress) == "" {
		add(RuleMissingIP, 10)
	}
	if strings.TrimSpace(in.DeviceFingerprint) == "" {
		add(RuleMissingDevice, 10)
	}
	if in.RecentAttempts >= 5 {
		add(RuleRapidAttempts, 20)
	}
	if in.RecentFailures >= 3 {
		add(RuleRepeatedFailures, 20)
	}
	if in.AccountAgeDays >= 0 && in.AccountAgeDays < 7 {
		add(RuleNewAccount, 10)
	}
	if in.PriorIncidents > 0 {
		add(RulePriorIncidents, 25)
	}

	if score > 100 {
		score = 100
	}

	return Assessment{
		RiskScore:         score,
		TriggeredRules:    rules,
		RecommendedAction: s.actionFor(score),
	}
}

func (s *Scorer) actionFor(score int) enums.FraudAction {
	switch {
	case score >= s.thresholds.CriticalThreshold:
		return enums.FraudActionBlock
	case score >= s.thresholds.HighThreshold:
		return enums.FraudActionReview
	case score >= s.thresholds.MediumThreshold:
		return enums.FraudActionFlag
	default:
		return enums.FraudActionAllow
	}
}
