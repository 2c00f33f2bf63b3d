// Package guardrail enforces content constraints on generated narratives.
// GenAI never decides here, it only narrates: any narrative that cannot be
// proven grounded in the evidence record is suppressed rather than shown.
package guardrail

import (
	"github.com/fraudlens/fraudlens/pkg/types"
)

// Input is everything a rule may inspect. Rules never see upstream state
// beyond the frozen decision and its evidence.
type Input struct {
	Evidence types.AttributionEvidence
	Decision types.Decision
}

// Rule is one independent predicate over (narrative, input). A nil return
// means the narrative passes the rule.
type Rule interface {
	ID() string
	Check(narrative string, in Input) error
}

// Validator runs rules in order, short-circuiting on the first failure.
// Validation is deterministic and side-effect-free.
type Validator struct {
	rules []Rule
}

func NewValidator(rules ...Rule) *Validator {
	return &Validator{rules: rules}
}

// Validate yields the verdict for one narrative. On failure the violated
// rule identifiers are reported in rule order.
func (v *Validator) Validate(narrative string, in Input) types.GuardrailVerdict {
	for _, rule := range v.rules {
		if err := rule.Check(narrative, in); err != nil {
			return types.GuardrailVerdict{
				Passed:        false,
				ViolatedRules: []string{rule.ID()},
			}
		}
	}
	return types.GuardrailVerdict{Passed: true}
}

// Config shapes the default rule set.
type Config struct {
	// ForbiddenTerms maps a category (rule suffix) to the terms it bans.
	ForbiddenTerms map[string][]string
	// NumericTolerance is the relative tolerance for grounding checks.
	NumericTolerance float64
	// SmallIntegerBound exempts small counts ("top 5 drivers") from
	// grounding. Zero uses the default.
	SmallIntegerBound int
}

// DefaultForbiddenTerms bans the content categories the upstream payload
// can never justify: the scoring features are purely behavioral.
func DefaultForbiddenTerms() map[string][]string {
	return map[string][]string{
		"geography": {"country", "cross-border", "location", "overseas", "domestic"},
		"currency":  {"eur", "usd", "gbp", "euro", "euros", "dollar", "dollars", "pound", "pounds"},
		"merchant":  {"merchant", "merchant category"},
		"identity":  {"user identity", "ip address", "customer name"},
		"device":    {"device", "browser", "handset"},
	}
}

// NewDefaultValidator builds the standard ordered rule set: forbidden terms
// first, then quantitative grounding, then action consistency.
func NewDefaultValidator(cfg Config) *Validator {
	terms := cfg.ForbiddenTerms
	if terms == nil {
		terms = DefaultForbiddenTerms()
	}

	rules := ForbiddenTermRules(terms)
	rules = append(rules, NewGroundingRule(cfg.NumericTolerance, cfg.SmallIntegerBound))
	rules = append(rules, ActionConsistencyRule{})
	return NewValidator(rules...)
}
