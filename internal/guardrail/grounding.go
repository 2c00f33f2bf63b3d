package guardrail

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultNumericTolerance is the relative tolerance for matching a
	// narrated figure against evidence. The prompt asks the generator to
	// round to two decimals, so exact equality is too strict.
	DefaultNumericTolerance = 0.005
	// absoluteNumericTolerance floors the tolerance near zero, where a
	// relative bound collapses.
	absoluteNumericTolerance = 0.005

	// DefaultSmallIntegerBound exempts small counts and ordinals from
	// grounding ("top 5 drivers", "2-3 sentences").
	DefaultSmallIntegerBound = 12
)

var numberPattern = regexp.MustCompile(`[-+]?\d+(?:,\d{3})*(?:\.\d+)?%?`)

// GroundingRule fails a narrative containing a quantitative claim that is
// not traceable to the evidence record or the frozen decision.
type GroundingRule struct {
	tolerance     float64
	smallIntegers int
}

func NewGroundingRule(tolerance float64, smallIntegerBound int) GroundingRule {
	if tolerance <= 0 {
		tolerance = DefaultNumericTolerance
	}
	if smallIntegerBound <= 0 {
		smallIntegerBound = DefaultSmallIntegerBound
	}
	return GroundingRule{tolerance: tolerance, smallIntegers: smallIntegerBound}
}

func (r GroundingRule) ID() string { return "ungrounded_quantity" }

func (r GroundingRule) Check(narrative string, in Input) error {
	allowed := r.allowedValues(in)

	for _, tok := range numberPattern.FindAllString(narrative, -1) {
		values, smallInt, err := parseClaim(tok, r.smallIntegers)
		if err != nil {
			return fmt.Errorf("unparseable quantity %q", tok)
		}
		if smallInt {
			continue
		}
		if !matchesAny(values, allowed, r.tolerance) {
			return fmt.Errorf("quantity %q not traceable to evidence", tok)
		}
	}
	return nil
}

// allowedValues collects every figure the narrative may legitimately quote:
// raw feature values, signed contributions (and their magnitudes), the
// risk score and the policy threshold.
func (r GroundingRule) allowedValues(in Input) []float64 {
	allowed := make([]float64, 0, 2*len(in.Evidence.Drivers)+4)
	for _, d := range in.Evidence.Drivers {
		allowed = append(allowed, d.Value, d.Contribution, math.Abs(d.Contribution))
	}
	allowed = append(allowed,
		in.Decision.Score,
		in.Decision.Threshold,
	)
	return allowed
}

// parseClaim turns a narrated token into candidate values. A percent form
// is matched both literally and as a fraction (91% vs 0.91). Small bare
// integers are exempt.
func parseClaim(tok string, smallIntegerBound int) (values []float64, smallInt bool, err error) {
	percent := strings.HasSuffix(tok, "%")
	cleaned := strings.TrimSuffix(tok, "%")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, false, err
	}

	if !percent && v == math.Trunc(v) && math.Abs(v) <= float64(smallIntegerBound) && !strings.Contains(cleaned, ".") {
		return nil, true, nil
	}

	values = []float64{v}
	if percent {
		values = append(values, v/100)
	}
	return values, false, nil
}

func matchesAny(claims, allowed []float64, tolerance float64) bool {
	for _, c := range claims {
		for _, a := range allowed {
			if closeEnough(c, a, tolerance) {
				return true
			}
		}
	}
	return false
}

func closeEnough(claim, actual, tolerance float64) bool {
	diff := math.Abs(claim - actual)
	if diff <= absoluteNumericTolerance {
		return true
	}
	scale := math.Max(math.Abs(claim), math.Abs(actual))
	return diff <= scale*tolerance
}
