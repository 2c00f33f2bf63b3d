package optimizer

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fraudlens/fraudlens/internal/policy"
)

var (
	// ErrInsufficientData means the dataset is too small to freeze a policy.
	ErrInsufficientData = errors.New("insufficient data for optimization")
	// ErrDegenerateLabels means the dataset has no fraud or no legitimate
	// examples; net value is undefined in that case.
	ErrDegenerateLabels = errors.New("degenerate labels: need both fraud and legitimate examples")
)

const (
	// DefaultMinTransactions is the smallest dataset a policy may be frozen
	// from.
	DefaultMinTransactions = 100

	gridStep  = 0.01
	gridSteps = 99 // thresholds 0.01 .. 0.99 inclusive
)

type Params struct {
	Economics       policy.Economics
	ReviewMargin    float64
	MinTransactions int
	PolicyVersion   string
	ModelVersion    string
	Now             func() time.Time
}

// Optimize sweeps the threshold grid over a labeled scored dataset and
// freezes the artifact that maximizes total net value. On equal net value
// the lower threshold wins, biasing toward fraud capture.
func Optimize(obs []Observation, p Params) (policy.Artifact, error) {
	min := p.MinTransactions
	if min <= 0 {
		min = DefaultMinTransactions
	}
	if len(obs) < min {
		return policy.Artifact{}, fmt.Errorf("%w: have %d transactions, need %d", ErrInsufficientData, len(obs), min)
	}
	if p.PolicyVersion == "" {
		return policy.Artifact{}, fmt.Errorf("policy version is required")
	}
	if p.ModelVersion == "" {
		return policy.Artifact{}, fmt.Errorf("model version is required")
	}

	frauds := 0
	for _, o := range obs {
		if o.Fraud {
			frauds++
		}
	}
	if frauds == 0 || frauds == len(obs) {
		return policy.Artifact{}, fmt.Errorf("%w: %d fraud of %d total", ErrDegenerateLabels, frauds, len(obs))
	}

	curve := sweep(obs, p.Economics)

	best := curve[0]
	for _, pt := range curve[1:] {
		// Strictly-greater comparison keeps the lowest threshold on ties.
		if pt.NetValue > best.NetValue+netValueEpsilon {
			best = pt
		}
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	art := policy.Artifact{
		Version:      p.PolicyVersion,
		ModelVersion: p.ModelVersion,
		EffectiveAt:  now().UTC().Format(time.RFC3339),
		Threshold:    best.Threshold,
		ReviewMargin: p.ReviewMargin,
		Economics:    p.Economics,
		NetValue:     best.NetValue,
		Curve:        curve,
	}
	if err := art.Validate(); err != nil {
		return policy.Artifact{}, err
	}
	return art, nil
}

// netValueEpsilon absorbs float accumulation noise when comparing thresholds
// whose partitions are economically identical.
const netValueEpsilon = 1e-9

// sweep computes the full net-value curve with one sort and a single pass
// of prefix accumulation. NetValueAt is the slow reference for the same
// quantity.
func sweep(obs []Observation, eco policy.Economics) []policy.CurvePoint {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	legitTotal := 0
	for _, o := range sorted {
		if !o.Fraud {
			legitTotal++
		}
	}

	curve := make([]policy.CurvePoint, 0, gridSteps)
	var (
		approvedLegitAmount float64
		approvedFraudAmount float64
		approvedLegitCount  int
		idx                 int
	)

	for i := 1; i <= gridSteps; i++ {
		t := float64(i) * gridStep

		// Transactions with score < t are approved at this threshold.
		for idx < len(sorted) && sorted[idx].Score < t {
			if sorted[idx].Fraud {
				approvedFraudAmount += sorted[idx].Amount
			} else {
				approvedLegitAmount += sorted[idx].Amount
				approvedLegitCount++
			}
			idx++
		}

		blockedLegit := legitTotal - approvedLegitCount
		curve = append(curve, policy.CurvePoint{Threshold: t, NetValue: netValue(eco, approvedLegitAmount, approvedFraudAmount, blockedLegit)})
	}
	return curve
}

// NetValueAt recomputes net value for one threshold by full scan. The
// optimizer's prefix sweep must agree with this within float tolerance.
func NetValueAt(obs []Observation, eco policy.Economics, threshold float64) float64 {
	var (
		approvedLegitAmount float64
		approvedFraudAmount float64
		blockedLegit        int
	)
	for _, o := range obs {
		switch {
		case o.Score < threshold && o.Fraud:
			approvedFraudAmount += o.Amount
		case o.Score < threshold:
			approvedLegitAmount += o.Amount
		case !o.Fraud:
			blockedLegit++
		}
	}
	return netValue(eco, approvedLegitAmount, approvedFraudAmount, blockedLegit)
}

func netValue(eco policy.Economics, approvedLegitAmount, approvedFraudAmount float64, blockedLegit int) float64 {
	return approvedLegitAmount*eco.MarginRate -
		float64(blockedLegit)*eco.FrictionCost -
		approvedFraudAmount*eco.FraudLossFraction
}
