package decision

import (
	"errors"
	"fmt"
	"time"

	"github.com/fraudlens/fraudlens/internal/policy"
	"github.com/fraudlens/fraudlens/pkg/types"
)

// ErrPolicyVersionMismatch means the score was produced by a model the
// policy was not calibrated for. The transaction must be escalated to
// manual review, never silently defaulted.
var ErrPolicyVersionMismatch = errors.New("risk score model version does not match policy model version")

const (
	ReasonScoreAtOrAboveThreshold = "SCORE_AT_OR_ABOVE_THRESHOLD"
	ReasonScoreInReviewBand       = "SCORE_IN_REVIEW_BAND"
	ReasonScoreBelowThreshold     = "SCORE_BELOW_THRESHOLD"
	ReasonPolicyVersionMismatch   = "POLICY_VERSION_MISMATCH"
)

// Engine applies a frozen policy to risk scores. Decide is a pure function
// of its inputs apart from the injected clock.
type Engine struct {
	Now func() time.Time
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Decide maps a score to an action under the artifact's threshold. Block at
// or above the threshold, Review inside the review band below it when one
// is configured, Approve otherwise.
func (e Engine) Decide(score types.RiskScore, art policy.Artifact) (types.Decision, error) {
	if score.TransactionID == "" {
		return types.Decision{}, fmt.Errorf("missing transaction id")
	}
	if score.Score < 0 || score.Score > 1 {
		return types.Decision{}, fmt.Errorf("score %v outside [0,1]", score.Score)
	}
	if score.ModelVersion != art.ModelVersion {
		return types.Decision{}, fmt.Errorf("%w: score=%s policy=%s",
			ErrPolicyVersionMismatch, score.ModelVersion, art.ModelVersion)
	}

	action := types.ActionApprove
	reason := ReasonScoreBelowThreshold
	switch {
	case score.Score >= art.Threshold:
		action = types.ActionBlock
		reason = ReasonScoreAtOrAboveThreshold
	case art.ReviewMargin > 0 && score.Score >= art.Threshold-art.ReviewMargin:
		action = types.ActionReview
		reason = ReasonScoreInReviewBand
	}

	return types.Decision{
		TransactionID: score.TransactionID,
		Action:        action,
		Score:         score.Score,
		ModelVersion:  score.ModelVersion,
		PolicyVersion: art.Version,
		Threshold:     art.Threshold,
		ReasonCodes:   []string{reason},
		CreatedAt:     e.now().UTC().Format(time.RFC3339),
	}, nil
}

// Escalate builds the manual-review decision used when the policy cannot be
// applied to the score at all.
func (e Engine) Escalate(score types.RiskScore, art policy.Artifact, reason string) types.Decision {
	return types.Decision{
		TransactionID: score.TransactionID,
		Action:        types.ActionReview,
		Score:         score.Score,
		ModelVersion:  score.ModelVersion,
		PolicyVersion: art.Version,
		Threshold:     art.Threshold,
		ReasonCodes:   []string{reason},
		CreatedAt:     e.now().UTC().Format(time.RFC3339),
	}
}
