// Package pipeline sequences the decision and explanation flow for one
// transaction: decide, generate, validate, audit. Decisioning is
// mandatory; the narrative is best-effort.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fraudlens/fraudlens/internal/audit"
	"github.com/fraudlens/fraudlens/internal/decision"
	"github.com/fraudlens/fraudlens/internal/evidence"
	"github.com/fraudlens/fraudlens/internal/guardrail"
	"github.com/fraudlens/fraudlens/internal/metrics"
	"github.com/fraudlens/fraudlens/internal/narrative"
	"github.com/fraudlens/fraudlens/internal/policy"
	"github.com/fraudlens/fraudlens/pkg/types"
)

const (
	SuppressionGuardrail   = "guardrail_failed"
	SuppressionGeneration  = "generation_failed"
	SuppressionNoGenerator = "generation_disabled"
)

type Telemetry struct {
	PolicyVersion       string   `json:"policy_version"`
	GenerationLatencyMS int64    `json:"generation_latency_ms"`
	AuditSeqs           []uint64 `json:"audit_seqs"`
}

// Result is the caller-facing composition. Analysts always get a Decision
// and either a validated narrative or an explicit suppression notice; an
// unvalidated draft is never exposed.
type Result struct {
	Decision          types.Decision            `json:"decision"`
	Evidence          types.AttributionEvidence `json:"evidence"`
	Narrative         string                    `json:"narrative"`
	Suppressed        bool                      `json:"suppressed"`
	SuppressionReason string                    `json:"suppression_reason,omitempty"`
	Attempt           types.NarrativeAttempt    `json:"attempt"`
	Telemetry         Telemetry                 `json:"telemetry"`
}

type Service struct {
	Policies  *policy.Store
	Engine    decision.Engine
	Reader    evidence.Reader
	Generator narrative.Generator
	Validator *guardrail.Validator
	Audit     *audit.Logger

	NewID func() string
	Now   func() time.Time
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Process runs one transaction through the pipeline. A Decision is always
// produced and audited even when generation fails entirely; only an audit
// failure fails the request.
func (s *Service) Process(ctx context.Context, score types.RiskScore, attributions []types.FeatureAttribution) (Result, error) {
	ev, err := s.Reader.Normalize(score.TransactionID, score.ModelVersion, attributions)
	if err != nil {
		return Result{}, fmt.Errorf("normalize evidence: %w", err)
	}

	loaded, err := s.Policies.Current()
	if err != nil {
		return Result{}, err
	}
	art := loaded.Artifact

	var mismatchErr error
	dec, err := s.Engine.Decide(score, art)
	if errors.Is(err, decision.ErrPolicyVersionMismatch) {
		// Never silently default: escalate to manual review, audit it,
		// and surface the error to the caller.
		mismatchErr = err
		dec = s.Engine.Escalate(score, art, decision.ReasonPolicyVersionMismatch)
	} else if err != nil {
		return Result{}, err
	}
	ev.PolicyVersion = art.Version

	res := Result{
		Decision: dec,
		Evidence: ev,
		Telemetry: Telemetry{
			PolicyVersion: art.Version,
		},
	}

	decRec, err := s.Audit.Append(types.RecordDecision, dec)
	if err != nil {
		metrics.AuditWriteErrorsTotal.Inc()
		return Result{}, err
	}
	metrics.AuditAppendsTotal.WithLabelValues(string(types.RecordDecision)).Inc()
	metrics.DecisionsTotal.WithLabelValues(string(dec.Action)).Inc()
	res.Telemetry.AuditSeqs = append(res.Telemetry.AuditSeqs, decRec.Seq)

	if mismatchErr != nil {
		return res, mismatchErr
	}

	attempt := s.explain(ctx, dec, ev)
	attRec, err := s.Audit.Append(types.RecordNarrativeAttempt, attempt)
	if err != nil {
		metrics.AuditWriteErrorsTotal.Inc()
		return Result{}, err
	}
	metrics.AuditAppendsTotal.WithLabelValues(string(types.RecordNarrativeAttempt)).Inc()
	res.Telemetry.AuditSeqs = append(res.Telemetry.AuditSeqs, attRec.Seq)

	res.Attempt = attempt
	res.Narrative = attempt.Outcome
	res.Suppressed = attempt.Suppressed
	if attempt.Suppressed {
		switch {
		case attempt.Error != "":
			res.SuppressionReason = SuppressionGeneration
		default:
			res.SuppressionReason = SuppressionGuardrail
		}
		if s.Generator == nil {
			res.SuppressionReason = SuppressionNoGenerator
		}
	}
	res.Telemetry.GenerationLatencyMS = attempt.LatencyMS
	return res, nil
}

// explain runs the best-effort narrative branch: generation under its own
// deadline, then guardrail validation. Failures suppress the narrative but
// never touch the Decision.
func (s *Service) explain(ctx context.Context, dec types.Decision, ev types.AttributionEvidence) types.NarrativeAttempt {
	attempt := types.NarrativeAttempt{
		AttemptID:     s.newID(),
		TransactionID: dec.TransactionID,
		PolicyVersion: dec.PolicyVersion,
		Outcome:       narrative.FallbackNarrative,
		Suppressed:    true,
		CreatedAt:     s.now().UTC().Format(time.RFC3339),
	}

	if s.Generator == nil {
		attempt.Error = "no generator configured"
		return attempt
	}
	attempt.Generator = s.Generator.Model()

	draft, latency, err := s.Generator.Generate(ctx, dec, ev)
	attempt.LatencyMS = latency.Milliseconds()
	metrics.GenerationLatency.Observe(latency.Seconds())
	if err != nil {
		attempt.Error = err.Error()
		metrics.GenerationErrorsTotal.WithLabelValues(generationErrorKind(err)).Inc()
		return attempt
	}

	attempt.Draft = &draft
	verdict := s.Validator.Validate(draft, guardrail.Input{Evidence: ev, Decision: dec})
	attempt.Verdict = verdict
	if !verdict.Passed {
		for _, rule := range verdict.ViolatedRules {
			metrics.GuardrailFailuresTotal.WithLabelValues(rule).Inc()
		}
		return attempt
	}

	attempt.Outcome = draft
	attempt.Suppressed = false
	return attempt
}

func generationErrorKind(err error) string {
	switch {
	case errors.Is(err, narrative.ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, narrative.ErrGenerationUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
