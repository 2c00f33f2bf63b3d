package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/fraudlens/fraudlens/internal/audit"
	"github.com/fraudlens/fraudlens/internal/decision"
	"github.com/fraudlens/fraudlens/internal/evidence"
	"github.com/fraudlens/fraudlens/internal/guardrail"
	"github.com/fraudlens/fraudlens/internal/narrative"
	"github.com/fraudlens/fraudlens/internal/pipeline"
	"github.com/fraudlens/fraudlens/internal/policy"
	"github.com/fraudlens/fraudlens/pkg/types"
)

// serviceOpts are the flags shared by explain and batch: they run the same
// pipeline the gateway runs, just fed from files.
type serviceOpts struct {
	policyPath   string
	auditPath    string
	generatorURL string
	model        string
	timeoutMS    int
}

func newLocalService(o serviceOpts) (*pipeline.Service, func(), error) {
	store, err := policy.NewStoreFromFile(o.policyPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := audit.Open(o.auditPath)
	if err != nil {
		return nil, nil, err
	}

	var generator narrative.Generator
	if o.generatorURL != "" {
		timeout := time.Duration(o.timeoutMS) * time.Millisecond
		if timeout == 0 {
			timeout = narrative.DefaultTimeout
		}
		generator = narrative.NewClient(o.generatorURL, o.model, timeout)
	}

	svc := &pipeline.Service{
		Policies:  store,
		Engine:    decision.Engine{},
		Reader:    evidence.Reader{TopK: evidence.DefaultTopK},
		Generator: generator,
		Validator: guardrail.NewDefaultValidator(guardrail.Config{}),
		Audit:     logger,
	}
	return svc, func() { _ = logger.Close() }, nil
}

// transactionInput is one scored transaction as produced by the scoring
// service export.
type transactionInput struct {
	TransactionID string                     `json:"transaction_id"`
	Score         float64                    `json:"score"`
	ModelVersion  string                     `json:"model_version"`
	Attributions  []types.FeatureAttribution `json:"attributions"`
}

func (in transactionInput) riskScore() types.RiskScore {
	return types.RiskScore{
		TransactionID: in.TransactionID,
		Score:         in.Score,
		ModelVersion:  in.ModelVersion,
	}
}

func readTransactionFile(path string) (transactionInput, error) {
	// #nosec G304 -- path is an operator-provided input file.
	raw, err := os.ReadFile(path)
	if err != nil {
		return transactionInput{}, err
	}
	var in transactionInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return transactionInput{}, err
	}
	return in, nil
}
