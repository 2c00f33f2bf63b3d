package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fraudlens/fraudlens/internal/audit"
	"github.com/fraudlens/fraudlens/internal/decision"
	"github.com/fraudlens/fraudlens/internal/evidence"
	"github.com/fraudlens/fraudlens/internal/guardrail"
	"github.com/fraudlens/fraudlens/internal/pipeline"
	"github.com/fraudlens/fraudlens/internal/policy"
	"github.com/fraudlens/fraudlens/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticGenerator struct {
	draft string
}

func (g staticGenerator) Generate(ctx context.Context, d types.Decision, ev types.AttributionEvidence) (string, time.Duration, error) {
	return g.draft, 50 * time.Millisecond, nil
}

func (g staticGenerator) Model() string { return "static" }

func testArtifact() policy.Artifact {
	return policy.Artifact{
		Version:      "decision_policy_v1",
		ModelVersion: "xgb_v1",
		EffectiveAt:  "2026-02-01T00:00:00Z",
		Threshold:    0.09,
		Economics: policy.Economics{
			MarginRate:        0.02,
			FrictionCost:      1.5,
			FraudLossFraction: 1.0,
		},
	}
}

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	if err := policy.Save(policyPath, testArtifact()); err != nil {
		t.Fatalf("save policy: %v", err)
	}
	store, err := policy.NewStoreFromFile(policyPath)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}

	auditPath := filepath.Join(dir, "audit.jsonl")
	logger, err := audit.Open(auditPath)
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	svc := &pipeline.Service{
		Policies:  store,
		Engine:    decision.Engine{},
		Reader:    evidence.Reader{TopK: evidence.DefaultTopK},
		Generator: staticGenerator{draft: "The transaction was blocked at a risk score of 0.15, above the 0.09 threshold."},
		Validator: guardrail.NewDefaultValidator(guardrail.Config{}),
		Audit:     logger,
	}
	return New(svc, store, policyPath, auditPath), policyPath
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func processRequest(score float64) ProcessRequest {
	return ProcessRequest{
		TransactionID: "h-100",
		Score:         score,
		ModelVersion:  "xgb_v1",
		Attributions: []types.FeatureAttribution{
			{Feature: "orig_balance_delta", Value: -12000, Contribution: -1.9},
			{Feature: "txn_count_1h", Value: 7, Contribution: 0.8},
		},
	}
}

func TestProcessEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/v1/transactions/process", processRequest(0.15))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var res pipeline.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Decision.Action != types.ActionBlock {
		t.Fatalf("expected BLOCK, got %s", res.Decision.Action)
	}
	if res.Suppressed {
		t.Fatalf("narrative unexpectedly suppressed: %+v", res.Attempt.Verdict)
	}
}

func TestProcessRejectsBadPayload(t *testing.T) {
	srv, _ := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/v1/transactions/process", map[string]any{"score": 0.5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}

	req := processRequest(1.5)
	w = doJSON(t, srv, http.MethodPost, "/v1/transactions/process", req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range score accepted: %d", w.Code)
	}
}

func TestProcessPolicyMismatchReturnsConflict(t *testing.T) {
	srv, _ := testServer(t)

	req := processRequest(0.5)
	req.ModelVersion = "xgb_v9"
	w := doJSON(t, srv, http.MethodPost, "/v1/transactions/process", req)
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Result pipeline.Result `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Result.Decision.Action != types.ActionReview {
		t.Fatalf("expected escalated REVIEW, got %s", body.Result.Decision.Action)
	}
}

func TestPolicyEndpoints(t *testing.T) {
	srv, policyPath := testServer(t)

	w := doJSON(t, srv, http.MethodGet, "/v1/policy", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var body struct {
		Policy policy.Artifact `json:"policy"`
		Hash   string          `json:"hash"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Policy.Version != "decision_policy_v1" || body.Hash == "" {
		t.Fatalf("unexpected policy response: %+v", body)
	}

	// Reload picks up an updated artifact.
	next := testArtifact()
	next.Version = "decision_policy_v2"
	next.Threshold = 0.12
	if err := policy.Save(policyPath, next); err != nil {
		t.Fatalf("save: %v", err)
	}
	w = doJSON(t, srv, http.MethodPost, "/v1/policy/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload status %d: %s", w.Code, w.Body.String())
	}
	loaded, err := srv.Policies.Current()
	if err != nil || loaded.Artifact.Version != "decision_policy_v2" {
		t.Fatalf("reload did not swap artifact: %+v %v", loaded.Artifact, err)
	}
}

func TestAuditEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	for i := 0; i < 3; i++ {
		w := doJSON(t, srv, http.MethodPost, "/v1/transactions/process", processRequest(0.15))
		if w.Code != http.StatusOK {
			t.Fatalf("process status %d", w.Code)
		}
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/audit/records?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("records status %d", w.Code)
	}
	var listing struct {
		Records []types.AuditRecord `json:"records"`
		Count   int                 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listing.Count != 2 {
		t.Fatalf("expected tail of 2, got %d", listing.Count)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/audit/verify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status %d: %s", w.Code, w.Body.String())
	}
	var result audit.VerifyResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Valid || result.Records != 6 {
		t.Fatalf("unexpected verify result: %+v", result)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t)
	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}
