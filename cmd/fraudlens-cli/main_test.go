package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fraudlens/fraudlens/internal/pipeline"
	"github.com/fraudlens/fraudlens/internal/policy"
	"github.com/fraudlens/fraudlens/pkg/types"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeDataset(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("txn_id,score,label,amount\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "legit-%d,0.05,0,100.00\n", i)
	}
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, "fraud-%d,0.90,1,500.00\n", i)
	}
	path := filepath.Join(dir, "scores.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func writeTransaction(t *testing.T, dir string, score float64) string {
	t.Helper()
	in := transactionInput{
		TransactionID: "h-100",
		Score:         score,
		ModelVersion:  "xgb_v1",
		Attributions: []types.FeatureAttribution{
			{Feature: "orig_balance_delta", Value: -12000, Contribution: -1.9},
			{Feature: "txn_count_1h", Value: 7, Contribution: 0.8},
		},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, "txn.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestOptimizeFreezesPolicy(t *testing.T) {
	dir := t.TempDir()
	dataset := writeDataset(t, dir)
	out := filepath.Join(dir, "policy.yaml")

	output, err := runCLI(t,
		"optimize", dataset,
		"--policy-version", "decision_policy_v1",
		"--model-version", "xgb_v1",
		"--min-transactions", "10",
		"-o", out,
	)
	if err != nil {
		t.Fatalf("optimize: %v\n%s", err, output)
	}

	loaded, err := policy.Load(out)
	if err != nil {
		t.Fatalf("load frozen policy: %v", err)
	}
	art := loaded.Artifact
	if art.Version != "decision_policy_v1" || art.ModelVersion != "xgb_v1" {
		t.Fatalf("metadata not frozen: %+v", art)
	}
	// All fraud sits at 0.90, legit at 0.05: any threshold between them
	// separates perfectly, and the tie-break keeps the lowest.
	if art.Threshold <= 0.05 || art.Threshold >= 0.90 {
		t.Fatalf("threshold %v does not separate the dataset", art.Threshold)
	}
	if !strings.Contains(output, "frozen decision_policy_v1") {
		t.Fatalf("missing summary output: %s", output)
	}
}

func TestOptimizeRejectsSmallDataset(t *testing.T) {
	dir := t.TempDir()
	dataset := writeDataset(t, dir)

	_, err := runCLI(t,
		"optimize", dataset,
		"--policy-version", "v1",
		"--model-version", "xgb_v1",
		"--min-transactions", "100",
		"-o", filepath.Join(dir, "policy.yaml"),
	)
	if err == nil {
		t.Fatalf("expected insufficient-data error")
	}
}

func TestExplainAndAuditVerify(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	err := policy.Save(policyPath, policy.Artifact{
		Version:      "decision_policy_v1",
		ModelVersion: "xgb_v1",
		Threshold:    0.09,
		Economics: policy.Economics{
			MarginRate:        0.02,
			FrictionCost:      1.5,
			FraudLossFraction: 1.0,
		},
	})
	if err != nil {
		t.Fatalf("save policy: %v", err)
	}
	txn := writeTransaction(t, dir, 0.15)
	auditPath := filepath.Join(dir, "audit.jsonl")

	output, err := runCLI(t,
		"explain", txn,
		"--policy", policyPath,
		"--audit-log", auditPath,
		"--json",
	)
	if err != nil {
		t.Fatalf("explain: %v\n%s", err, output)
	}

	var res pipeline.Result
	if err := json.Unmarshal([]byte(output), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, output)
	}
	if res.Decision.Action != types.ActionBlock {
		t.Fatalf("expected BLOCK, got %s", res.Decision.Action)
	}
	// No generator configured: decision stands, narrative falls back.
	if !res.Suppressed {
		t.Fatalf("expected suppressed narrative without a generator")
	}

	verifyOut, err := runCLI(t, "audit", "verify", auditPath)
	if err != nil {
		t.Fatalf("audit verify: %v\n%s", err, verifyOut)
	}
	if !strings.Contains(verifyOut, "ok: 2 records") {
		t.Fatalf("unexpected verify output: %s", verifyOut)
	}

	lintOut, err := runCLI(t, "policy", "lint", policyPath)
	if err != nil {
		t.Fatalf("policy lint: %v\n%s", err, lintOut)
	}
	if !strings.Contains(lintOut, "decision_policy_v1") {
		t.Fatalf("unexpected lint output: %s", lintOut)
	}
}

func TestBatchProcessesAllLines(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	err := policy.Save(policyPath, policy.Artifact{
		Version:      "decision_policy_v1",
		ModelVersion: "xgb_v1",
		Threshold:    0.09,
		Economics: policy.Economics{
			MarginRate:        0.02,
			FrictionCost:      1.5,
			FraudLossFraction: 1.0,
		},
	})
	if err != nil {
		t.Fatalf("save policy: %v", err)
	}

	var b strings.Builder
	for i, score := range []float64{0.15, 0.05, 0.80} {
		in := transactionInput{
			TransactionID: fmt.Sprintf("h-%d", i),
			Score:         score,
			ModelVersion:  "xgb_v1",
			Attributions: []types.FeatureAttribution{
				{Feature: "amount", Value: 100, Contribution: 0.5},
			},
		}
		raw, _ := json.Marshal(in)
		b.Write(raw)
		b.WriteByte('\n')
	}
	batchPath := filepath.Join(dir, "batch.jsonl")
	if err := os.WriteFile(batchPath, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	auditPath := filepath.Join(dir, "audit.jsonl")

	output, err := runCLI(t,
		"batch", batchPath,
		"--policy", policyPath,
		"--audit-log", auditPath,
		"--workers", "2",
	)
	if err != nil {
		t.Fatalf("batch: %v\n%s", err, output)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 result lines, got %d:\n%s", len(lines), output)
	}
	var first batchLine
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.TransactionID != "h-0" || first.Result == nil {
		t.Fatalf("results not in input order: %+v", first)
	}
	if first.Result.Decision.Action != types.ActionBlock {
		t.Fatalf("expected BLOCK for h-0, got %s", first.Result.Decision.Action)
	}

	// Concurrent appends must still form a valid chain.
	verifyOut, err := runCLI(t, "audit", "verify", auditPath)
	if err != nil {
		t.Fatalf("audit verify: %v\n%s", err, verifyOut)
	}
	if !strings.Contains(verifyOut, "ok: 6 records") {
		t.Fatalf("unexpected verify output: %s", verifyOut)
	}
}
