package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fraudlens/fraudlens/internal/decision"
)

func explainCmd() *cobra.Command {
	var opts serviceOpts
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "explain [transaction.json]",
		Short: "Run one scored transaction through the pipeline",
		Long: `Reads a scored transaction with its feature attributions, decides it
against the frozen policy, and prints the decision plus the guardrailed
narrative (or the fallback if it was suppressed).

Examples:
  fraudlens explain txn.json --policy policies/decision_policy_v1.yaml \
    --audit-log audit.jsonl --generator-url http://localhost:11434/api/generate \
    --model llama3.1:8b`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readTransactionFile(args[0])
			if err != nil {
				return fmt.Errorf("read transaction: %w", err)
			}

			svc, closeFn, err := newLocalService(opts)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.Process(context.Background(), in.riskScore(), in.Attributions)
			if err != nil && !errors.Is(err, decision.ErrPolicyVersionMismatch) {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			cmd.Printf("transaction: %s\n", res.Decision.TransactionID)
			cmd.Printf("action:      %s (score %.4f, threshold %.2f, policy %s)\n",
				res.Decision.Action, res.Decision.Score, res.Decision.Threshold, res.Decision.PolicyVersion)
			if len(res.Decision.ReasonCodes) > 0 {
				cmd.Printf("reasons:     %v\n", res.Decision.ReasonCodes)
			}
			cmd.Printf("narrative:   %s\n", res.Narrative)
			if res.Suppressed {
				cmd.Printf("suppressed:  %s %v\n", res.SuppressionReason, res.Attempt.Verdict.ViolatedRules)
			}
			if err != nil {
				cmd.Printf("warning:     %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.policyPath, "policy", "policy.yaml", "frozen policy artifact")
	cmd.Flags().StringVar(&opts.auditPath, "audit-log", "audit.jsonl", "append-only audit log path")
	cmd.Flags().StringVar(&opts.generatorURL, "generator-url", "", "narrative generation endpoint (empty disables generation)")
	cmd.Flags().StringVar(&opts.model, "model", "llama3.1:8b", "generation model name")
	cmd.Flags().IntVar(&opts.timeoutMS, "timeout-ms", 2000, "generation timeout in milliseconds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the full result as JSON")

	return cmd
}
