package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fraudlens/fraudlens/internal/decision"
	"github.com/fraudlens/fraudlens/internal/pipeline"
)

// batchLine pairs a result with the input that produced it so failures in
// the middle of a file stay attributable.
type batchLine struct {
	TransactionID string           `json:"transaction_id"`
	Result        *pipeline.Result `json:"result,omitempty"`
	Error         string           `json:"error,omitempty"`
}

func batchCmd() *cobra.Command {
	var opts serviceOpts
	var workers int

	cmd := &cobra.Command{
		Use:   "batch [transactions.jsonl]",
		Short: "Run a file of scored transactions through the pipeline",
		Long: `Reads one scored transaction per line (the same JSON shape explain
takes) and processes them concurrently. Results are printed as JSONL in
input order. Audit ordering is preserved by the log itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readBatchFile(args[0])
			if err != nil {
				return fmt.Errorf("read batch: %w", err)
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no transactions in %s", args[0])
			}

			svc, closeFn, err := newLocalService(opts)
			if err != nil {
				return err
			}
			defer closeFn()

			lines := make([]batchLine, len(inputs))
			g, ctx := errgroup.WithContext(context.Background())
			g.SetLimit(workers)
			for i, in := range inputs {
				i, in := i, in
				g.Go(func() error {
					res, err := svc.Process(ctx, in.riskScore(), in.Attributions)
					line := batchLine{TransactionID: in.TransactionID}
					switch {
					case err == nil:
						line.Result = &res
					case errors.Is(err, decision.ErrPolicyVersionMismatch):
						// Escalated but decided; keep going.
						line.Result = &res
						line.Error = err.Error()
					default:
						// Audit and policy failures poison the whole run.
						return fmt.Errorf("%s: %w", in.TransactionID, err)
					}
					lines[i] = line
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, line := range lines {
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.policyPath, "policy", "policy.yaml", "frozen policy artifact")
	cmd.Flags().StringVar(&opts.auditPath, "audit-log", "audit.jsonl", "append-only audit log path")
	cmd.Flags().StringVar(&opts.generatorURL, "generator-url", "", "narrative generation endpoint (empty disables generation)")
	cmd.Flags().StringVar(&opts.model, "model", "llama3.1:8b", "generation model name")
	cmd.Flags().IntVar(&opts.timeoutMS, "timeout-ms", 2000, "generation timeout in milliseconds")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "concurrent pipeline workers")

	return cmd
}

func readBatchFile(path string) ([]transactionInput, error) {
	// #nosec G304 -- path is an operator-provided input file.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var inputs []transactionInput
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for lineNo := 1; sc.Scan(); lineNo++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var in transactionInput
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, sc.Err()
}
