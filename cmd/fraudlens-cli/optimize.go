package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fraudlens/fraudlens/internal/optimizer"
	"github.com/fraudlens/fraudlens/internal/policy"
)

func optimizeCmd() *cobra.Command {
	var (
		out             string
		policyVersion   string
		modelVersion    string
		marginRate      float64
		frictionCost    float64
		fraudLoss       float64
		reviewMargin    float64
		minTransactions int
	)

	cmd := &cobra.Command{
		Use:   "optimize [dataset.csv]",
		Short: "Sweep thresholds over a labeled dataset and freeze the best policy",
		Long: `Reads a labeled scored dataset (txn_id,score,label,amount), sweeps the
threshold grid, and writes the net-value-maximizing policy artifact.

Examples:
  fraudlens optimize scores.csv --policy-version decision_policy_v2 \
    --model-version xgb_v1 -o policies/decision_policy_v2.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := optimizer.ReadCSV(args[0])
			if err != nil {
				return fmt.Errorf("read dataset: %w", err)
			}
			summary := optimizer.Summarize(obs)

			art, err := optimizer.Optimize(obs, optimizer.Params{
				Economics: policy.Economics{
					MarginRate:        marginRate,
					FrictionCost:      frictionCost,
					FraudLossFraction: fraudLoss,
				},
				ReviewMargin:    reviewMargin,
				MinTransactions: minTransactions,
				PolicyVersion:   policyVersion,
				ModelVersion:    modelVersion,
			})
			if err != nil {
				return err
			}

			if err := policy.Save(out, art); err != nil {
				return fmt.Errorf("write policy: %w", err)
			}

			cmd.Printf("dataset: %d transactions, %d fraud (%.2f%%)\n",
				summary.Total, summary.Frauds, summary.FraudRate*100)
			cmd.Printf("frozen %s: threshold=%.2f net_value=%.2f -> %s\n",
				art.Version, art.Threshold, art.NetValue, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "policy.yaml", "output policy artifact path")
	cmd.Flags().StringVar(&policyVersion, "policy-version", "", "version string for the frozen policy (required)")
	cmd.Flags().StringVar(&modelVersion, "model-version", "", "model version the dataset was scored with (required)")
	cmd.Flags().Float64Var(&marginRate, "margin-rate", 0.02, "profit margin on approved legitimate volume")
	cmd.Flags().Float64Var(&frictionCost, "friction-cost", 1.5, "cost per blocked legitimate transaction")
	cmd.Flags().Float64Var(&fraudLoss, "fraud-loss-fraction", 1.0, "fraction of approved fraud amount lost")
	cmd.Flags().Float64Var(&reviewMargin, "review-margin", 0, "width of the manual-review band below the threshold")
	cmd.Flags().IntVar(&minTransactions, "min-transactions", optimizer.DefaultMinTransactions, "minimum dataset size")
	_ = cmd.MarkFlagRequired("policy-version")
	_ = cmd.MarkFlagRequired("model-version")

	return cmd
}
