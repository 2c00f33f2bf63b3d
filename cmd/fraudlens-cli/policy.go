package main

import (
	"github.com/spf13/cobra"

	"github.com/fraudlens/fraudlens/internal/policy"
)

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Work with frozen policy artifacts",
	}
	cmd.AddCommand(policyLintCmd())
	return cmd
}

func policyLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [policy.yaml]",
		Short: "Validate a policy artifact and print its hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := policy.Load(args[0])
			if err != nil {
				return err
			}
			art := loaded.Artifact
			cmd.Printf("%s: ok\n", args[0])
			cmd.Printf("version:       %s\n", art.Version)
			cmd.Printf("model_version: %s\n", art.ModelVersion)
			cmd.Printf("threshold:     %.2f\n", art.Threshold)
			if art.ReviewMargin > 0 {
				cmd.Printf("review_band:   [%.2f, %.2f)\n", art.Threshold-art.ReviewMargin, art.Threshold)
			}
			cmd.Printf("hash:          %s\n", loaded.Hash)
			return nil
		},
	}
}
