package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "fraudlens",
		Short:   "FraudLens - decision and explanation pipeline tooling",
		Version: Version,
	}

	rootCmd.AddCommand(optimizeCmd())
	rootCmd.AddCommand(explainCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(policyCmd())

	return rootCmd
}
