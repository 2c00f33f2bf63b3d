package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fraudlens/fraudlens/internal/audit"
	"github.com/fraudlens/fraudlens/internal/audit/sqlstore"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and verify the audit trail",
	}
	cmd.AddCommand(auditVerifyCmd())
	cmd.AddCommand(auditRecordsCmd())
	return cmd
}

func auditVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [audit.jsonl]",
		Short: "Re-derive the hash chain and report the first divergence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := audit.VerifyChain(args[0])
			if err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("chain broken at seq %d: %s (%d records scanned)",
					res.BadSeq, res.Problem, res.Records)
			}
			cmd.Printf("ok: %d records, tip %s\n", res.Records, res.TipHash)
			return nil
		},
	}
}

func auditRecordsCmd() *cobra.Command {
	var (
		db            string
		transactionID string
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List audit records from the query mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlstore.Open(db)
			if err != nil {
				return err
			}
			defer store.Close()

			if transactionID != "" {
				recs, err := store.ListByTransaction(transactionID)
				if err != nil {
					return err
				}
				for _, rec := range recs {
					cmd.Printf("%d\t%s\t%s\t%s\n", rec.Seq, rec.Kind, rec.Timestamp, rec.Hash)
				}
				return nil
			}

			recs, err := store.ListRecent(limit)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				cmd.Printf("%d\t%s\t%s\t%s\n", rec.Seq, rec.Kind, rec.Timestamp, rec.Hash)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "audit.db", "sqlite query mirror path")
	cmd.Flags().StringVar(&transactionID, "transaction", "", "filter by transaction id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records")

	return cmd
}
