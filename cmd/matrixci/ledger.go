package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"matrixci/internal/ledger"
)

var (
	ledgerFile string

	ledgerCmd = &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and verify the step-result ledger",
	}

	ledgerVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify the ledger's hash chain and signatures",
		RunE: func(_ *cobra.Command, _ []string) error {
			l, err := openLedger()
			if err != nil {
				return err
			}
			if err := l.VerifyChain(); err != nil {
				return fmt.Errorf("ledger verification failed: %w", err)
			}
			fmt.Printf("ledger verification ok (%d record(s))\n", len(l.Records()))
			return nil
		},
	}

	ledgerInspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Print the recorded step results",
		RunE: func(_ *cobra.Command, _ []string) error {
			l, err := openLedger()
			if err != nil {
				return err
			}
			for _, rec := range l.Records() {
				fmt.Printf("index=%d run=%s job=%q step=%q status=%s hash=%s\n",
					rec.Index, rec.RunID, rec.Job, rec.Step, rec.Status, rec.Hash[:16])
			}
			return nil
		},
	}
)

func openLedger() (*ledger.Ledger, error) {
	path := ledgerFile
	if path == "" {
		path = cfg.LedgerPath()
	}
	return ledger.Open(path)
}

func init() {
	ledgerCmd.PersistentFlags().StringVar(&ledgerFile, "file", "", "ledger file (default is <data-dir>/ledger.jsonl)")
	ledgerCmd.AddCommand(ledgerVerifyCmd)
	ledgerCmd.AddCommand(ledgerInspectCmd)
}
