package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"matrixci/internal/workflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-file>...",
	Short: "Parse and validate workflow files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		for _, path := range args {
			wf, err := workflow.Load(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			instances := wf.ExpandAll()
			fmt.Printf("%s: ok (%d job(s), %d matrix instance(s))\n", path, len(wf.Jobs), len(instances))
		}
		return nil
	},
}
