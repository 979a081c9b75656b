package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"matrixci/internal/trigger"
	"matrixci/internal/workflow"
)

var (
	runEvent   string
	runBranch  string
	runBase    string
	runChanged []string
	runReason  string

	runCmd = &cobra.Command{
		Use:   "run <workflow-file>",
		Short: "Execute a workflow for a synthesized event",
		Long: `Run a workflow file locally. The event defaults to a manual dispatch,
which always runs. Pass --event push or --event pull_request together with
--branch/--base/--changed to exercise the workflow's trigger filters; a
filter mismatch is reported and exits zero, because it is not a failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := workflow.Load(args[0])
			if err != nil {
				return err
			}

			ev := trigger.Event{
				Type:         trigger.EventType(runEvent),
				Branch:       runBranch,
				TargetBranch: runBase,
				ChangedPaths: runChanged,
			}
			if !ev.Valid() {
				return fmt.Errorf("unknown event type %q", runEvent)
			}
			if runReason != "" {
				ev.Inputs = map[string]string{"reason": runReason}
			}

			// Manual invocation runs unconditionally; push and pull
			// request events honor the workflow's filters.
			if ev.Type != trigger.EventDispatch && !trigger.ShouldRun(wf, ev) {
				logger.Info("trigger filters did not match, nothing to run",
					"workflow", wf.Name, "event", ev.Type)
				return nil
			}

			runner, _, _, err := buildRunner(cmd)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			result, err := runner.Run(cmd.Context(), runID, wf, ev)
			if err != nil {
				return err
			}

			for _, jr := range result.Jobs {
				fmt.Printf("%-9s  %s\n", jr.Status, jr.Name)
				if verbose {
					for _, sr := range jr.Steps {
						fmt.Printf("  %-9s  %s\n", sr.Status, sr.Name)
					}
				}
			}
			if result.Failed() {
				return fmt.Errorf("run %s finished with status %s", runID, result.Status)
			}
			fmt.Printf("run %s succeeded\n", runID)
			return nil
		},
	}
)

func init() {
	runCmd.Flags().StringVar(&runEvent, "event", string(trigger.EventDispatch), "event type: push, pull_request, or workflow_dispatch")
	runCmd.Flags().StringVar(&runBranch, "branch", "", "pushed branch (push) or source branch (pull_request)")
	runCmd.Flags().StringVar(&runBase, "base", "", "target branch of the pull request")
	runCmd.Flags().StringSliceVar(&runChanged, "changed", nil, "changed file paths, repeatable")
	runCmd.Flags().StringVar(&runReason, "reason", "", "free-text reason recorded with a manual run")
}
