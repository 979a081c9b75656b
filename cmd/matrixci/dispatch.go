package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	dispatchServer   string
	dispatchWorkflow string
	dispatchReason   string

	dispatchCmd = &cobra.Command{
		Use:   "dispatch",
		Short: "Trigger a manual run on a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := json.Marshal(map[string]string{
				"workflow": dispatchWorkflow,
				"reason":   dispatchReason,
			})
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				dispatchServer+"/dispatch", bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("dispatch request: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusAccepted {
				return fmt.Errorf("dispatch rejected (%s): %s", resp.Status, bytes.TrimSpace(body))
			}
			fmt.Println(string(bytes.TrimSpace(body)))
			return nil
		},
	}
)

func init() {
	dispatchCmd.Flags().StringVar(&dispatchServer, "server", "http://localhost:8080", "server base URL")
	dispatchCmd.Flags().StringVar(&dispatchWorkflow, "workflow", "", "limit the dispatch to one workflow by name")
	dispatchCmd.Flags().StringVar(&dispatchReason, "reason", "", "free-text reason recorded with the run")
}
