package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"matrixci/internal/server"
	"matrixci/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP trigger surface",
	Long: `Start the HTTP server. Incoming webhook events and manual dispatches are
evaluated against every workflow in the configured workflow directory, and
matching workflows run in the background.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		workflows, err := loadWorkflowDir(cfg.WorkflowDir)
		if err != nil {
			return err
		}
		if len(workflows) == 0 {
			return fmt.Errorf("no workflow files in %s", cfg.WorkflowDir)
		}
		for _, wf := range workflows {
			logger.Info("workflow loaded", "name", wf.Name)
		}

		runner, store, ldg, err := buildRunner(cmd)
		if err != nil {
			return err
		}
		if cfg.WebhookSecret == "" {
			logger.Warn("webhook secret not set, deliveries are unauthenticated")
		}

		s := server.New(runner, store, ldg, workflows, cfg.WebhookSecret, logger)
		httpSrv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           s.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("matrixci listening", "addr", cfg.Listen)
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		logger.Info("shutting down, waiting for in-flight runs")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.Wait()
		return nil
	},
}

// loadWorkflowDir parses every .yml/.yaml file in dir, in name order.
func loadWorkflowDir(dir string) ([]*workflow.Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workflow dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yml", ".yaml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	var workflows []*workflow.Workflow
	for _, path := range paths {
		wf, err := workflow.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}
