// Package main is the matrixci command-line interface.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"matrixci/internal/artifact"
	"matrixci/internal/config"
	"matrixci/internal/engine"
	"matrixci/internal/ledger"
	"matrixci/internal/security"
	"matrixci/internal/storage"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *log.Logger

	rootCmd = &cobra.Command{
		Use:   "matrixci",
		Short: "A matrix-build pipeline runner",
		Long: `matrixci runs declarative CI workflows: it evaluates push, pull request
and manual-dispatch triggers, expands a build matrix into jobs, executes the
steps of each job in order inside an isolated workspace, and cancels sibling
jobs as soon as one fails.

Step results land in per-run log files and in a signed, hash-chained ledger,
so a stored run cannot be edited without detection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger = log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
			})
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/matrixci/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(keygenCmd)
}

// buildRunner assembles the engine from the loaded configuration: run
// store, signing keys, ledger, and the artifact uploader when configured.
func buildRunner(cmd *cobra.Command) (*engine.Runner, *storage.RunStore, *ledger.Ledger, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	store := storage.NewRunStore(cfg.DataDir)

	pubPath, privPath := cfg.KeyPaths()
	pub, priv, err := security.EnsureKeyPair(pubPath, privPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init signing keys: %w", err)
	}

	ldg, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open ledger: %w", err)
	}

	runner := engine.NewRunner(store, logger)
	runner.Ledger = ldg
	runner.SigningKey = priv
	runner.PublicKey = pub
	runner.MaxParallel = cfg.MaxParallel
	runner.KeepWorkspace = cfg.KeepWorkspace
	if cfg.DefaultShell != "" {
		runner.DefaultShell = cfg.DefaultShell
	}

	if cfg.Artifact.Enabled() {
		uploader, err := artifact.NewObjectStore(cmd.Context(), cfg.Artifact.StoreConfig())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init artifact store: %w", err)
		}
		runner.Artifacts = uploader
	}

	return runner, store, ldg, nil
}
