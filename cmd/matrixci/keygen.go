package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"matrixci/internal/security"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the runner's ed25519 signing key pair",
	RunE: func(_ *cobra.Command, _ []string) error {
		pubPath, privPath := cfg.KeyPaths()
		if _, err := os.Stat(privPath); err == nil {
			return fmt.Errorf("refusing to overwrite existing key at %s", privPath)
		}

		pub, priv, err := security.GenerateKeyPair()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(pubPath), 0o700); err != nil {
			return err
		}
		if err := security.SaveKeyPair(pub, priv, pubPath, privPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s and %s\n", pubPath, privPath)
		return nil
	},
}
