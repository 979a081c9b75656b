// Package config loads runner configuration from a YAML file and
// MATRIXCI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"matrixci/internal/artifact"
)

// Config is the resolved runner configuration.
type Config struct {
	// DataDir roots run state: workspaces, logs, results, ledger, keys.
	DataDir string `mapstructure:"data_dir"`
	// Listen is the serve address, e.g. ":8080".
	Listen string `mapstructure:"listen"`
	// WebhookSecret authenticates deliveries on POST /events. Empty
	// disables signature checking.
	WebhookSecret string `mapstructure:"webhook_secret"`
	// WorkflowDir holds the workflow files the server evaluates.
	WorkflowDir string `mapstructure:"workflow_dir"`

	MaxParallel   int    `mapstructure:"max_parallel"`
	DefaultShell  string `mapstructure:"default_shell"`
	KeepWorkspace bool   `mapstructure:"keep_workspace"`

	Artifact ArtifactConfig `mapstructure:"artifact"`
}

// ArtifactConfig configures the optional S3-compatible artifact store.
// Upload stays disabled while Endpoint is empty.
type ArtifactConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseTLS    bool   `mapstructure:"use_tls"`
	Region    string `mapstructure:"region"`
}

// Enabled reports whether artifact upload is configured.
func (a ArtifactConfig) Enabled() bool { return a.Endpoint != "" }

// StoreConfig converts to the artifact package's connection config.
func (a ArtifactConfig) StoreConfig() artifact.Config {
	return artifact.Config{
		Endpoint:  a.Endpoint,
		Bucket:    a.Bucket,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
		UseTLS:    a.UseTLS,
		Region:    a.Region,
	}
}

// LedgerPath returns the ledger file location under the data dir.
func (c *Config) LedgerPath() string { return filepath.Join(c.DataDir, "ledger.jsonl") }

// KeyPaths returns the signing key file locations under the data dir.
func (c *Config) KeyPaths() (pubPath, privPath string) {
	keys := filepath.Join(c.DataDir, "keys")
	return filepath.Join(keys, "runner.pub"), filepath.Join(keys, "runner.priv")
}

// Load reads configuration. When path is empty, a config.yml in the default
// config directory is used if present; defaults apply otherwise.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("listen", ":8080")
	v.SetDefault("webhook_secret", "")
	v.SetDefault("workflow_dir", "workflows")
	v.SetDefault("max_parallel", 0)
	v.SetDefault("default_shell", "virtual")
	v.SetDefault("keep_workspace", false)
	// Every key needs a default (or binding) for AutomaticEnv to surface
	// its MATRIXCI_* variable through Unmarshal.
	v.SetDefault("artifact.endpoint", "")
	v.SetDefault("artifact.bucket", "")
	v.SetDefault("artifact.access_key", "")
	v.SetDefault("artifact.secret_key", "")
	v.SetDefault("artifact.use_tls", false)
	v.SetDefault("artifact.region", "us-east-1")

	v.SetEnvPrefix("MATRIXCI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func defaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "matrixci")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "matrixci")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".matrixci"
	}
	return filepath.Join(home, ".matrixci")
}
