// Package cmd provides the inverno command-line interface: scoring runs,
// single-stage diagnostics, and model training against a shared SQLite
// store.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/inverno-bio/inverno/core/config"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "inverno",
	Short: "Inverno - network evidence fusion for drug repurposing",
	Long: `Inverno scores drug-disease pairs by fusing three evidence channels:
network propagation of disease genetics over an interaction graph,
signature reversal against perturbational profiles, and externally
computed developability.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "inverno.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (text, json)")
}

// loadConfig layers defaults, file, and environment, applies CLI overrides,
// and builds the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	mgr := config.NewManager(configPath, nil)
	if err := mgr.Load(); err != nil {
		return nil, nil, err
	}
	cfg := mgr.Get()
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	logger := cfg.Logging.NewLogger(nil)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// compileFilter turns a glob pattern into a match function. An empty
// pattern matches everything.
func compileFilter(pattern string) (func(string) bool, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return g.Match, nil
}
