// Package main is the entry point for the trialctl CLI: it runs the HTTP
// server or a one-shot search or document batch from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trialscope/internal/config"
	"trialscope/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:     "trialctl",
	Short:   "Extract structured clinical-trial data from PubMed or documents",
	Version: version,
	Long: `trialctl searches PubMed for clinical trials, or reads PDF and image files,
and asks a language model to extract a fixed set of trial attributes from each
item. Results are written as a spreadsheet.

Use "serve" to run the HTTP API instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		if cfgFile == "" {
			cfgFile = os.Getenv("TRIALSCOPE_CONFIG")
		}
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			loaded.Log.Level = level
		}
		cfg = loaded

		env := cfg.Server.Environment
		if cmd.Name() != serveCmd.Name() {
			env = "development"
		}
		logging.InitWithWriter(cfg.Log, env, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: $TRIALSCOPE_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "override log level (debug, info, warn, error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
