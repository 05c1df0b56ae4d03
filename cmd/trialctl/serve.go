package main

import (
	"github.com/spf13/cobra"

	"trialscope/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Server.Port = port
		}

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		return a.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "listen address, e.g. :8080 (overrides config)")

	rootCmd.AddCommand(serveCmd)
}
