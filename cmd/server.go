/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cloudpanel/authcore/config"
	"github.com/cloudpanel/authcore/internal/logging"
	"github.com/cloudpanel/authcore/internal/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the authcore HTTP server",
	Long: `Starts the authcore HTTP server. Usage:

	authcore server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		srv, err := server.New(cmd.Context(), cfg, logger)
		if err != nil {
			logging.LogError(cmd.Context(), logger, "failed to start server", err)
			return err
		}
		if err := srv.Start(cmd.Context()); err != nil {
			logging.LogError(cmd.Context(), logger, "server error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
