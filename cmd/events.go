/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudpanel/authcore/config"
	"github.com/cloudpanel/authcore/internal/mq"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect auth events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print auth events from EVENTS_BACKEND as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		backend, err := mq.NewBackend(cmd.Context(), cfg.Events)
		if err != nil {
			return err
		}
		if backend == nil {
			return errors.New("EVENTS_BACKEND is not set")
		}
		m := mq.New(backend, logger)
		defer m.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		err = m.Subscribe(cmd.Context(), cfg.Events.Channel, func(_ context.Context, msg mq.Message) error {
			event, err := mq.DecodeAuthEvent(msg)
			if err != nil {
				// Requeueing an undecodable message would redeliver it forever.
				logger.Warn("skipping undecodable event", "message_id", msg.ID, "error", err)
				return nil
			}
			return enc.Encode(event)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tail %s: %w", cfg.Events.Channel, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
