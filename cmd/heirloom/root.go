package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KhushM7/UncTube/internal/config"
	"github.com/KhushM7/UncTube/internal/logging"
)

const rootLongDesc string = `Heirloom stores a family member's media, extracts grounded memories from it
and answers questions in their voice.

  heirloom serve      Run the HTTP API (and the extraction worker unless disabled)
  heirloom worker     Run only the extraction worker
  heirloom migrate    Apply database migrations and exit`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "heirloom",
		Short:         "Heirloom memory service",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

// setup loads configuration and installs the process logger. The returned flush
// must run before exit.
func setup(cmd *cobra.Command) (context.Context, config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, nil, fmt.Errorf("config error: %w", err)
	}
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, config.Config{}, nil, fmt.Errorf("could not get debug flag: %w", err)
	}
	cfg.Debug = cfg.Debug || debug

	ctx, flush := logging.NewContextWithLogger(cmd.Context(), logging.Options{
		Debug: cfg.Debug,
		JSON:  cfg.LogFormat == "json",
	})
	return ctx, cfg, flush, nil
}
