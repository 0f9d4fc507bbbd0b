package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/memory"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, flush, err := setup(cmd)
			if err != nil {
				return err
			}
			defer flush()

			if strings.TrimSpace(cfg.DatabaseURL) == "" {
				return errors.New("DATABASE_URL is required to migrate")
			}
			if err := memory.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			logging.FromCtx(ctx).Info().Msg("migrations applied")
			return nil
		},
	}
}
