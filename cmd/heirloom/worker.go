package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KhushM7/UncTube/internal/app"
	"github.com/KhushM7/UncTube/internal/logging"
)

func newWorkerCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run only the extraction worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, flush, err := setup(cmd)
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := logging.FromCtx(ctx)

			built, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := built.Cleanup(); err != nil {
					logger.Error().Err(err).Msg("cleanup failed")
				}
			}()

			if once {
				worked, err := built.Worker.RunOnce(ctx)
				logger.Info().Bool("processed", worked).Msg("single worker tick finished")
				return err
			}

			built.Worker.Start(ctx)
			logger.Info().Dur("poll_interval", cfg.WorkerPollInterval).Msg("worker running")
			<-ctx.Done()
			logger.Info().Msg("shutdown signal received")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Process at most one queued job and exit")
	return cmd
}
