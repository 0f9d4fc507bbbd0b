package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KhushM7/UncTube/internal/app"
	"github.com/KhushM7/UncTube/internal/logging"
)

func newServeCmd() *cobra.Command {
	var noWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, flush, err := setup(cmd)
			if err != nil {
				return err
			}
			defer flush()
			if noWorker {
				cfg.WorkerEnabled = false
			}

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

			logger.Info().
				Str("voice_provider", built.VoiceInfo.Provider).
				Str("voice_detail", built.VoiceInfo.Detail).
				Str("default_voice_id", built.VoiceInfo.DefaultVoiceID).
				Msg("voice provider ready")

			if cfg.WorkerEnabled {
				built.Worker.Start(ctx)
			}

			httpServer := &http.Server{
				Addr:              cfg.BindAddr,
				Handler:           built.API.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", cfg.BindAddr).Bool("worker", cfg.WorkerEnabled).Msg("server listening")
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
				logger.Info().Msg("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("graceful shutdown failed")
				_ = httpServer.Close()
			}
			logger.Info().Msg("shutdown complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Do not start the extraction worker in this process")
	return cmd
}
