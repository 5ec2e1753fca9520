package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"truthscan/internal/database"
	"truthscan/internal/handlers"
	"truthscan/internal/worker"
	"truthscan/internal/workers"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var withoutWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, with queue workers and news collection unless disabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			if err := ensureDirs(a.cfg.Scan.UploadDir, a.cfg.Audio.SongsDir, a.cfg.Audio.StemsDir); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				workerStatus handlers.StatusReporter
				trigger      handlers.NewsTrigger
				service      *worker.WorkerService
			)
			if a.cfg.Server.RunWorkers && !withoutWorkers {
				var collector *workers.NewsCollectorWorker
				unlock, locked, err := lockCollector(a.cfg.News.LockFile)
				if err != nil {
					return err
				}
				if locked {
					defer unlock()
					collector = a.collectorWorker()
				} else {
					a.logger.Warn().Str("lock", a.cfg.News.LockFile).Msg("News collector already running elsewhere, skipping")
				}

				service = a.workerService(a.pool(), collector)
				if err := service.Start(runCtx); err != nil {
					return fmt.Errorf("start workers: %w", err)
				}
				defer service.Stop()
				workerStatus = service
				if collector != nil {
					trigger = service
				}
			}

			switch a.cfg.Server.GinMode {
			case gin.ReleaseMode, gin.DebugMode, gin.TestMode:
				gin.SetMode(a.cfg.Server.GinMode)
			}
			router := a.router(workerStatus, trigger)
			srv := &http.Server{
				Addr:              ":" + a.cfg.Server.Port,
				Handler:           router.Engine(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().Str("addr", srv.Addr).Msg("🚀 Server starting")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-runCtx.Done():
			}

			a.logger.Info().Msg("Received shutdown signal, gracefully shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			a.logger.Info().Msg("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withoutWorkers, "no-workers", false, "Serve the API only, even when RUN_WORKERS is set")
	return cmd
}

func ensureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
