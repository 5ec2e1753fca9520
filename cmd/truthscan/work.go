package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWorkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Run queue workers without the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			if err := ensureDirs(a.cfg.Scan.UploadDir); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			service := a.workerService(a.pool(), nil)
			if err := service.Start(runCtx); err != nil {
				return fmt.Errorf("start workers: %w", err)
			}
			a.logger.Info().
				Str("queue", a.cfg.Queue.Name).
				Int("workers", a.cfg.Queue.Workers).
				Msg("Queue workers running")

			<-runCtx.Done()
			service.Stop()
			return nil
		},
	}
}
