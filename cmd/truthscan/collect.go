package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

func newCollectCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run the news ingestion loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx)
			if err != nil {
				return err
			}

			unlock, locked, err := lockCollector(a.cfg.News.LockFile)
			if err != nil {
				return err
			}
			if !locked {
				return fmt.Errorf("news collector already running (lock %s held)", a.cfg.News.LockFile)
			}
			defer unlock()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if once {
				stats, err := a.collector().Sweep(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ctx.wantJSON(out) {
					return writeJSON(out, stats)
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Feeds", "Feed errors", "Added", "Duplicates", "Skipped", "Claims"},
					[][]string{{
						strconv.Itoa(stats.Feeds),
						strconv.Itoa(stats.FeedErrors),
						strconv.Itoa(stats.Added),
						strconv.Itoa(stats.Duplicates),
						strconv.Itoa(stats.Skipped),
						strconv.Itoa(stats.Claims),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			}

			collector := a.collectorWorker()
			collector.Start(runCtx)
			<-runCtx.Done()
			collector.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single sweep and print its statistics")
	return cmd
}

// lockCollector takes the single-instance collector lock without blocking.
// locked is false when another process holds it.
func lockCollector(path string) (unlock func(), locked bool, err error) {
	if path == "" {
		return func() {}, true, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire collector lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() { _ = lock.Unlock() }, true, nil
}
