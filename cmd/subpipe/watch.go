package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andrifs/subpipe/internal/jobs"
	"github.com/andrifs/subpipe/internal/persistence"
	"github.com/andrifs/subpipe/internal/service"
	"github.com/andrifs/subpipe/pkg/log"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and process new videos on a schedule",
		Long: `Watch WATCH_DIR on the CRON_EXPR schedule. New videos are queued and
processed sequentially; interrupted runs resume from their checkpoints
on the next scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp("")
			if err != nil {
				return err
			}

			history, err := persistence.Open(application.cfg.Watch.HistoryDB)
			if err != nil {
				log.Warn("run history unavailable: %v", err)
				history = nil
			} else {
				defer history.Close()
			}

			queue := jobs.NewQueue(application.pipe, history)
			watcher := service.NewWatcher(application.cfg.Watch, queue, application.store,
				application.cfg.Pipeline.CheckpointMaxAge)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			log.Info("watch service stopped")
			return nil
		},
	}
}
