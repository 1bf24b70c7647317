package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andrifs/subpipe/internal/persistence"
	"github.com/andrifs/subpipe/internal/pipeline"
	"github.com/andrifs/subpipe/pkg/file"
	"github.com/andrifs/subpipe/pkg/log"
)

func newRunCmd() *cobra.Command {
	var fresh bool

	cmd := &cobra.Command{
		Use:   "run <video>",
		Short: "Process one video through the full pipeline",
		Long: `Process one video: transcribe, adjust timing, translate, review and
embed. By default an existing checkpoint is resumed; --fresh discards it
and starts over.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath := args[0]

			application, err := newApp(file.Stem(videoPath))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			history, err := persistence.Open(application.cfg.Watch.HistoryDB)
			if err != nil {
				log.Warn("run history unavailable: %v", err)
				history = nil
			} else {
				defer history.Close()
			}

			identity := file.Stem(videoPath)
			var runID string
			if history != nil {
				if id, err := history.StartRun(ctx, identity, videoPath); err == nil {
					runID = id
				}
			}

			result, err := application.pipe.Run(ctx, videoPath, !fresh)
			if err != nil {
				if runID != "" {
					stage := string(pipeline.FailedStage(err))
					_ = history.FailRun(ctx, runID, stage, err.Error())
				}
				if errors.Is(err, pipeline.ErrAlreadyRunning) {
					return fmt.Errorf("%s is already being processed", identity)
				}
				if stage := pipeline.FailedStage(err); stage != "" {
					log.Error("run stopped at the %s stage; progress is checkpointed, rerun to resume", stage)
				}
				return err
			}

			if runID != "" {
				_ = history.FinishRun(ctx, runID, string(result.ResumedFrom),
					result.OutputPath, result.SourceLang, result.TargetLang,
					result.LineCount, result.QualityScore)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "done: %s (%d lines, quality %.1f%%)\n",
				result.OutputPath, result.LineCount, result.QualityScore)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore any existing checkpoint and start over")
	return cmd
}
