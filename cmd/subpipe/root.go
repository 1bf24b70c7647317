package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "subpipe",
		Short: "Checkpointed subtitle pipeline: transcribe, translate, review, embed",
		Long: `subpipe turns a video into a copy with translated subtitles embedded.

The pipeline runs transcription, timing adjustment, contextual
translation, a quality review pass, and embedding, writing a checkpoint
after every stage. An interrupted run picks up where it left off.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newRunCmd(),
		newCheckpointsCmd(),
		newWatchCmd(),
		newHistoryCmd(),
	)
	return root
}
