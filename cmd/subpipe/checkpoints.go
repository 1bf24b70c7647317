package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/andrifs/subpipe/internal/checkpoint"
	"github.com/andrifs/subpipe/internal/config"
)

func openStore() (*checkpoint.Store, *config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	store, err := checkpoint.NewStore(cfg.Pipeline.CheckpointDir)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Inspect and manage pipeline checkpoints",
	}
	cmd.AddCommand(newCheckpointsListCmd(), newCheckpointsClearCmd(), newCheckpointsExpireCmd())
	return cmd
}

func newCheckpointsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved checkpoints, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}

			checkpoints, err := store.List()
			if err != nil {
				return err
			}
			if len(checkpoints) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no checkpoints")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Identity", "Stage", "Saved", "Video"})
			for _, cp := range checkpoints {
				t.AppendRow(table.Row{
					cp.Identity,
					cp.Stage,
					cp.Timestamp.Format("2006-01-02 15:04:05"),
					cp.VideoPath,
				})
			}
			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}
}

func newCheckpointsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <identity>",
		Short: "Delete the checkpoint for a video identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Clear(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared checkpoint for %s\n", args[0])
			return nil
		},
	}
}

func newCheckpointsExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Delete checkpoints older than the configured maximum age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			n := store.Expire(cfg.Pipeline.CheckpointMaxAge)
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d checkpoints\n", n)
			return nil
		},
	}
}
