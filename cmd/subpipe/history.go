package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/andrifs/subpipe/internal/config"
	"github.com/andrifs/subpipe/internal/persistence"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			history, err := persistence.Open(cfg.Watch.HistoryDB)
			if err != nil {
				return err
			}
			defer history.Close()

			runs, err := history.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Started", "Identity", "Status", "Lines", "Quality", "Detail"})
			for _, run := range runs {
				detail := run.OutputPath
				if run.Status == persistence.RunFailed {
					detail = run.Error
					if run.FailedStage != "" {
						detail = fmt.Sprintf("[%s] %s", run.FailedStage, run.Error)
					}
				}
				t.AppendRow(table.Row{
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.Identity,
					run.Status,
					run.LineCount,
					fmt.Sprintf("%.1f%%", run.QualityScore),
					detail,
				})
			}
			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}
