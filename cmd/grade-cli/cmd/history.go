package cmd

import (
	"errors"
	"os"

	"github.com/Yubo-Cao/grade-dashboard/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	historyCmd.Flags().BoolVar(&skipSnapshot, "no-snapshot", false, "print stored history without taking a fresh snapshot")
	rootCmd.AddCommand(historyCmd)
}

var skipSnapshot bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Snapshots today's scores and prints the stored score history per course.",
	Run: func(cmd *cobra.Command, args []string) {
		if config.SnapshotDb == "" {
			serviceutil.Fatal("failed to open score history", errors.New("snapshot_db is not set in the configuration"))
		}

		if !skipSnapshot {
			if err := service.SnapshotScores(cmd.Context(), credentials()); err != nil {
				serviceutil.Fatal("failed to snapshot scores", err)
			}
		}

		series, err := service.GetScoreHistory(cmd.Context(), config.Username)
		if err != nil {
			serviceutil.Fatal("failed to load score history", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Course", "Date", "Score"})
		for _, course := range series {
			for _, snapshot := range course.Snapshots {
				t.AppendRow(table.Row{
					course.Course,
					snapshot.Time.Format("2006-01-02"),
					snapshot.Value,
				})
			}
		}
		t.Render()
	},
}
