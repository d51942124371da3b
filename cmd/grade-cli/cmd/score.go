package cmd

import (
	"os"

	"github.com/Yubo-Cao/grade-dashboard/lib/serviceutil"
	"github.com/Yubo-Cao/grade-dashboard/services/gradebook"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	addQueryTypeFlag(scoreCmd)
	rootCmd.AddCommand(scoreCmd)
}

var scoreCmd = &cobra.Command{
	Use:   "score <course>",
	Short: "Prints a course's aggregate score and the mean score of each category.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		items, err := service.GetGradeBookItems(cmd.Context(), credentials(), args[0], queryType())
		if err != nil {
			serviceutil.Fatal("failed to fetch grade book items", err)
		}

		names := make(map[int]string)
		weights := make(map[int]string)
		for _, item := range items {
			names[item.MeasureType.Id] = item.MeasureType.Name
			weights[item.MeasureType.Id] = item.MeasureType.Weight.String()
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Category", "Weight", "Mean"})
		for id, mean := range gradebook.ScoreByMeasureType(items) {
			t.AppendRow(table.Row{names[id], weights[id], mean.Round(2).String()})
		}
		t.AppendFooter(table.Row{"Aggregate", "", gradebook.AggregateScore(items).Round(2).String()})
		t.Render()
	},
}
