package cmd

import (
	"os"

	"github.com/Yubo-Cao/grade-dashboard/lib/serviceutil"
	"github.com/Yubo-Cao/grade-dashboard/services/gradebook"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	addQueryTypeFlag(itemsCmd)
	rootCmd.AddCommand(itemsCmd)
}

var itemsCmd = &cobra.Command{
	Use:   "items <course>",
	Short: "Lists a course's assignments with adjusted score, blame, and contribution.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		items, err := service.GetGradeBookItems(cmd.Context(), credentials(), args[0], queryType())
		if err != nil {
			serviceutil.Fatal("failed to fetch grade book items", err)
		}
		renderItems(items)
	},
}

func renderItems(items []gradebook.GradeBookItem) {
	blame := gradebook.Blame(items)
	contrib := gradebook.Contrib(items)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Due", "Assignment", "Category", "Score", "Adjusted", "Blame", "Contrib"})
	for _, item := range items {
		score := "-"
		if item.Points != nil {
			score = item.Points.String()
		}
		if item.IsMissing {
			score = "missing"
		}

		blameCell, contribCell := "-", "-"
		if b, ok := blame[item.Id]; ok {
			blameCell = b.Round(4).String()
		}
		if c, ok := contrib[item.Id]; ok {
			contribCell = c.Round(2).String()
		}

		due := "-"
		if !item.DueDate.IsZero() {
			due = item.DueDate.Format("2006-01-02")
		}
		t.AppendRow(table.Row{
			due,
			item.Name,
			item.MeasureType.Name,
			score + "/" + item.MaxPoints.String(),
			gradebook.AdjustedScore(item).Round(2).String(),
			blameCell,
			contribCell,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Aggregate", "", gradebook.AggregateScore(items).Round(2).String()})
	t.Render()
}
