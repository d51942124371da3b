package cmd

import (
	"fmt"
	"os"

	"github.com/Yubo-Cao/grade-dashboard/lib/scrapers/synergy"
	"github.com/Yubo-Cao/grade-dashboard/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(coursesCmd)
}

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Lists the account's courses with teacher and current grade.",
	Run: func(cmd *cobra.Command, args []string) {
		courses, err := service.GetCourses(cmd.Context(), credentials())
		if err != nil {
			serviceutil.Fatal("failed to list courses", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Period", "Course", "Teacher", "Email", "Grade"})
		for _, c := range courses {
			t.AppendRow(table.Row{c.Period, c.Name, c.Teacher, c.Email, c.Grade})
		}
		t.Render()
	},
}

var queryTypeFlag string

func queryType() synergy.QueryType {
	switch queryTypeFlag {
	case "auto":
		return synergy.QueryAuto
	case "index":
		return synergy.QueryIndex
	case "id":
		return synergy.QueryId
	case "name":
		return synergy.QueryName
	default:
		serviceutil.Fatal("failed to parse --by flag", fmt.Errorf("unknown query type %q", queryTypeFlag))
		return synergy.QueryAuto
	}
}

func addQueryTypeFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&queryTypeFlag, "by", "auto", "how to interpret the course argument: auto, index, id, or name")
}
