package cmd

import (
	"fmt"
	"strings"

	"github.com/Yubo-Cao/grade-dashboard/lib/serviceutil"
	"github.com/Yubo-Cao/grade-dashboard/services/gradebook"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func init() {
	addQueryTypeFlag(whatifCmd)
	whatifCmd.Flags().StringArrayVar(&whatifSets, "set", nil, "rescore an existing assignment, as id=points")
	whatifCmd.Flags().StringArrayVar(&whatifAdds, "add", nil, "add a hypothetical assignment, as category=points/max")
	rootCmd.AddCommand(whatifCmd)
}

var (
	whatifSets []string
	whatifAdds []string
)

var whatifCmd = &cobra.Command{
	Use:   "whatif <course>",
	Short: "Recomputes a course's scores with hypothetical assignment results.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		items, err := service.GetGradeBookItems(cmd.Context(), credentials(), args[0], queryType())
		if err != nil {
			serviceutil.Fatal("failed to fetch grade book items", err)
		}
		hypothetical, err := parseHypotheticals(items, whatifSets, whatifAdds)
		if err != nil {
			serviceutil.Fatal("failed to parse hypothetical assignments", err)
		}

		merged := gradebook.MergeWhatIf(items, hypothetical)
		renderItems(merged)

		before := gradebook.AggregateScore(items).Round(2)
		after := gradebook.AggregateScore(merged).Round(2)
		delta := after.Sub(before)
		sign := ""
		if delta.Sign() >= 0 {
			sign = "+"
		}
		fmt.Printf("aggregate %s -> %s (%s%s)\n", before, after, sign, delta)
	},
}

func parseHypotheticals(items []gradebook.GradeBookItem, sets, adds []string) ([]gradebook.GradeBookItem, error) {
	byId := make(map[string]gradebook.GradeBookItem, len(items))
	typesByName := make(map[string]gradebook.MeasureType)
	for _, item := range items {
		byId[item.Id] = item
		typesByName[strings.ToLower(item.MeasureType.Name)] = item.MeasureType
	}

	var hypothetical []gradebook.GradeBookItem
	for _, set := range sets {
		id, rawPoints, ok := strings.Cut(set, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --set %q, expected id=points", set)
		}
		item, ok := byId[id]
		if !ok {
			return nil, fmt.Errorf("no assignment with id %q", id)
		}
		points, err := decimal.NewFromString(rawPoints)
		if err != nil {
			return nil, fmt.Errorf("malformed points in --set %q: %w", set, err)
		}
		item.Points = &points
		item.IsMissing = false
		item.Comment = nil
		hypothetical = append(hypothetical, item)
	}

	for i, add := range adds {
		category, rawScore, ok := strings.Cut(add, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --add %q, expected category=points/max", add)
		}
		mt, ok := typesByName[strings.ToLower(category)]
		if !ok {
			return nil, fmt.Errorf("no category named %q in this course", category)
		}
		rawPoints, rawMax, ok := strings.Cut(rawScore, "/")
		if !ok {
			return nil, fmt.Errorf("malformed score in --add %q, expected points/max", add)
		}
		points, err := decimal.NewFromString(rawPoints)
		if err != nil {
			return nil, fmt.Errorf("malformed points in --add %q: %w", add, err)
		}
		max, err := decimal.NewFromString(rawMax)
		if err != nil {
			return nil, fmt.Errorf("malformed max in --add %q: %w", add, err)
		}

		hypothetical = append(hypothetical, gradebook.GradeBookItem{
			Id:          fmt.Sprintf("whatif-%d", i+1),
			Name:        fmt.Sprintf("Hypothetical %s %d", mt.Name, i+1),
			Points:      &points,
			MaxPoints:   max,
			MaxScore:    max,
			IsForGrade:  true,
			MeasureType: mt,
		})
	}
	return hypothetical, nil
}
