package gradebook

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// counted items are the only ones that enter aggregate and contribution
// calculations.
func counted(item GradeBookItem) bool {
	return item.IsForGrade && !item.IsHidden
}

func penaltyPercent(item GradeBookItem) decimal.Decimal {
	if item.Comment != nil && item.Comment.PenaltyPercent != nil {
		return *item.Comment.PenaltyPercent
	}
	return decimal.Zero
}

// AdjustedScore scales an assignment's points onto its score scale,
// applies the comment penalty, subtracts the category's drop score and
// caps at the maximum. A comment's override value wins over recorded
// points, which in turn win over the zero a missing assignment earns.
func AdjustedScore(item GradeBookItem) decimal.Decimal {
	points := decimal.Zero
	switch {
	case item.Comment != nil && item.Comment.AssignmentValue != nil:
		points = *item.Comment.AssignmentValue
	case item.IsMissing:
	case item.Points != nil:
		points = *item.Points
	}

	base := decimal.Zero
	if !item.MaxPoints.IsZero() {
		base = points.Div(item.MaxPoints).Mul(item.MaxScore)
	}
	penalized := base.Mul(decimal.NewFromInt(1).Sub(penaltyPercent(item).Div(hundred)))
	adjusted := penalized.Sub(item.MeasureType.DropScore)
	if adjusted.GreaterThan(item.MaxScore) {
		return item.MaxScore
	}
	return adjusted
}

type typeTotals struct {
	sum    decimal.Decimal
	count  int64
	weight decimal.Decimal
}

func totalsByType(items []GradeBookItem) map[int]*typeTotals {
	totals := make(map[int]*typeTotals)
	for _, item := range items {
		if !counted(item) {
			continue
		}
		t, ok := totals[item.MeasureType.Id]
		if !ok {
			t = &typeTotals{weight: item.MeasureType.Weight}
			totals[item.MeasureType.Id] = t
		}
		t.sum = t.sum.Add(AdjustedScore(item))
		t.count++
	}
	return totals
}

// distinctWeight sums each measure type's weight once, over every type
// any item references.
func distinctWeight(items []GradeBookItem) decimal.Decimal {
	seen := make(map[int]bool)
	total := decimal.Zero
	for _, item := range items {
		if seen[item.MeasureType.Id] {
			continue
		}
		seen[item.MeasureType.Id] = true
		total = total.Add(item.MeasureType.Weight)
	}
	return total
}

// AggregateScore is the weighted mean of the per-type mean adjusted
// scores, the number the portal reports as the course grade.
func AggregateScore(items []GradeBookItem) decimal.Decimal {
	totals := totalsByType(items)

	weighted := decimal.Zero
	totalWeight := decimal.Zero
	for _, t := range totals {
		mean := t.sum.Div(decimal.NewFromInt(t.count))
		weighted = weighted.Add(mean.Mul(t.weight))
		totalWeight = totalWeight.Add(t.weight)
	}
	if totalWeight.IsZero() {
		return decimal.Zero
	}
	return weighted.Div(totalWeight)
}

// ScoreByMeasureType is the mean adjusted score of each measure type.
func ScoreByMeasureType(items []GradeBookItem) map[int]decimal.Decimal {
	means := make(map[int]decimal.Decimal)
	for id, t := range totalsByType(items) {
		means[id] = t.sum.Div(decimal.NewFromInt(t.count))
	}
	return means
}

// Blame assigns each counted, non-missing item its share of
// responsibility for the aggregate. Shares sum to one when no penalties
// or drop scores are in play.
func Blame(items []GradeBookItem) map[string]decimal.Decimal {
	totalWeight := distinctWeight(items)
	if totalWeight.IsZero() {
		return map[string]decimal.Decimal{}
	}

	counts := make(map[int]int64)
	for _, item := range items {
		if counted(item) && !item.IsMissing {
			counts[item.MeasureType.Id]++
		}
	}

	blame := make(map[string]decimal.Decimal)
	for _, item := range items {
		if !counted(item) || item.IsMissing {
			continue
		}
		share := decimal.NewFromInt(1).
			Div(decimal.NewFromInt(counts[item.MeasureType.Id])).
			Mul(item.MeasureType.Weight).
			Div(totalWeight).
			Mul(decimal.NewFromInt(1).Sub(penaltyPercent(item).Div(hundred)))

		maxScore := item.MaxScore
		if maxScore.IsZero() {
			maxScore = hundred
		}
		blame[item.Id] = share.Sub(item.MeasureType.DropScore.Div(maxScore))
	}
	return blame
}

// Contrib assigns each counted item the points of the aggregate it is
// responsible for. Contributions sum to the aggregate score.
func Contrib(items []GradeBookItem) map[string]decimal.Decimal {
	totalWeight := distinctWeight(items)
	if totalWeight.IsZero() {
		return map[string]decimal.Decimal{}
	}

	counts := make(map[int]int64)
	for _, item := range items {
		if counted(item) {
			counts[item.MeasureType.Id]++
		}
	}

	contrib := make(map[string]decimal.Decimal)
	for _, item := range items {
		if !counted(item) {
			continue
		}
		contrib[item.Id] = AdjustedScore(item).
			Mul(item.MeasureType.Weight).
			Div(totalWeight).
			Div(decimal.NewFromInt(counts[item.MeasureType.Id]))
	}
	return contrib
}

// MergeWhatIf overlays hypothetical items onto an existing set: a
// matching id replaces the row, a new id appends. The input slices are
// left untouched, the result feeds the same derivation functions.
func MergeWhatIf(existing, hypothetical []GradeBookItem) []GradeBookItem {
	merged := make([]GradeBookItem, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, item := range merged {
		index[item.Id] = i
	}
	for _, item := range hypothetical {
		if i, ok := index[item.Id]; ok {
			merged[i] = item
			continue
		}
		index[item.Id] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
