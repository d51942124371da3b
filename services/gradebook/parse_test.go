package gradebook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Yubo-Cao/grade-dashboard/lib/timezone"

	"github.com/stretchr/testify/require"
)

const classDataFixture = `{
	"classId": 126934,
	"className": "AP Physics",
	"rigorPoints": 1,
	"measureTypes": [
		{"id": 1, "name": "Homework", "dropScores": 0, "weight": 60},
		{"id": 2, "name": "Tests", "weight": 40},
		{"id": 3, "name": "Practice", "weight": 0}
	],
	"assignments": [
		{"gradeBookId": 11, "measureTypeId": 1, "score": 8, "maxValue": 10, "maxScore": 10, "dueDate": "3/14/2026", "isForGrading": true},
		{"gradeBookId": 12, "measureTypeId": 1, "score": null, "maxValue": 10, "maxScore": 10, "dueDate": "3/21/2026", "isForGrading": true, "isMissing": true},
		{"gradeBookId": 21, "measureTypeId": 2, "score": "17.5", "maxValue": 20, "maxScore": 20, "dueDate": "2026-03-28", "isForGrading": true, "commentCode": "L"},
		{"gradeBookId": 31, "measureTypeId": 3, "score": 1, "maxValue": 1, "maxScore": 1, "dueDate": "3/30/2026", "isForGrading": false},
		{"gradeBookId": 41, "measureTypeId": 1, "score": 5, "maxValue": 10, "maxScore": 10, "dueDate": "4/2/2026", "isForGrading": true}
	],
	"comments": [
		{"commentCode": "L", "comment": "Late", "assignmentValue": null, "penaltyPct": 10}
	]
}`

const itemsFixture = `{
	"responseData": {
		"data": [
			{"items": [
				{"itemID": 11, "title": "Problem Set 1", "assignmentType": "Homework", "dueDate": "3/14/2026", "points": "8/10"},
				{"itemID": 12, "title": "Problem Set 2", "assignmentType": "Homework", "dueDate": "3/21/2026", "points": ""}
			]},
			{"items": [
				{"itemID": "21", "title": "Unit Test", "assignmentType": "Tests", "dueDate": "3/28/2026", "points": "17.5/20"}
			]}
		]
	}
}`

func TestParseGradeBookItems(t *testing.T) {
	items, err := ParseGradeBookItems(json.RawMessage(classDataFixture), json.RawMessage(itemsFixture))
	require.NoError(t, err)

	// 31 goes with its zero weight type, 41 has no content item title
	require.Len(t, items, 3)

	ps1 := items[0]
	require.Equal(t, "11", ps1.Id)
	require.Equal(t, "Problem Set 1", ps1.Name)
	require.Equal(t, "Homework", ps1.MeasureType.Name)
	require.True(t, ps1.IsForGrade)
	require.False(t, ps1.IsMissing)
	require.Nil(t, ps1.Comment)
	requireDecimalEqual(t, dec(8), *ps1.Points)
	requireDecimalEqual(t, dec(10), ps1.MaxPoints)
	require.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, timezone.Location), ps1.DueDate)

	ps2 := items[1]
	require.Equal(t, "12", ps2.Id)
	require.True(t, ps2.IsMissing)
	require.Nil(t, ps2.Points)

	test := items[2]
	require.Equal(t, "21", test.Id)
	require.Equal(t, "Unit Test", test.Name)
	requireDecimalEqual(t, dec(17.5), *test.Points)
	require.NotNil(t, test.Comment)
	require.Equal(t, "Late", test.Comment.Content)
	requireDecimalEqual(t, dec(10), *test.Comment.PenaltyPercent)
	require.Equal(t, time.Date(2026, 3, 28, 0, 0, 0, 0, timezone.Location), test.DueDate)
}

func TestParseGradeBookItemsDerivesSaneScores(t *testing.T) {
	items, err := ParseGradeBookItems(json.RawMessage(classDataFixture), json.RawMessage(itemsFixture))
	require.NoError(t, err)

	// 8/10 homework, 0/10 missing homework, 17.5/20 test at 10% penalty
	requireDecimalEqual(t, dec(8), AdjustedScore(items[0]))
	requireDecimalEqual(t, dec(0), AdjustedScore(items[1]))
	requireDecimalEqual(t, dec(15.75), AdjustedScore(items[2]))
}

func TestParseRejectsDuplicateAssignment(t *testing.T) {
	classData := `{
		"measureTypes": [{"id": 1, "name": "Homework", "weight": 100}],
		"assignments": [
			{"gradeBookId": 11, "measureTypeId": 1},
			{"gradeBookId": 11, "measureTypeId": 1}
		],
		"comments": []
	}`
	_, err := ParseGradeBookItems(json.RawMessage(classData), json.RawMessage(`{}`))

	var consistency *ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestParseRejectsDuplicateContentItem(t *testing.T) {
	itemsData := `{
		"responseData": {"data": [{"items": [
			{"itemID": 11, "title": "A"},
			{"itemID": 11, "title": "B"}
		]}]}
	}`
	_, err := ParseGradeBookItems(json.RawMessage(`{}`), json.RawMessage(itemsData))

	var consistency *ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestParseRejectsUnknownMeasureType(t *testing.T) {
	classData := `{
		"measureTypes": [{"id": 1, "name": "Homework", "weight": 100}],
		"assignments": [{"gradeBookId": 11, "measureTypeId": 9}],
		"comments": []
	}`
	itemsData := `{"responseData": {"data": [{"items": [{"itemID": 11, "title": "A"}]}]}}`
	_, err := ParseGradeBookItems(json.RawMessage(classData), json.RawMessage(itemsData))

	var consistency *ConsistencyError
	require.ErrorAs(t, err, &consistency)
	require.Contains(t, consistency.Detail, "measure type 9")
}

func TestParseUnknownCommentCodeMeansNoComment(t *testing.T) {
	classData := `{
		"measureTypes": [{"id": 1, "name": "Homework", "weight": 100}],
		"assignments": [{"gradeBookId": 11, "measureTypeId": 1, "commentCode": "ZZ"}],
		"comments": []
	}`
	itemsData := `{"responseData": {"data": [{"items": [{"itemID": 11, "title": "A"}]}]}}`
	items, err := ParseGradeBookItems(json.RawMessage(classData), json.RawMessage(itemsData))
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Nil(t, items[0].Comment)
}
