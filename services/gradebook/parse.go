package gradebook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Yubo-Cao/grade-dashboard/lib/timezone"

	"github.com/shopspring/decimal"
)

// ConsistencyError reports gradebook payloads that contradict each
// other, a duplicated assignment id or a dangling reference. Retrying
// cannot fix it; the upstream data itself is wrong.
type ConsistencyError struct {
	Detail string
}

func (e *ConsistencyError) Error() string {
	return "inconsistent gradebook data: " + e.Detail
}

func consistencyErrorf(format string, args ...any) *ConsistencyError {
	return &ConsistencyError{Detail: fmt.Sprintf(format, args...)}
}

// flexId tolerates the portal serving ids as either numbers or strings.
type flexId string

func (id *flexId) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*id = flexId(v)
	case float64:
		*id = flexId(decimal.NewFromFloat(v).String())
	case nil:
		*id = ""
	default:
		return fmt.Errorf("id is a %T, expected string or number", raw)
	}
	return nil
}

type classDataPayload struct {
	ClassId      flexId `json:"classId"`
	ClassName    string `json:"className"`
	RigorPoints  int    `json:"rigorPoints"`
	MeasureTypes []struct {
		Id         int              `json:"id"`
		Name       string           `json:"name"`
		DropScores *decimal.Decimal `json:"dropScores"`
		Weight     decimal.Decimal  `json:"weight"`
	} `json:"measureTypes"`
	Assignments []struct {
		GradeBookId   flexId           `json:"gradeBookId"`
		MeasureTypeId int              `json:"measureTypeId"`
		Score         *decimal.Decimal `json:"score"`
		MaxValue      *decimal.Decimal `json:"maxValue"`
		MaxScore      *decimal.Decimal `json:"maxScore"`
		DueDate       string           `json:"dueDate"`
		IsForGrading  bool             `json:"isForGrading"`
		IsHidden      bool             `json:"isHidden"`
		IsMissing     bool             `json:"isMissing"`
		CommentCode   *string          `json:"commentCode"`
	} `json:"assignments"`
	Comments []struct {
		CommentCode     string           `json:"commentCode"`
		Comment         string           `json:"comment"`
		AssignmentValue *decimal.Decimal `json:"assignmentValue"`
		PenaltyPct      *decimal.Decimal `json:"penaltyPct"`
	} `json:"comments"`
}

type itemsPayload struct {
	ResponseData struct {
		Data []struct {
			Items []struct {
				ItemId         flexId `json:"itemID"`
				Title          string `json:"title"`
				AssignmentType string `json:"assignmentType"`
				DueDate        string `json:"dueDate"`
				Points         string `json:"points"`
			} `json:"items"`
		} `json:"data"`
	} `json:"responseData"`
}

// ParseGradeBookItems joins the class data payload with the content
// items payload into one record per assignment. The join on assignment
// id must be one to one; items the content listing has no title for are
// dropped.
func ParseGradeBookItems(classData, itemsData json.RawMessage) ([]GradeBookItem, error) {
	var cd classDataPayload
	if err := json.Unmarshal(classData, &cd); err != nil {
		return nil, fmt.Errorf("decoding class data: %w", err)
	}
	var its itemsPayload
	if err := json.Unmarshal(itemsData, &its); err != nil {
		return nil, fmt.Errorf("decoding content items: %w", err)
	}

	allTypes := make(map[int]bool, len(cd.MeasureTypes))
	types := make(map[int]MeasureType, len(cd.MeasureTypes))
	for _, mt := range cd.MeasureTypes {
		allTypes[mt.Id] = true
		if !mt.Weight.IsPositive() {
			continue
		}
		drop := decimal.Zero
		if mt.DropScores != nil {
			drop = *mt.DropScores
		}
		types[mt.Id] = MeasureType{
			Id:        mt.Id,
			Name:      mt.Name,
			Weight:    mt.Weight,
			DropScore: drop,
		}
	}

	comments := make(map[string]Comment, len(cd.Comments))
	for _, c := range cd.Comments {
		comments[c.CommentCode] = Comment{
			Code:            c.CommentCode,
			Content:         c.Comment,
			AssignmentValue: c.AssignmentValue,
			PenaltyPercent:  c.PenaltyPct,
		}
	}

	titles := make(map[string]string)
	for _, group := range its.ResponseData.Data {
		for _, item := range group.Items {
			id := string(item.ItemId)
			if _, ok := titles[id]; ok {
				return nil, consistencyErrorf("content item %q listed twice", id)
			}
			titles[id] = item.Title
		}
	}

	items := make([]GradeBookItem, 0, len(cd.Assignments))
	seen := make(map[string]bool, len(cd.Assignments))
	for _, a := range cd.Assignments {
		id := string(a.GradeBookId)
		if seen[id] {
			return nil, consistencyErrorf("assignment %q listed twice", id)
		}
		seen[id] = true

		mt, ok := types[a.MeasureTypeId]
		if !ok {
			// zero weight types are excluded on purpose, their
			// assignments go with them
			if allTypes[a.MeasureTypeId] {
				continue
			}
			return nil, consistencyErrorf("assignment %q references unknown measure type %d", id, a.MeasureTypeId)
		}

		name := titles[id]
		if strings.TrimSpace(name) == "" {
			continue
		}

		item := GradeBookItem{
			Id:          id,
			Name:        name,
			Points:      a.Score,
			DueDate:     parseDueDate(a.DueDate),
			IsForGrade:  a.IsForGrading,
			IsHidden:    a.IsHidden,
			IsMissing:   a.IsMissing,
			MeasureType: mt,
		}
		if a.MaxValue != nil {
			item.MaxPoints = *a.MaxValue
		}
		if a.MaxScore != nil {
			item.MaxScore = *a.MaxScore
		}
		if a.CommentCode != nil {
			if comment, ok := comments[*a.CommentCode]; ok {
				item.Comment = &comment
			}
		}
		items = append(items, item)
	}
	return items, nil
}

var dueDateLayouts = []string{"1/2/2006", "2006-01-02", time.RFC3339}

func parseDueDate(raw string) time.Time {
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, timezone.Location); err == nil {
			return t
		}
	}
	return time.Time{}
}
