// Package gradebook turns the raw payload pair scraped from the portal
// into typed records and derives the numbers the portal itself never
// shows: per-assignment adjusted scores, the weighted aggregate, and how
// much each assignment is to blame for it.
package gradebook

import (
	"time"

	"github.com/shopspring/decimal"
)

// MeasureType is an assignment category with a grading weight. Types
// with non-positive weight never reach a GradeBookItem.
type MeasureType struct {
	Id        int
	Name      string
	Weight    decimal.Decimal
	DropScore decimal.Decimal
}

// Comment is a teacher annotation. AssignmentValue, when present,
// overrides the recorded points; PenaltyPercent discounts them.
type Comment struct {
	Code            string
	Content         string
	AssignmentValue *decimal.Decimal
	PenaltyPercent  *decimal.Decimal
}

// GradeBookItem is one assignment, joined from the class data and the
// content items payloads.
type GradeBookItem struct {
	Id        string
	Name      string
	Points    *decimal.Decimal
	MaxPoints decimal.Decimal
	MaxScore  decimal.Decimal
	DueDate   time.Time

	IsForGrade bool
	IsHidden   bool
	IsMissing  bool

	MeasureType MeasureType
	Comment     *Comment
}

// Course is the portal's course listing entry with its label split into
// period and name.
type Course struct {
	Id      string
	Period  int
	Name    string
	Teacher string
	Email   string
	Grade   string
}
