package synergy

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Yubo-Cao/grade-dashboard/lib/htmlutil"
	"github.com/Yubo-Cao/grade-dashboard/lib/retry"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/codes"
)

var (
	courseLabelRe = regexp.MustCompile(`^(\d+):\s*(.+?)\s*$`)
	emailRe       = regexp.MustCompile(`[\w.-]+@[\w.-]+`)
)

// courseFocus is the focus blob the SPA attaches to each course row. Its
// FocusArgs travel back verbatim as LoadControl parameters.
type courseFocus struct {
	LoadParams struct {
		ControlName string `json:"ControlName"`
	} `json:"LoadParams"`
	FocusArgs map[string]any `json:"FocusArgs"`
}

// RawCourse is one course row of the gradebook landing page.
type RawCourse struct {
	Id      string
	Period  int
	Name    string
	Teacher string
	Email   string
	Mark    string

	focus courseFocus
}

// Courses lists the gradebook's course rows in page order.
func (s *Session) Courses(ctx context.Context) ([]RawCourse, error) {
	return retry.Do(ctx, s.nav.retryOpts(s.nav.courseList), "courses", func(ctx context.Context) ([]RawCourse, error) {
		return s.nav.courseList.Get(ctx, s.fetchCourses)
	})
}

func (s *Session) fetchCourses(ctx context.Context) ([]RawCourse, error) {
	ctx, span := tracer.Start(ctx, "courses:list")
	defer span.End()

	doc, err := s.gradebookPage(ctx)
	if err != nil {
		return nil, err
	}

	content := doc.Find(gradebookContent)
	if content.Length() == 0 {
		span.SetStatus(codes.Error, "no gradebook content")
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedPage, gradebookContent)
	}

	var courses []RawCourse
	var parseErr error
	content.Find("div.header").EachWithBreak(func(_ int, header *goquery.Selection) bool {
		course, ok, err := parseCourseRow(header)
		if err != nil {
			parseErr = err
			return false
		}
		if ok {
			courses = append(courses, course)
		}
		return true
	})
	if parseErr != nil {
		span.RecordError(parseErr)
		span.SetStatus(codes.Error, "malformed course row")
		return nil, parseErr
	}
	if len(courses) == 0 {
		return nil, fmt.Errorf("%w: no course rows", ErrMalformedPage)
	}
	return courses, nil
}

// parseCourseRow returns ok=false for rows whose label does not carry a
// period prefix; those are banner rows, not courses.
func parseCourseRow(header *goquery.Selection) (RawCourse, bool, error) {
	button := header.Find("button").First()
	label := htmlutil.CleanText(button.Text())
	m := courseLabelRe.FindStringSubmatch(label)
	if m == nil {
		return RawCourse{}, false, nil
	}
	period, _ := strconv.Atoi(m[1])

	focusJson := button.AttrOr("data-focus", "")
	if focusJson == "" {
		return RawCourse{}, false, fmt.Errorf("%w: course %q has no focus data", ErrMalformedPage, label)
	}
	var focus courseFocus
	if err := json.Unmarshal([]byte(focusJson), &focus); err != nil {
		return RawCourse{}, false, fmt.Errorf("%w: course %q focus data: %v", ErrMalformedPage, label, err)
	}
	classId, ok := focus.FocusArgs["classID"]
	if !ok {
		return RawCourse{}, false, fmt.Errorf("%w: course %q focus data has no classID", ErrMalformedPage, label)
	}

	body := header.NextFiltered("div").First()
	teacherLink := body.Find("span.teacher a").First()
	email := emailRe.FindString(teacherLink.AttrOr("href", ""))

	return RawCourse{
		Id:      fmt.Sprint(classId),
		Period:  period,
		Name:    m[2],
		Teacher: htmlutil.CleanText(teacherLink.Text()),
		Email:   email,
		Mark:    htmlutil.CleanText(body.Find("span.mark").First().Text()),
		focus:   focus,
	}, true, nil
}

// QueryType selects how ResolveCourse interprets its query.
type QueryType int

const (
	// QueryAuto picks a type from the query's shape: a small number
	// means a position in the course list, a larger one a class id,
	// and anything else tries id first and then name.
	QueryAuto QueryType = iota
	QueryIndex
	QueryId
	QueryName
)

// Course list positions never exceed this, so a larger numeric query
// resolves as a course id.
const maxCourseIndex = 20

// CourseNotFoundError carries enough to tell the user what was looked
// for and what the closest real course was.
type CourseNotFoundError struct {
	Query   string
	Closest string
	// Matches lists course labels when the query hit more than one.
	Matches []string
}

func (e *CourseNotFoundError) Error() string {
	if len(e.Matches) > 1 {
		return fmt.Sprintf("course %q is ambiguous between %s", e.Query, strings.Join(e.Matches, ", "))
	}
	if e.Closest == "" {
		return fmt.Sprintf("course %q not found", e.Query)
	}
	return fmt.Sprintf("course %q not found, closest match is %q", e.Query, e.Closest)
}

func (e *CourseNotFoundError) Unwrap() error { return ErrCourseNotFound }

// ResolveCourse finds a course by list position, class id, or name.
func (s *Session) ResolveCourse(ctx context.Context, query string, queryType QueryType) (RawCourse, error) {
	courses, err := s.Courses(ctx)
	if err != nil {
		return RawCourse{}, err
	}
	return resolveCourse(courses, query, queryType)
}

func resolveCourse(courses []RawCourse, query string, queryType QueryType) (RawCourse, error) {
	if queryType == QueryAuto {
		if n, err := strconv.Atoi(query); err == nil {
			if n > maxCourseIndex {
				queryType = QueryId
			} else {
				queryType = QueryIndex
			}
		} else {
			if c, ok := courseById(courses, query); ok {
				return c, nil
			}
			queryType = QueryName
		}
	}

	switch queryType {
	case QueryIndex:
		if idx, err := strconv.Atoi(query); err == nil && idx >= 0 && idx < len(courses) {
			return courses[idx], nil
		}
	case QueryId:
		if c, ok := courseById(courses, query); ok {
			return c, nil
		}
	case QueryName:
		matches := coursesByName(courses, query)
		if len(matches) == 1 {
			return matches[0], nil
		}
		if len(matches) > 1 {
			labels := make([]string, len(matches))
			for i, c := range matches {
				labels[i] = c.Label()
			}
			return RawCourse{}, &CourseNotFoundError{Query: query, Matches: labels}
		}
	}
	return RawCourse{}, &CourseNotFoundError{Query: query, Closest: closestCourseName(query, courses)}
}

func courseById(courses []RawCourse, id string) (RawCourse, bool) {
	for _, c := range courses {
		if c.Id == id {
			return c, true
		}
	}
	return RawCourse{}, false
}

// coursesByName matches case insensitively on a substring of the full
// course label, so "physics" and "1: ap phys" both hit the same row.
func coursesByName(courses []RawCourse, query string) []RawCourse {
	want := strings.ToLower(query)
	var matches []RawCourse
	for _, c := range courses {
		if strings.Contains(strings.ToLower(c.Label()), want) {
			matches = append(matches, c)
		}
	}
	return matches
}

func closestCourseName(query string, courses []RawCourse) string {
	best, bestDist := "", -1
	for _, c := range courses {
		d := matchr.Levenshtein(strings.ToLower(query), strings.ToLower(c.Name))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c.Name, d
		}
	}
	return best
}

// Label renders the course the way the portal lists it.
func (c RawCourse) Label() string {
	return fmt.Sprintf("%d: %s", c.Period, c.Name)
}
