package synergy

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	loadControlPath = "service/PXP2Communication.asmx/LoadControl"
	transferPath    = "api/GB/ClientSideData/Transfer"

	classDataAction = "genericdata.classdata-GetClassData"
	itemsAction     = "pxp.course.content.items-LoadWithOption"
)

// CourseData is the raw payload pair the portal serves for one course.
type CourseData struct {
	Course    RawCourse
	ClassData json.RawMessage
	Items     json.RawMessage
}

// loadControl focuses the server-side session on a course. Every
// Transfer call that follows is answered in terms of that course, which
// is why callers must hold courseMu from here until their last call.
func (s *Session) loadControl(ctx context.Context, course RawCourse) error {
	ctx, span := tracer.Start(ctx, "fetch:load_control")
	defer span.End()
	span.SetAttributes(attribute.String("course", course.Label()))

	base, err := s.BaseUrl(ctx)
	if err != nil {
		return err
	}
	res, err := s.http.R().
		SetContext(ctx).
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetBody(map[string]any{
			"request": map[string]any{
				"control":    course.focus.LoadParams.ControlName,
				"parameters": course.focus.FocusArgs,
			},
		}).
		Post(base.JoinPath(loadControlPath).String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load control request failed")
		return err
	}
	if res.IsError() {
		return &StatusError{Action: "load_control", StatusCode: res.StatusCode(), Body: res.String()}
	}
	return nil
}

// callAPI posts to the Transfer endpoint, which answers for whichever
// course loadControl focused last.
func (s *Session) callAPI(ctx context.Context, action string, body map[string]any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "fetch:call_api")
	defer span.End()
	span.SetAttributes(attribute.String("action", action))

	base, err := s.BaseUrl(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.http.R().
		SetContext(ctx).
		SetHeader("CURRENT_WEB_PORTAL", "StudentVUE").
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetQueryParam("action", action).
		SetBody(body).
		Post(base.JoinPath(transferPath).String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer request failed")
		return nil, err
	}
	if res.IsError() {
		return nil, &StatusError{Action: action, StatusCode: res.StatusCode(), Body: res.String()}
	}
	return json.RawMessage(res.Body()), nil
}

func (s *Session) fetchClassData(ctx context.Context) (json.RawMessage, error) {
	return s.callAPI(ctx, classDataAction, map[string]any{
		"FriendlyName": "genericdata.classdata",
		"Method":       "GetClassData",
		"Parameters":   "{}",
	})
}

func (s *Session) fetchItems(ctx context.Context) (json.RawMessage, error) {
	params, err := json.Marshal(map[string]any{
		"loadOptions": map[string]any{
			"sort":              []map[string]any{{"selector": "due_date", "desc": false}},
			"filter":            [][]any{{"isDone", "=", false}},
			"group":             []map[string]any{{"Selector": "Week", "desc": false}},
			"requireTotalCount": true,
			"userData":          map[string]any{},
		},
		"clientState": map[string]any{},
	})
	if err != nil {
		return nil, err
	}
	return s.callAPI(ctx, itemsAction, map[string]any{
		"FriendlyName": "pxp.course.content.items",
		"Method":       "LoadWithOptions",
		"Parameters":   string(params),
	})
}

// FetchCourseData focuses the session on one course and pulls its class
// data and content items. The course mutex is held for the whole
// exchange because the focus is a property of the server-side session,
// not of the request.
func (s *Session) FetchCourseData(ctx context.Context, course RawCourse) (CourseData, error) {
	ctx, span := tracer.Start(ctx, "fetch:course_data")
	defer span.End()
	span.SetAttributes(attribute.String("course", course.Label()))

	s.courseMu.Lock()
	defer s.courseMu.Unlock()

	if err := s.loadControl(ctx, course); err != nil {
		return CourseData{}, err
	}

	data := CourseData{Course: course}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		classData, err := s.fetchClassData(ctx)
		data.ClassData = classData
		return err
	})
	group.Go(func() error {
		items, err := s.fetchItems(ctx)
		data.Items = items
		return err
	})
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course data fetch failed")
		return CourseData{}, err
	}
	return data, nil
}

// FetchAllCoursesData pulls the data of every course, in page order.
// Courses are fetched one at a time under the course mutex; the two
// payloads of each course are still fetched concurrently.
func (s *Session) FetchAllCoursesData(ctx context.Context) ([]CourseData, error) {
	ctx, span := tracer.Start(ctx, "fetch:all_courses")
	defer span.End()

	courses, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]CourseData, len(courses))
	group, ctx := errgroup.WithContext(ctx)
	for i, course := range courses {
		group.Go(func() error {
			data, err := s.FetchCourseData(ctx, course)
			if err != nil {
				return err
			}
			all[i] = data
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetching all courses failed")
		return nil, err
	}
	return all, nil
}
