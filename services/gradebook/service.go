package gradebook

import (
	"context"
	"log/slog"

	"github.com/Yubo-Cao/grade-dashboard/lib/gradestore"
	"github.com/Yubo-Cao/grade-dashboard/lib/scrapers/synergy"
	"github.com/Yubo-Cao/grade-dashboard/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/gradebook")

// Credentials identify one portal account.
type Credentials struct {
	Username string
	Password string
}

// Service is the facade the outer surfaces talk to: it turns a
// credential pair and a course query into typed courses, grade book
// items, and score history.
type Service struct {
	sessions  *synergy.Store
	snapshots *gradestore.Store
}

// NewService wires the facade to a session store and, optionally, a
// snapshot store. A nil snapshots disables history.
func NewService(sessions *synergy.Store, snapshots *gradestore.Store) *Service {
	return &Service{sessions: sessions, snapshots: snapshots}
}

func courseFromRaw(raw synergy.RawCourse) Course {
	return Course{
		Id:      raw.Id,
		Period:  raw.Period,
		Name:    raw.Name,
		Teacher: raw.Teacher,
		Email:   raw.Email,
		Grade:   raw.Mark,
	}
}

// GetCourses lists the account's courses.
func (s *Service) GetCourses(ctx context.Context, creds Credentials) ([]Course, error) {
	session, err := s.sessions.GetSession(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}
	raw, err := session.Courses(ctx)
	if err != nil {
		return nil, err
	}
	courses := make([]Course, len(raw))
	for i, r := range raw {
		courses[i] = courseFromRaw(r)
	}
	return courses, nil
}

// GetCourse resolves one course by period index, class id, or name.
func (s *Service) GetCourse(ctx context.Context, creds Credentials, query string, queryType synergy.QueryType) (Course, error) {
	session, err := s.sessions.GetSession(ctx, creds.Username, creds.Password)
	if err != nil {
		return Course{}, err
	}
	raw, err := session.ResolveCourse(ctx, query, queryType)
	if err != nil {
		return Course{}, err
	}
	return courseFromRaw(raw), nil
}

// GetGradeBookItems fetches and normalizes one course's assignments.
func (s *Service) GetGradeBookItems(ctx context.Context, creds Credentials, query string, queryType synergy.QueryType) ([]GradeBookItem, error) {
	ctx, span := tracer.Start(ctx, "gradebook:items")
	defer span.End()

	session, err := s.sessions.GetSession(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}
	course, err := session.ResolveCourse(ctx, query, queryType)
	if err != nil {
		return nil, err
	}
	data, err := session.FetchCourseData(ctx, course)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course data fetch failed")
		return nil, err
	}
	return ParseGradeBookItems(data.ClassData, data.Items)
}

// SnapshotScores derives every course's aggregate score and records the
// roster in the snapshot store, replacing any snapshots taken earlier
// the same day.
func (s *Service) SnapshotScores(ctx context.Context, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "gradebook:snapshot")
	defer span.End()

	if s.snapshots == nil {
		return nil
	}

	session, err := s.sessions.GetSession(ctx, creds.Username, creds.Password)
	if err != nil {
		return err
	}
	all, err := session.FetchAllCoursesData(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetching courses failed")
		return err
	}

	req := gradestore.PushRequest{Time: timezone.Now(), User: creds.Username}
	for _, data := range all {
		items, err := ParseGradeBookItems(data.ClassData, data.Items)
		if err != nil {
			return err
		}
		score, _ := AggregateScore(items).Float64()
		req.Courses = append(req.Courses, gradestore.CourseSnapshot{
			Course: data.Course.Name,
			Value:  score,
		})
	}

	if err := s.snapshots.Push(ctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pushing snapshots failed")
		return err
	}
	slog.InfoContext(ctx, "recorded score snapshots", "user", creds.Username, "courses", len(req.Courses))
	return nil
}

// GetScoreHistory returns the stored time series of every course of the
// account. An empty result just means no snapshot has been taken yet.
func (s *Service) GetScoreHistory(ctx context.Context, username string) ([]gradestore.CourseSnapshotSeries, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.Pull(ctx, username)
}
