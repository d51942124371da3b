// Package gradestore persists per-course aggregate score snapshots so a
// student can see how a grade has moved over time. One snapshot per
// course per day is kept, a later push on the same day replaces it.
package gradestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/Yubo-Cao/grade-dashboard/lib/timezone"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Open opens a sqlite database at path and applies the schema.
func Open(path string) (Store, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	if _, err := database.Exec(Schema); err != nil {
		database.Close()
		return Store{}, err
	}
	return NewStore(database), nil
}

func (s Store) Close() error {
	return s.db.Close()
}

type CourseSnapshot struct {
	Course string
	Value  float64
}

type PushRequest struct {
	Time    time.Time
	User    string
	Courses []CourseSnapshot
}

func (s Store) Push(ctx context.Context, req PushRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t := req.Time.In(timezone.Location)
	startOfToday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, timezone.Location).Unix()
	startOfTomorrow := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, timezone.Location).Unix()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM grade_snapshot
		WHERE time >= ? AND time < ?
		  AND user_course_id IN (SELECT id FROM user_course WHERE user = ?)`,
		startOfToday, startOfTomorrow, req.User,
	)
	if err != nil {
		return err
	}

	for _, course := range req.Courses {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_course (user, course) VALUES (?, ?)
			ON CONFLICT (user, course) DO NOTHING`,
			req.User, course.Course,
		)
		if err != nil {
			return err
		}

		var userCourseId int64
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM user_course WHERE user = ? AND course = ?`,
			req.User, course.Course,
		).Scan(&userCourseId)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO grade_snapshot (user_course_id, time, value) VALUES (?, ?, ?)`,
			userCourseId, req.Time.Unix(), course.Value,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

type GradeSnapshot struct {
	Time  time.Time
	Value float64
}

type CourseSnapshotSeries struct {
	Course    string
	Snapshots []GradeSnapshot
}

func (s Store) Pull(ctx context.Context, user string) ([]CourseSnapshotSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uc.course, gs.time, gs.value
		FROM grade_snapshot gs
		JOIN user_course uc ON uc.id = gs.user_course_id
		WHERE uc.user = ?
		ORDER BY uc.course, gs.time`,
		user,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []CourseSnapshotSeries
	for rows.Next() {
		var course string
		var unix int64
		var value float64
		if err := rows.Scan(&course, &unix, &value); err != nil {
			return nil, err
		}

		snapshot := GradeSnapshot{Time: time.Unix(unix, 0).In(timezone.Location), Value: value}
		if len(courses) > 0 && courses[len(courses)-1].Course == course {
			last := &courses[len(courses)-1]
			last.Snapshots = append(last.Snapshots, snapshot)
			continue
		}
		courses = append(courses, CourseSnapshotSeries{
			Course:    course,
			Snapshots: []GradeSnapshot{snapshot},
		})
	}
	return courses, rows.Err()
}
