// Package postgres loads courses with their chapters and lessons from a
// PostgreSQL database.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"coursebackup/internal/course"
)

var (
	_ course.Provider     = (*CourseStore)(nil)
	_ course.ChangeFinder = (*CourseStore)(nil)
)

const courseColumns = `
	id, title, COALESCE(description, '') AS description, COALESCE(cover_thumb, '') AS cover_thumb,
	price, valid_day, learn_hour, COALESCE(teacher_name, '') AS teacher_name,
	COALESCE(instructor, '') AS instructor, valid, create_time, update_time`

type CourseStore struct {
	db *sqlx.DB
}

func NewCourseStore(db *sqlx.DB) *CourseStore {
	return &CourseStore{db: db}
}

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

// FindAll returns every course ordered by id, with chapters and lessons loaded.
func (s *CourseStore) FindAll(ctx context.Context) ([]course.Source, error) {
	var courses []*course.Course
	query := `SELECT ` + courseColumns + ` FROM courses ORDER BY id`
	if err := s.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("select courses: %w", err)
	}
	return s.withContent(ctx, courses)
}

// FindChangedSince returns the courses created or updated at or after since.
func (s *CourseStore) FindChangedSince(ctx context.Context, since time.Time) ([]course.Source, error) {
	var courses []*course.Course
	query := `SELECT ` + courseColumns + ` FROM courses
		WHERE create_time >= $1 OR update_time >= $1
		ORDER BY id`
	if err := s.db.SelectContext(ctx, &courses, query, since); err != nil {
		return nil, fmt.Errorf("select changed courses: %w", err)
	}
	return s.withContent(ctx, courses)
}

func (s *CourseStore) withContent(ctx context.Context, courses []*course.Course) ([]course.Source, error) {
	if len(courses) == 0 {
		return []course.Source{}, nil
	}

	courseIDs := make([]int64, len(courses))
	for i, c := range courses {
		courseIDs[i] = c.CourseID
	}

	var chapters []*course.Chapter
	err := s.db.SelectContext(ctx, &chapters, `
		SELECT id, course_id, title, priority
		FROM chapters
		WHERE course_id = ANY($1)
		ORDER BY course_id, priority, id`, pq.Array(courseIDs))
	if err != nil {
		return nil, fmt.Errorf("select chapters: %w", err)
	}

	var lessons []*course.Lesson
	if len(chapters) > 0 {
		chapterIDs := make([]int64, len(chapters))
		for i, ch := range chapters {
			chapterIDs[i] = ch.ChapterID
		}
		err = s.db.SelectContext(ctx, &lessons, `
			SELECT id, chapter_id, title, type, priority, COALESCE(media_uri, '') AS media_uri, duration
			FROM lessons
			WHERE chapter_id = ANY($1)
			ORDER BY chapter_id, priority, id`, pq.Array(chapterIDs))
		if err != nil {
			return nil, fmt.Errorf("select lessons: %w", err)
		}
	}

	return assemble(courses, chapters, lessons), nil
}

// assemble attaches lessons to their chapters and chapters to their courses,
// keeping the order of each input slice. Orphans are dropped.
func assemble(courses []*course.Course, chapters []*course.Chapter, lessons []*course.Lesson) []course.Source {
	byChapter := make(map[int64]*course.Chapter, len(chapters))
	for _, ch := range chapters {
		ch.ChapterLessons = nil
		byChapter[ch.ChapterID] = ch
	}
	for _, l := range lessons {
		if ch, ok := byChapter[l.ChapterID]; ok {
			ch.ChapterLessons = append(ch.ChapterLessons, l)
		}
	}

	byCourse := make(map[int64]*course.Course, len(courses))
	for _, c := range courses {
		c.CourseChapters = nil
		byCourse[c.CourseID] = c
	}
	for _, ch := range chapters {
		if c, ok := byCourse[ch.CourseID]; ok {
			c.CourseChapters = append(c.CourseChapters, ch)
		}
	}

	out := make([]course.Source, len(courses))
	for i, c := range courses {
		out[i] = c
	}
	return out
}
