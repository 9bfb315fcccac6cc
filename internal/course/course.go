// Package course describes the course hierarchy consumed by the backup pipeline.
//
// The pipeline never depends on a concrete course type. A course source is any
// value; the serializer probes it for the accessors declared below and falls back
// to defaults for whatever is missing. Course, Chapter and Lesson are the
// complete implementations returned by the Postgres store.
package course

import "time"

// Source is any value representing a course. It may implement any subset of the
// accessor interfaces in this package.
type Source = any

// Capability interfaces probed by the serializer. Each one declares a single
// accessor so a partially built value can still expose what it has.
type (
	IDer          interface{ ID() int64 }
	Titler        interface{ Title() string }
	Describer     interface{ Description() string }
	CoverThumber  interface{ CoverThumb() string }
	Pricer        interface{ Price() float64 }
	ValidDayer    interface{ ValidDay() int }
	LearnHourer   interface{ LearnHour() int }
	TeacherNamer  interface{ TeacherName() string }
	Instructorer  interface{ Instructor() string }
	Validity      interface{ Valid() bool }
	Prioritizer   interface{ Priority() int }
	LessonTyper   interface{ Type() string }
	MediaReferrer interface{ MediaURI() string }
	Durationer    interface{ Duration() int }
)

// Course is a fully populated course entity.
type Course struct {
	CourseID       int64      `db:"id"`
	CourseTitle    string     `db:"title"`
	Summary        string     `db:"description"`
	Cover          string     `db:"cover_thumb"`
	CoursePrice    float64    `db:"price"`
	ValidDays      int        `db:"valid_day"`
	LearnHours     int        `db:"learn_hour"`
	Teacher        string     `db:"teacher_name"`
	InstructorName string     `db:"instructor"`
	IsValid        bool       `db:"valid"`
	CreatedAt      time.Time  `db:"create_time"`
	UpdatedAt      *time.Time `db:"update_time"`
	CourseChapters []*Chapter `db:"-"`
}

func (c *Course) ID() int64              { return c.CourseID }
func (c *Course) Title() string          { return c.CourseTitle }
func (c *Course) Description() string    { return c.Summary }
func (c *Course) CoverThumb() string     { return c.Cover }
func (c *Course) Price() float64         { return c.CoursePrice }
func (c *Course) ValidDay() int          { return c.ValidDays }
func (c *Course) LearnHour() int         { return c.LearnHours }
func (c *Course) TeacherName() string    { return c.Teacher }
func (c *Course) Instructor() string     { return c.InstructorName }
func (c *Course) Valid() bool            { return c.IsValid }
func (c *Course) CreateTime() time.Time  { return c.CreatedAt }
func (c *Course) UpdateTime() *time.Time { return c.UpdatedAt }
func (c *Course) Chapters() []*Chapter   { return c.CourseChapters }

// Chapter groups lessons inside a course.
type Chapter struct {
	ChapterID      int64     `db:"id"`
	CourseID       int64     `db:"course_id"`
	ChapterTitle   string    `db:"title"`
	Position       int       `db:"priority"`
	ChapterLessons []*Lesson `db:"-"`
}

func (c *Chapter) ID() int64          { return c.ChapterID }
func (c *Chapter) Title() string      { return c.ChapterTitle }
func (c *Chapter) Priority() int      { return c.Position }
func (c *Chapter) Lessons() []*Lesson { return c.ChapterLessons }

// Lesson is the smallest unit of course content.
type Lesson struct {
	LessonID    int64  `db:"id"`
	ChapterID   int64  `db:"chapter_id"`
	LessonTitle string `db:"title"`
	Kind        string `db:"type"`
	Position    int    `db:"priority"`
	Media       string `db:"media_uri"`
	Seconds     int    `db:"duration"`
}

func (l *Lesson) ID() int64        { return l.LessonID }
func (l *Lesson) Title() string    { return l.LessonTitle }
func (l *Lesson) Type() string     { return l.Kind }
func (l *Lesson) Priority() int    { return l.Position }
func (l *Lesson) MediaURI() string { return l.Media }
func (l *Lesson) Duration() int    { return l.Seconds }
