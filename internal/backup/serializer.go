package backup

import (
	"reflect"
	"time"

	"coursebackup/internal/course"
)

// Timestamp accessors come in three shapes. A source may return a time value,
// a nullable pointer, or a string that is already formatted.
type (
	createTimeValue   interface{ CreateTime() time.Time }
	createTimePointer interface{ CreateTime() *time.Time }
	createTimeText    interface{ CreateTime() string }
	updateTimeValue   interface{ UpdateTime() time.Time }
	updateTimePointer interface{ UpdateTime() *time.Time }
	updateTimeText    interface{ UpdateTime() string }
)

type (
	typedChapters   interface{ Chapters() []*course.Chapter }
	untypedChapters interface{ Chapters() []any }
	typedLessons    interface{ Lessons() []*course.Lesson }
	untypedLessons  interface{ Lessons() []any }
)

// Serializer converts course sources into SerializedCourse maps. Sources are
// probed for each accessor; whatever a source does not implement is filled with
// a default instead of failing.
type Serializer struct{}

// NewSerializer returns a Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// SerializeCourses serializes every source, preserving order.
func (s *Serializer) SerializeCourses(sources []course.Source) []SerializedCourse {
	return s.SerializeCoursesWithProgress(sources, nil)
}

// SerializeCoursesWithProgress serializes every source and advances r once per
// source. A nil reporter is allowed.
func (s *Serializer) SerializeCoursesWithProgress(sources []course.Source, r Reporter) []SerializedCourse {
	r = reporterOrNop(r)
	r.Start(len(sources))

	out := make([]SerializedCourse, 0, len(sources))
	for _, src := range sources {
		out = append(out, s.SerializeCourse(src))
		r.Advance()
	}

	r.Finish()
	return out
}

// SerializeCourse serializes a single source. The result always carries the
// full course key set.
func (s *Serializer) SerializeCourse(src course.Source) SerializedCourse {
	src = entityOrNil(src)
	return SerializedCourse{
		"id":           probe(src, course.IDer.ID),
		"title":        probe(src, course.Titler.Title),
		"description":  probe(src, course.Describer.Description),
		"cover_thumb":  probe(src, course.CoverThumber.CoverThumb),
		"price":        probe(src, course.Pricer.Price),
		"valid_day":    probe(src, course.ValidDayer.ValidDay),
		"learn_hour":   probe(src, course.LearnHourer.LearnHour),
		"teacher_name": probe(src, course.TeacherNamer.TeacherName),
		"instructor":   probe(src, course.Instructorer.Instructor),
		"valid":        validOf(src),
		"create_time":  createTimeOf(src),
		"update_time":  updateTimeOf(src),
		"chapters":     s.serializeChapters(chapterSources(src)),
	}
}

func (s *Serializer) serializeChapters(sources []any) []SerializedChapter {
	out := make([]SerializedChapter, 0, len(sources))
	for _, src := range sources {
		src = entityOrNil(src)
		out = append(out, SerializedChapter{
			"id":       probe(src, course.IDer.ID),
			"title":    probe(src, course.Titler.Title),
			"priority": probe(src, course.Prioritizer.Priority),
			"lessons":  s.serializeLessons(lessonSources(src)),
		})
	}
	return out
}

func (s *Serializer) serializeLessons(sources []any) []SerializedLesson {
	out := make([]SerializedLesson, 0, len(sources))
	for _, src := range sources {
		src = entityOrNil(src)
		out = append(out, SerializedLesson{
			"id":        probe(src, course.IDer.ID),
			"title":     probe(src, course.Titler.Title),
			"type":      probe(src, course.LessonTyper.Type),
			"priority":  probe(src, course.Prioritizer.Priority),
			"media_uri": probe(src, course.MediaReferrer.MediaURI),
			"duration":  probe(src, course.Durationer.Duration),
		})
	}
	return out
}

// probe calls get when src implements I and returns nil otherwise.
func probe[I, T any](src any, get func(I) T) any {
	if v, ok := src.(I); ok {
		return get(v)
	}
	return nil
}

func validOf(src any) bool {
	if v, ok := src.(course.Validity); ok {
		return v.Valid()
	}
	return false
}

func createTimeOf(src any) any {
	switch v := src.(type) {
	case createTimeValue:
		return formatTime(v.CreateTime())
	case createTimePointer:
		return formatTimePointer(v.CreateTime())
	case createTimeText:
		return v.CreateTime()
	}
	return nil
}

func updateTimeOf(src any) any {
	switch v := src.(type) {
	case updateTimeValue:
		return formatTime(v.UpdateTime())
	case updateTimePointer:
		return formatTimePointer(v.UpdateTime())
	case updateTimeText:
		return v.UpdateTime()
	}
	return nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(TimestampLayout)
}

func formatTimePointer(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// entityOrNil turns nil pointers of any type into untyped nil so probes see a
// value without accessors instead of calling methods on a nil receiver.
func entityOrNil(v any) any {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return v
}

// chapterSources flattens whichever Chapters accessor src exposes into a plain
// slice. Only Chapters() []*course.Chapter and Chapters() []any are
// recognised; any other element type reads as no chapters. Sources with their
// own chapter types return them as []any.
func chapterSources(src any) []any {
	switch v := src.(type) {
	case typedChapters:
		chapters := v.Chapters()
		out := make([]any, len(chapters))
		for i, ch := range chapters {
			out[i] = ch
		}
		return out
	case untypedChapters:
		return v.Chapters()
	}
	return nil
}

// lessonSources is chapterSources for Lessons, with the same two shapes.
func lessonSources(src any) []any {
	switch v := src.(type) {
	case typedLessons:
		lessons := v.Lessons()
		out := make([]any, len(lessons))
		for i, l := range lessons {
			out[i] = l
		}
		return out
	case untypedLessons:
		return v.Lessons()
	}
	return nil
}
