package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursebackup/internal/course"
)

// Kind identifies a backup strategy.
type Kind string

const (
	KindFull        Kind = "full"
	KindIncremental Kind = "incremental"
)

// ParseKind maps a user supplied name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindFull, "":
		return KindFull, nil
	case KindIncremental:
		return KindIncremental, nil
	default:
		return "", fmt.Errorf("unsupported backup strategy: %s", s)
	}
}

// Strategy backs up courses into a directory and reports what it wrote.
// Callers must not run two backups against the same directory at once.
type Strategy interface {
	Kind() Kind
	Backup(ctx context.Context, dir string, includeMedia bool, r Reporter) (Result, error)
}

// Collaborators consumed by the strategies.
type (
	CourseSerializer interface {
		SerializeCourses(sources []course.Source) []SerializedCourse
		SerializeCoursesWithProgress(sources []course.Source, r Reporter) []SerializedCourse
	}

	StatsCalculator interface {
		CalculateCourseStatistics(courses []SerializedCourse) Statistics
	}

	CourseSaver interface {
		SaveCourseData(dir string, courses []SerializedCourse, filename string) (string, error)
		SaveIncrementalDataSince(dir string, courses []SerializedCourse, since time.Time) (string, error)
	}

	MediaBackup interface {
		BackupMediaFilesIfRequired(ctx context.Context, dir string, courses []SerializedCourse, includeMedia bool, r Reporter) (int64, error)
	}

	ResultAssembler interface {
		BuildEmptyBackupResult() Result
		BuildBackupResult(courseCount int, stats Statistics, dataFilePath string, mediaSize int64) Result
	}
)

// Deps wires a strategy. Zero fields are filled with the default
// implementations by NewStrategy.
type Deps struct {
	Provider   course.Provider
	Selector   course.Selector // incremental only; defaults to all courses
	Serializer CourseSerializer
	Stats      StatsCalculator
	Saver      CourseSaver
	Media      MediaBackup
	Results    ResultAssembler
	Window     time.Duration
	Now        func() time.Time
}

// NewStrategy builds the strategy of the given kind.
func NewStrategy(kind Kind, d Deps) (Strategy, error) {
	if d.Provider == nil && (kind == KindFull || d.Selector == nil) {
		return nil, fmt.Errorf("%s backup requires a course provider", kind)
	}
	if d.Serializer == nil {
		d.Serializer = NewSerializer()
	}
	if d.Stats == nil {
		d.Stats = NewStatisticsCalculator()
	}
	if d.Saver == nil {
		d.Saver = NewDataSaver()
	}
	if d.Media == nil {
		d.Media = NewMediaService(nil)
	}

	switch kind {
	case KindFull:
		return NewFullStrategy(d.Provider, d.Serializer, d.Stats, d.Saver, d.Media), nil
	case KindIncremental:
		if d.Selector == nil {
			d.Selector = course.AllCourses{Provider: d.Provider}
		}
		if d.Results == nil {
			d.Results = NewResultBuilder()
		}
		s := NewIncrementalStrategy(d.Selector, d.Serializer, d.Stats, d.Saver, d.Media, d.Results)
		if d.Window > 0 {
			s.Window = d.Window
		}
		if d.Now != nil {
			s.Now = d.Now
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported backup strategy: %s", kind)
	}
}
