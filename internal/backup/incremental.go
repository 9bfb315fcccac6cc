package backup

import (
	"context"
	"fmt"
	"log"
	"time"

	"coursebackup/internal/course"
)

// Ensure IncrementalStrategy implements Strategy at compile time.
var _ Strategy = (*IncrementalStrategy)(nil)

// IncrementalStrategy exports the candidate courses chosen by a selector into
// incremental_courses.json.
//
// When the selector returns nothing, Backup returns the empty result at once
// and none of the other collaborators is called.
type IncrementalStrategy struct {
	selector   course.Selector
	serializer CourseSerializer
	stats      StatsCalculator
	saver      CourseSaver
	media      MediaBackup
	results    ResultAssembler

	// Window is how far back from Now candidates are selected.
	Window time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewIncrementalStrategy creates an IncrementalStrategy from its collaborators.
func NewIncrementalStrategy(sel course.Selector, s CourseSerializer, c StatsCalculator, w CourseSaver, m MediaBackup, b ResultAssembler) *IncrementalStrategy {
	return &IncrementalStrategy{
		selector:   sel,
		serializer: s,
		stats:      c,
		saver:      w,
		media:      m,
		results:    b,
		Window:     DefaultIncrementalWindow,
		Now:        time.Now,
	}
}

func (s *IncrementalStrategy) Kind() Kind {
	return KindIncremental
}

// Backup selects the changed courses, writes the incremental envelope,
// optionally copies media and returns the totals.
func (s *IncrementalStrategy) Backup(ctx context.Context, dir string, includeMedia bool, r Reporter) (Result, error) {
	since := s.since()
	sources, err := s.selector.Candidates(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("failed to select courses: %w", err)
	}
	if len(sources) == 0 {
		log.Printf("[backup] No courses changed since %s, nothing to back up", since.Format(TimestampLayout))
		return s.results.BuildEmptyBackupResult(), nil
	}
	log.Printf("[backup] Incremental backup of %d course(s) into %s", len(sources), dir)

	courses := s.serializer.SerializeCourses(sources)
	stats := s.stats.CalculateCourseStatistics(courses)

	path, err := s.saver.SaveIncrementalDataSince(dir, courses, since)
	if err != nil {
		return Result{}, fmt.Errorf("failed to save incremental data: %w", err)
	}

	mediaSize, err := s.media.BackupMediaFilesIfRequired(ctx, dir, courses, includeMedia, NopReporter{})
	if err != nil {
		return Result{}, fmt.Errorf("failed to back up media: %w", err)
	}

	return s.results.BuildBackupResult(len(courses), stats, path, mediaSize), nil
}

func (s *IncrementalStrategy) since() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	window := s.Window
	if window <= 0 {
		window = DefaultIncrementalWindow
	}
	return now().Add(-window)
}
