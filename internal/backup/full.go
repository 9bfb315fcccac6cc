package backup

import (
	"context"
	"fmt"
	"log"
	"os"

	"coursebackup/internal/course"
)

// Ensure FullStrategy implements Strategy at compile time.
var _ Strategy = (*FullStrategy)(nil)

// FullStrategy re-exports every course into courses.json.
//
// It never short-circuits: an empty course list still produces an empty JSON
// array on disk and still runs the media step.
type FullStrategy struct {
	provider   course.Provider
	serializer CourseSerializer
	stats      StatsCalculator
	saver      CourseSaver
	media      MediaBackup
}

// NewFullStrategy creates a FullStrategy from its collaborators.
func NewFullStrategy(p course.Provider, s CourseSerializer, c StatsCalculator, w CourseSaver, m MediaBackup) *FullStrategy {
	return &FullStrategy{provider: p, serializer: s, stats: c, saver: w, media: m}
}

func (f *FullStrategy) Kind() Kind {
	return KindFull
}

// Backup fetches all courses, serializes them with progress, writes
// courses.json, optionally copies media and returns the totals. r is advanced
// once per course; the media step does not report to it.
func (f *FullStrategy) Backup(ctx context.Context, dir string, includeMedia bool, r Reporter) (Result, error) {
	sources, err := f.provider.FindAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch courses: %w", err)
	}
	log.Printf("[backup] Full backup of %d course(s) into %s", len(sources), dir)

	courses := f.serializer.SerializeCoursesWithProgress(sources, r)
	stats := f.stats.CalculateCourseStatistics(courses)

	path, err := f.saver.SaveCourseData(dir, courses, FullDataFile)
	if err != nil {
		return Result{}, fmt.Errorf("failed to save course data: %w", err)
	}

	mediaSize, err := f.media.BackupMediaFilesIfRequired(ctx, dir, courses, includeMedia, NopReporter{})
	if err != nil {
		return Result{}, fmt.Errorf("failed to back up media: %w", err)
	}

	var dataSize int64
	if info, err := os.Stat(path); err == nil {
		dataSize = info.Size()
	}

	return Result{
		CourseCount:  int64(len(courses)),
		ChapterCount: stats.ChapterCount,
		LessonCount:  stats.LessonCount,
		TotalSize:    dataSize + mediaSize,
	}, nil
}
