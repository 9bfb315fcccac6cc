package backup

import "os"

// Result summarizes a finished backup.
type Result struct {
	CourseCount  int64 `json:"course_count"`
	ChapterCount int64 `json:"chapter_count"`
	LessonCount  int64 `json:"lesson_count"`
	// TotalSize is the data file size plus the media bytes, in bytes.
	TotalSize int64 `json:"total_size"`
}

// ResultBuilder assembles Result values.
type ResultBuilder struct{}

// NewResultBuilder returns a ResultBuilder.
func NewResultBuilder() *ResultBuilder {
	return &ResultBuilder{}
}

// BuildEmptyBackupResult returns the result of a backup with nothing to do.
func (b *ResultBuilder) BuildEmptyBackupResult() Result {
	return Result{}
}

// BuildBackupResult copies the counts through and adds the size of the data
// file to mediaSize. A data file that cannot be stat'd contributes 0.
func (b *ResultBuilder) BuildBackupResult(courseCount int, stats Statistics, dataFilePath string, mediaSize int64) Result {
	return Result{
		CourseCount:  int64(courseCount),
		ChapterCount: stats.ChapterCount,
		LessonCount:  stats.LessonCount,
		TotalSize:    fileSize(dataFilePath) + mediaSize,
	}
}

func fileSize(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return max(0, info.Size())
}
