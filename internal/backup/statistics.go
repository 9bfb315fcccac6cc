package backup

import "reflect"

// Statistics holds the aggregate counts of a serialized course list.
type Statistics struct {
	ChapterCount int64 `json:"chapter_count"`
	LessonCount  int64 `json:"lesson_count"`
}

// StatisticsCalculator aggregates chapter and lesson counts from serialized
// courses. Malformed entries never cause a failure; they are undercounted.
type StatisticsCalculator struct{}

// NewStatisticsCalculator returns a StatisticsCalculator.
func NewStatisticsCalculator() *StatisticsCalculator {
	return &StatisticsCalculator{}
}

// CalculateCourseStatistics counts chapters and lessons across courses.
//
// A course whose "chapters" entry is missing or not a sequence contributes
// nothing. Every chapter slot is counted, but only map entries are inspected
// for a "lessons" sequence.
func (c *StatisticsCalculator) CalculateCourseStatistics(courses []SerializedCourse) Statistics {
	var stats Statistics
	for _, crs := range courses {
		chapters, ok := sequence(crs["chapters"])
		if !ok {
			continue
		}
		stats.ChapterCount += int64(len(chapters))
		for _, ch := range chapters {
			m, ok := mapping(ch)
			if !ok {
				continue
			}
			if lessons, ok := sequence(m["lessons"]); ok {
				stats.LessonCount += int64(len(lessons))
			}
		}
	}
	return stats
}

// sequence reports whether v is a countable list and returns its items.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case []any:
		return s, true
	case []SerializedChapter:
		items := make([]any, len(s))
		for i := range s {
			items[i] = s[i]
		}
		return items, true
	case []SerializedLesson:
		items := make([]any, len(s))
		for i := range s {
			items[i] = s[i]
		}
		return items, true
	case []map[string]any:
		items := make([]any, len(s))
		for i := range s {
			items[i] = s[i]
		}
		return items, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// mapping reports whether v is a key/value entry that can be inspected.
func mapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case SerializedCourse:
		return m, true
	case SerializedChapter:
		return m, true
	case SerializedLesson:
		return m, true
	}
	return nil, false
}
