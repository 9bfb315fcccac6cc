package backup

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// Formatting conventions shared by the serializer and the data saver.
const (
	// TimestampLayout renders timestamps as "Y-m-d H:i:s".
	TimestampLayout = "2006-01-02 15:04:05"
	// JSONIndent is the per-level indentation of written artifacts.
	JSONIndent = "    "
)

// Artifact names inside a backup directory.
const (
	FullDataFile        = "courses.json"
	IncrementalDataFile = "incremental_courses.json"
	MediaDir            = "media"
)

// DefaultIncrementalWindow is how far back an incremental backup looks when no
// explicit window is configured.
const DefaultIncrementalWindow = 24 * time.Hour

var (
	courseKeys = []string{
		"id", "title", "description", "cover_thumb", "price", "valid_day", "learn_hour",
		"teacher_name", "instructor", "valid", "create_time", "update_time", "chapters",
	}
	chapterKeys = []string{"id", "title", "priority", "lessons"}
	lessonKeys  = []string{"id", "title", "type", "priority", "media_uri", "duration"}
)

// SerializedCourse is the plain representation of one course. It marshals to a
// JSON object with its keys in a fixed order.
type SerializedCourse map[string]any

func (c SerializedCourse) MarshalJSON() ([]byte, error) { return marshalOrdered(c, courseKeys) }

// SerializedChapter is the plain representation of one chapter.
type SerializedChapter map[string]any

func (c SerializedChapter) MarshalJSON() ([]byte, error) { return marshalOrdered(c, chapterKeys) }

// SerializedLesson is the plain representation of one lesson.
type SerializedLesson map[string]any

func (l SerializedLesson) MarshalJSON() ([]byte, error) { return marshalOrdered(l, lessonKeys) }

// encodeJSON marshals v without HTML escaping. Non-ASCII text is kept literal.
func encodeJSON(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// marshalOrdered writes the known keys first, in order, followed by any extra
// keys sorted by name.
func marshalOrdered(m map[string]any, keys []string) ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}

	ordered := make([]string, 0, len(m))
	known := make(map[string]bool, len(keys))
	for _, k := range keys {
		known[k] = true
		if _, ok := m[k]; ok {
			ordered = append(ordered, k)
		}
	}
	var extra []string
	for k := range m {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	ordered = append(ordered, extra...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range ordered {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeJSON(k, "")
		if err != nil {
			return nil, err
		}
		val, err := encodeJSON(m[k], "")
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
