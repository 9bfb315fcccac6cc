package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"coursebackup/internal/course"
)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

func TestSaveCourseData_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	courses := NewSerializer().SerializeCourses([]course.Source{fullCourse(), struct{}{}})

	path, err := NewDataSaver().SaveCourseData(dir, courses, FullDataFile)
	if err != nil {
		t.Fatalf("SaveCourseData failed: %v", err)
	}
	if path != filepath.Join(dir, FullDataFile) {
		t.Errorf("path = %q, want %q", path, filepath.Join(dir, FullDataFile))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Go 入门") {
		t.Error("non-ASCII text should be written literally")
	}
	if !strings.Contains(string(data), "\n    {") {
		t.Errorf("expected 4-space indentation, got:\n%s", data)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("written file is not valid JSON: %v", err)
	}
	encoded, _ := encodeJSON(courses, "")
	var want []map[string]any
	if err := json.Unmarshal(encoded, &want); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, want) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", decoded, want)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after save")
	}
}

func TestSaveCourseData_EmptyList(t *testing.T) {
	dir := t.TempDir()
	path, err := NewDataSaver().SaveCourseData(dir, nil, FullDataFile)
	if err != nil {
		t.Fatalf("SaveCourseData failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]" {
		t.Errorf("content = %q, want %q", data, "[]")
	}
}

func TestSaveCourseData_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := NewDataSaver().SaveCourseData(dir, nil, FullDataFile); err == nil {
		t.Fatal("expected error when the directory does not exist")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("saver must not create the target directory")
	}
}

func TestSaveIncrementalData_Envelope(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	saver := &DataSaver{Now: func() time.Time { return now }, Window: 6 * time.Hour}

	courses := NewSerializer().SerializeCourses([]course.Source{fullCourse()})
	path, err := saver.SaveIncrementalData(dir, courses)
	if err != nil {
		t.Fatalf("SaveIncrementalData failed: %v", err)
	}
	if filepath.Base(path) != IncrementalDataFile {
		t.Errorf("file = %s, want %s", filepath.Base(path), IncrementalDataFile)
	}

	var env map[string]json.RawMessage
	data, _ := os.ReadFile(path)
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	var since, backupTime string
	json.Unmarshal(env["since"], &since)
	json.Unmarshal(env["backup_time"], &backupTime)

	if since != "2026-10-19 02:00:00" || backupTime != "2026-10-19 08:00:00" {
		t.Errorf("since/backup_time = %q/%q", since, backupTime)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(env["courses"], &decoded); err != nil || len(decoded) != 1 {
		t.Errorf("courses = %s (err %v)", env["courses"], err)
	}
	if !strings.HasPrefix(string(data), "{\n    \"since\"") {
		t.Errorf("envelope keys out of order:\n%s", data)
	}
}

func TestSaveIncrementalDataSince_Ordering(t *testing.T) {
	tests := []struct {
		name  string
		since time.Duration
	}{
		{"past", -48 * time.Hour},
		{"now", 0},
		{"future is clamped", 3 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path, err := NewDataSaver().SaveIncrementalDataSince(dir, nil, time.Now().Add(tt.since))
			if err != nil {
				t.Fatalf("save failed: %v", err)
			}
			var env IncrementalEnvelope
			data, _ := os.ReadFile(path)
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatal(err)
			}
			if !timestampPattern.MatchString(env.Since) || !timestampPattern.MatchString(env.BackupTime) {
				t.Errorf("timestamps do not match pattern: %q %q", env.Since, env.BackupTime)
			}
			if env.Since > env.BackupTime {
				t.Errorf("since %s is after backup_time %s", env.Since, env.BackupTime)
			}
			if env.Courses == nil {
				t.Error("courses should be an empty list, not null")
			}
		})
	}
}
