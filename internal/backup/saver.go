package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// IncrementalEnvelope is the on-disk shape of an incremental backup.
type IncrementalEnvelope struct {
	Since      string             `json:"since"`
	BackupTime string             `json:"backup_time"`
	Courses    []SerializedCourse `json:"courses"`
}

// DataSaver writes serialized courses as indented JSON.
type DataSaver struct {
	// Now returns the backup time. Defaults to time.Now.
	Now func() time.Time
	// Window is how far before Now the incremental "since" lies when the
	// caller does not pass one.
	Window time.Duration
}

// NewDataSaver returns a DataSaver using the wall clock and the default
// incremental window.
func NewDataSaver() *DataSaver {
	return &DataSaver{Now: time.Now, Window: DefaultIncrementalWindow}
}

// SaveCourseData writes courses to <dir>/<filename> and returns the path.
// The directory must already exist.
func (s *DataSaver) SaveCourseData(dir string, courses []SerializedCourse, filename string) (string, error) {
	if courses == nil {
		courses = []SerializedCourse{}
	}
	path := filepath.Join(dir, filename)
	if err := writeJSONFile(path, courses); err != nil {
		return "", err
	}
	return path, nil
}

// SaveIncrementalData writes the incremental envelope with since set to the
// configured window before now.
func (s *DataSaver) SaveIncrementalData(dir string, courses []SerializedCourse) (string, error) {
	now := s.now()
	return s.saveIncremental(dir, courses, now.Add(-s.window()), now)
}

// SaveIncrementalDataSince writes the incremental envelope with an explicit
// since. A since in the future is clamped to the backup time.
func (s *DataSaver) SaveIncrementalDataSince(dir string, courses []SerializedCourse, since time.Time) (string, error) {
	return s.saveIncremental(dir, courses, since, s.now())
}

func (s *DataSaver) saveIncremental(dir string, courses []SerializedCourse, since, now time.Time) (string, error) {
	if since.After(now) {
		since = now
	}
	if courses == nil {
		courses = []SerializedCourse{}
	}
	envelope := IncrementalEnvelope{
		Since:      since.In(now.Location()).Format(TimestampLayout),
		BackupTime: now.Format(TimestampLayout),
		Courses:    courses,
	}
	path := filepath.Join(dir, IncrementalDataFile)
	if err := writeJSONFile(path, envelope); err != nil {
		return "", err
	}
	return path, nil
}

func (s *DataSaver) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *DataSaver) window() time.Duration {
	if s.Window <= 0 {
		return DefaultIncrementalWindow
	}
	return s.Window
}

// writeJSONFile encodes v into <path>.tmp and renames it over path.
func writeJSONFile(path string, v any) error {
	data, err := encodeJSON(v, JSONIndent)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
