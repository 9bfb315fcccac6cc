package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// fakeCopier records the references it was asked to copy.
type fakeCopier struct {
	sizes  map[string]int64
	failOn string
	copied []string
}

func (f *fakeCopier) Copy(_ context.Context, ref string, dstDir string) (int64, error) {
	if ref == f.failOn {
		return 0, errors.New("disk full")
	}
	size, ok := f.sizes[ref]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMediaNotFound, ref)
	}
	f.copied = append(f.copied, ref)
	return size, nil
}

func mediaCourses() []SerializedCourse {
	return []SerializedCourse{
		{"cover_thumb": "covers/a.png", "chapters": []SerializedChapter{
			{"lessons": []SerializedLesson{{"media_uri": "v/1.mp4"}, {"media_uri": nil}, {"media_uri": "v/2.mp4"}}},
			{"lessons": "broken"},
		}},
		{"cover_thumb": "covers/a.png", "chapters": []any{"junk", map[string]any{"lessons": []any{map[string]any{"media_uri": "v/3.mp4"}}}}},
		{"cover_thumb": ""},
	}
}

func TestMediaReferences(t *testing.T) {
	got := MediaReferences(mediaCourses())
	want := []string{"covers/a.png", "v/1.mp4", "v/2.mp4", "v/3.mp4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ref %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBackupMediaFilesIfRequired_SkippedLeavesNoDirectory(t *testing.T) {
	dir := t.TempDir()
	copier := &fakeCopier{sizes: map[string]int64{"covers/a.png": 10}}

	size, err := NewMediaService(copier).BackupMediaFilesIfRequired(context.Background(), dir, mediaCourses(), false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 0 {
		t.Errorf("size = %d, want 0", size)
	}
	if _, err := os.Stat(filepath.Join(dir, MediaDir)); !os.IsNotExist(err) {
		t.Error("media directory must not exist when media backup is not requested")
	}
	if len(copier.copied) != 0 {
		t.Errorf("copier was called for %v", copier.copied)
	}
}

func TestBackupMediaFilesIfRequired_NoCoursesCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	size, err := NewMediaService(nil).BackupMediaFilesIfRequired(context.Background(), dir, nil, true, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 0 {
		t.Errorf("size = %d, want 0", size)
	}
	info, err := os.Stat(filepath.Join(dir, MediaDir))
	if err != nil || !info.IsDir() {
		t.Errorf("media directory should exist, stat err: %v", err)
	}
}

func TestBackupMediaFiles_SumsAndSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	copier := &fakeCopier{sizes: map[string]int64{"covers/a.png": 100, "v/1.mp4": 1000, "v/3.mp4": 24}}
	r := &countingReporter{}

	size, err := NewMediaService(copier).BackupMediaFiles(context.Background(), dir, mediaCourses(), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 1124 {
		t.Errorf("size = %d, want 1124", size)
	}
	if r.total != 4 || r.advances != 4 || r.finished != 1 {
		t.Errorf("reporter got %d/%d/%d, want 4/4/1", r.total, r.advances, r.finished)
	}

	// A second run into the same directory is fine.
	if _, err := NewMediaService(copier).BackupMediaFiles(context.Background(), dir, nil, nil); err != nil {
		t.Errorf("re-creating the media directory failed: %v", err)
	}
}

func TestBackupMediaFiles_CopyErrorPropagates(t *testing.T) {
	copier := &fakeCopier{sizes: map[string]int64{"covers/a.png": 1}, failOn: "v/1.mp4"}
	_, err := NewMediaService(copier).BackupMediaFiles(context.Background(), t.TempDir(), mediaCourses(), nil)
	if err == nil {
		t.Fatal("expected copy error to propagate")
	}
}
