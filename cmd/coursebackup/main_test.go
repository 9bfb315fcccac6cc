package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"coursebackup/internal/backup"
	"coursebackup/internal/config"
	"coursebackup/internal/course"
	"coursebackup/internal/notify"
	"coursebackup/internal/storage"
	"coursebackup/internal/storage/local"
)

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Publish(ctx context.Context, e notify.Event) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockNotifier) Close() error { return nil }

// fakeStore serves fixed courses and reports every course as changed.
type fakeStore struct {
	course.StaticProvider
	changedCalls int
}

func (f *fakeStore) FindChangedSince(ctx context.Context, _ time.Time) ([]course.Source, error) {
	f.changedCalls++
	return f.FindAll(ctx)
}

func sampleCourses() course.StaticProvider {
	return course.StaticProvider{
		&course.Course{CourseID: 1, CourseTitle: "Go", CourseChapters: []*course.Chapter{
			{ChapterID: 1, ChapterLessons: []*course.Lesson{{LessonID: 1}, {LessonID: 2}}},
		}},
		&course.Course{CourseID: 2, CourseTitle: "SQL"},
	}
}

func zipEntries(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestRunBackup_FullShipsArchive(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "backup")
	archives := local.New(t.TempDir())
	archives.SetName("nas")

	strategy, err := newStrategy(backup.KindFull, config.BackupConfig{}, &fakeStore{StaticProvider: sampleCourses()})
	require.NoError(t, err)

	n := &mockNotifier{}
	n.On("Publish", mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
		return e.Strategy == backup.KindFull && e.Result.CourseCount == 2 && len(e.Archives) == 1
	})).Return(nil).Once()

	opts := runOptions{Dir: dir, Retention: storage.RetentionPolicy{KeepLast: 5}}
	result, err := runBackup(ctx, strategy, opts, []storage.Backend{archives}, n)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.CourseCount)
	assert.Equal(t, int64(1), result.ChapterCount)
	assert.Equal(t, int64(2), result.LessonCount)
	n.AssertExpectations(t)

	assert.NoFileExists(t, filepath.Join(dir, lockFile), "lock must be released")
	assert.NoDirExists(t, filepath.Join(dir, backup.MediaDir))

	list, err := archives.List(ctx, "full")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, strings.HasPrefix(list[0].FileName, "full_"))
	assert.Equal(t, []string{backup.FullDataFile}, zipEntries(t, list[0].Key))
}

func TestRunBackup_IncrementalArchiveLeavesOutFullData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, backup.FullDataFile), []byte("[]"), 0o644))
	archives := local.New(t.TempDir())

	store := &fakeStore{StaticProvider: sampleCourses()}
	strategy, err := newStrategy(backup.KindIncremental, config.BackupConfig{ChangedOnly: true}, store)
	require.NoError(t, err)

	_, err = runBackup(ctx, strategy, runOptions{Dir: dir, IncludeMedia: true}, []storage.Backend{archives}, notify.Nop{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.changedCalls)

	list, err := archives.List(ctx, "incremental")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{backup.IncrementalDataFile, backup.MediaDir + "/"}, zipEntries(t, list[0].Key))
}

func TestRunBackup_EmptyIncrementalShipsNothing(t *testing.T) {
	ctx := context.Background()
	archives := local.New(t.TempDir())
	strategy, err := newStrategy(backup.KindIncremental, config.BackupConfig{}, &fakeStore{})
	require.NoError(t, err)

	n := &mockNotifier{}
	n.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := runBackup(ctx, strategy, runOptions{Dir: t.TempDir()}, []storage.Backend{archives}, n)
	require.NoError(t, err)
	assert.Equal(t, backup.Result{}, result)

	list, _ := archives.List(ctx, "incremental")
	assert.Empty(t, list)
	n.AssertExpectations(t)
}

func TestRunBackup_LockedDirectory(t *testing.T) {
	dir := t.TempDir()
	unlock, err := lockDir(dir)
	require.NoError(t, err)
	defer unlock()

	strategy, err := newStrategy(backup.KindFull, config.BackupConfig{}, &fakeStore{})
	require.NoError(t, err)

	_, err = runBackup(context.Background(), strategy, runOptions{Dir: dir}, nil, notify.Nop{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by pid "+strconv.Itoa(os.Getpid()))
	assert.NoFileExists(t, filepath.Join(dir, backup.FullDataFile))
}

func TestLockOwner(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, lockFile)

	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0o644))
	assert.Equal(t, "pid 4242", lockOwner(path))

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.Equal(t, "an unknown process", lockOwner(path))

	assert.Contains(t, lockOwner(filepath.Join(dir, "missing")), "an unknown process (")
}

func TestLockDir_ReleaseAllowsRelock(t *testing.T) {
	dir := t.TempDir()
	unlock, err := lockDir(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, lockFile))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	unlock()
	unlock, err = lockDir(dir)
	require.NoError(t, err)
	unlock()
}

func TestLogReporter(t *testing.T) {
	r := newLogReporter("test")
	r.Start(25)
	for i := 0; i < 25; i++ {
		r.Advance()
	}
	r.Finish()
	assert.Equal(t, 25, r.done)
	assert.Equal(t, 11, r.next)

	var _ backup.Reporter = r
	empty := newLogReporter("empty")
	empty.Start(0)
	empty.Advance()
	empty.Finish()
}

func TestCreateBackends(t *testing.T) {
	ctx := context.Background()
	backends, err := createBackends(ctx, []config.StorageConfig{
		{Type: "local", Path: t.TempDir()},
		{Name: "usb", Type: "local", Path: t.TempDir()},
		{Type: "sftp", Host: "h", User: "u", Password: "p", InsecureIgnoreHostKey: true},
	})
	require.NoError(t, err)
	require.Len(t, backends, 3)
	assert.Equal(t, "local", backends[0].Name())
	assert.Equal(t, "usb", backends[1].Name())
	assert.Equal(t, "sftp", backends[2].Type())

	_, err = createBackends(ctx, []config.StorageConfig{{Type: "ftp"}})
	assert.Error(t, err)
	_, err = createBackends(ctx, []config.StorageConfig{{Type: "sftp"}})
	assert.Error(t, err)
}

func TestFindBackend(t *testing.T) {
	ctx := context.Background()
	configs := []config.StorageConfig{
		{Type: "local", Path: "/a"},
		{Name: "nas", Type: "local", Path: "/b"},
		{Name: "dup", Type: "local"},
		{Name: "dup", Type: "local"},
	}

	b, err := findBackend(ctx, configs, "nas")
	require.NoError(t, err)
	assert.Equal(t, "nas", b.Name())

	_, err = findBackend(ctx, configs, "offsite")
	assert.ErrorContains(t, err, "not configured")

	_, err = findBackend(ctx, configs, "dup")
	assert.ErrorContains(t, err, "multiple backends")
}

func TestPrintArchives(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	backups := []storage.BackupMetadata{
		{Key: "k1", FileName: "full_1.zip", Size: 2048, CreatedAt: now},
		{Key: "k2", FileName: "full_2.zip", Size: 10, CreatedAt: now.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	printArchives(&buf, backups, storage.RetentionPolicy{KeepLast: 1})
	out := buf.String()
	assert.Contains(t, out, "KEPT BY")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "latest")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "-"))

	buf.Reset()
	printArchives(&buf, backups, storage.RetentionPolicy{})
	assert.Contains(t, buf.String(), "all")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KB"},
		{"megabytes", 52428800, "50.0 MB"},
		{"gigabytes", 1610612736, "1.5 GB"},
		{"exact 1KB", 1024, "1.0 KB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSize(tt.bytes); got != tt.want {
				t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestToStorageRetention(t *testing.T) {
	got := toStorageRetention(config.RetentionPolicy{KeepLast: 1, KeepWeekly: 4, KeepYearly: 2})
	assert.Equal(t, storage.RetentionPolicy{KeepLast: 1, KeepWeekly: 4, KeepYearly: 2}, got)
}
