package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"coursebackup/internal/archive"
	"coursebackup/internal/backup"
	"coursebackup/internal/notify"
	"coursebackup/internal/storage"
)

// lockFile marks a backup directory as in use.
const lockFile = ".lock"

type runOptions struct {
	Dir          string
	IncludeMedia bool
	Excludes     []string
	Retention    storage.RetentionPolicy
}

// runBackup runs one strategy into opts.Dir, ships an archive of the directory
// to every backend and publishes a completion event. Upload, retention and
// notification failures are logged and do not fail the run.
func runBackup(ctx context.Context, strategy backup.Strategy, opts runOptions, backends []storage.Backend, n notify.Notifier) (backup.Result, error) {
	kind := strategy.Kind()
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return backup.Result{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	unlock, err := lockDir(opts.Dir)
	if err != nil {
		return backup.Result{}, err
	}
	defer unlock()

	log.Printf("[backup] Starting %s backup into %s (media: %t)", kind, opts.Dir, opts.IncludeMedia)
	start := time.Now()

	result, err := strategy.Backup(ctx, opts.Dir, opts.IncludeMedia, newLogReporter(string(kind)))
	if err != nil {
		return backup.Result{}, err
	}
	log.Printf("[backup] %s backup finished in %s: %d course(s), %d chapter(s), %d lesson(s), %s",
		kind, time.Since(start).Round(time.Millisecond), result.CourseCount, result.ChapterCount, result.LessonCount, formatSize(result.TotalSize))

	event := notify.NewEvent(kind, opts.Dir, result)
	if result != (backup.Result{}) && len(backends) > 0 {
		event.Archives = shipArchive(ctx, string(kind), opts, backends)
	}

	if err := n.Publish(ctx, event); err != nil {
		log.Printf("[notify] Failed to publish completion event: %v", err)
	}
	return result, nil
}

// shipArchive zips the backup directory once and uploads it to each backend,
// applying retention after every successful upload. It returns the keys of the
// stored archives.
func shipArchive(ctx context.Context, set string, opts runOptions, backends []storage.Backend) []string {
	tmp, err := os.CreateTemp("", "coursebackup-*.zip")
	if err != nil {
		log.Printf("[archive] Failed to create temp file: %v", err)
		return nil
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	stats, err := archive.ToFile(opts.Dir, append(otherDataFiles(set), opts.Excludes...), tmpPath)
	if err != nil {
		log.Printf("[archive] %v", err)
		return nil
	}
	info, err := os.Stat(tmpPath)
	if err != nil {
		log.Printf("[archive] %v", err)
		return nil
	}
	log.Printf("[archive] Packed %d file(s), %s into %s", stats.TotalFiles, formatSize(info.Size()), filepath.Base(tmpPath))

	fileName := storage.FormatBackupName(set, time.Now())
	var keys []string
	for _, backend := range backends {
		meta, err := uploadFile(ctx, backend, set, fileName, tmpPath, info.Size())
		if err != nil {
			log.Printf("[%s] Failed to upload: %v", backend.Name(), err)
			continue
		}
		log.Printf("[%s] Uploaded %s (%s)", backend.Name(), meta.FileName, formatSize(meta.Size))
		keys = append(keys, meta.Key)

		deleted, err := storage.ApplyRetention(ctx, backend, set, opts.Retention)
		if err != nil {
			log.Printf("[%s] Retention cleanup failed: %v", backend.Name(), err)
		} else if deleted > 0 {
			log.Printf("[%s] Cleaned up %d old archive(s)", backend.Name(), deleted)
		}
	}
	return keys
}

// otherDataFiles lists the data files written by the other strategy, which
// share the backup directory but do not belong in this set's archive.
func otherDataFiles(set string) []string {
	if set == string(backup.KindIncremental) {
		return []string{backup.FullDataFile}
	}
	return []string{backup.IncrementalDataFile}
}

func uploadFile(ctx context.Context, backend storage.Backend, set, fileName, path string, size int64) (*storage.BackupMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return backend.Upload(ctx, set, fileName, f, size)
}

// lockDir creates the lock file in dir and returns a func that removes it. It
// fails when another run holds the lock.
func lockDir(dir string) (func(), error) {
	path := filepath.Join(dir, lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("backup directory %s is locked by %s (remove %s if stale)", dir, lockOwner(path), path)
		}
		return nil, fmt.Errorf("failed to lock backup directory: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, werr)
	}

	return func() {
		if err := os.Remove(path); err != nil {
			log.Printf("[backup] Failed to release lock %s: %v", path, err)
		}
	}, nil
}

// lockOwner describes the process holding the lock at path.
func lockOwner(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("an unknown process (%v)", err)
	}
	pid := strings.TrimSpace(string(data))
	if pid == "" {
		return "an unknown process"
	}
	return "pid " + pid
}

// logReporter logs progress at every tenth of the work.
type logReporter struct {
	label string
	total int
	done  int
	next  int
}

func newLogReporter(label string) *logReporter {
	return &logReporter{label: label}
}

func (r *logReporter) Start(total int) {
	r.total, r.done, r.next = total, 0, 1
	log.Printf("[%s] Processing %d item(s)", r.label, total)
}

func (r *logReporter) Advance() {
	r.done++
	if r.total == 0 {
		return
	}
	if pct := r.done * 10 / r.total; pct >= r.next {
		r.next = pct + 1
		log.Printf("[%s] %d/%d (%d%%)", r.label, r.done, r.total, r.done*100/r.total)
	}
}

func (r *logReporter) Finish() {
	log.Printf("[%s] Done, %d/%d", r.label, r.done, r.total)
}
