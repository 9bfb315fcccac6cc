package storage

import (
	"context"
	"io"
	"strings"
	"time"
)

// ArchiveExt is the extension of every archive a backend stores and lists.
const ArchiveExt = ".zip"

// BackupMetadata describes a single backup archive stored in a backend.
type BackupMetadata struct {
	// Key is the unique identifier within the backend (path or object key).
	Key string
	// Set groups archives of the same kind (e.g. "full", "incremental").
	// Retention is applied per set.
	Set string
	// FileName is the archive name (e.g. "full_2026-10-19T080000Z.zip").
	FileName string
	// Size is the archive size in bytes.
	Size int64
	// CreatedAt is when the archive was stored.
	CreatedAt time.Time
}

// Backend is the interface every storage provider implements.
type Backend interface {
	// Type returns the backend type identifier (e.g. "s3", "local", "sftp").
	Type() string
	// Name returns a display name for this backend instance. Defaults to Type()
	// but can be overridden in config to tell apart two backends of the same type.
	Name() string
	// SetName overrides the display name returned by Name().
	SetName(name string)
	// Upload stores archive data and returns metadata for the stored object.
	Upload(ctx context.Context, set string, fileName string, data io.Reader, size int64) (*BackupMetadata, error)
	// Download retrieves an archive by key. Caller must close the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, *BackupMetadata, error)
	// List returns all archives of a set, ordered newest-first.
	List(ctx context.Context, set string) ([]BackupMetadata, error)
	// Delete removes an archive by key.
	Delete(ctx context.Context, key string) error
}

// Named carries the display name shared by all backends.
type Named struct {
	name string
}

// NameOr returns the configured name, or fallback when none was set.
func (n *Named) NameOr(fallback string) string {
	if n.name != "" {
		return n.name
	}
	return fallback
}

func (n *Named) SetName(name string) {
	n.name = name
}

// FormatBackupName creates a consistent archive filename from a set and timestamp.
// Format: <set>_<YYYY-MM-DDTHHMMSSZ>.zip
func FormatBackupName(set string, t time.Time) string {
	return set + "_" + t.UTC().Format("2006-01-02T150405Z") + ArchiveExt
}

// ParseBackupTime extracts the timestamp embedded by FormatBackupName.
// Backends without reliable modification times use it to order archives.
func ParseBackupTime(fileName string) (time.Time, bool) {
	base := strings.TrimSuffix(fileName, ArchiveExt)
	i := strings.LastIndex(base, "_")
	if i < 0 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02T150405Z", base[i+1:])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
