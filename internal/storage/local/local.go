package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"coursebackup/internal/storage"
)

// Ensure LocalBackend implements storage.Backend at compile time.
var _ storage.Backend = (*LocalBackend)(nil)

// LocalBackend stores archives on a local filesystem path.
type LocalBackend struct {
	storage.Named
	basePath string
}

// New creates a new local storage backend rooted at basePath.
func New(basePath string) *LocalBackend {
	return &LocalBackend{basePath: basePath}
}

func (b *LocalBackend) Type() string {
	return "local"
}

func (b *LocalBackend) Name() string {
	return b.NameOr(b.Type())
}

// Upload writes archive data to <basePath>/<set>/<fileName>. Data goes to a
// .part file first so List never sees a half written archive.
func (b *LocalBackend) Upload(ctx context.Context, set string, fileName string, data io.Reader, size int64) (*storage.BackupMetadata, error) {
	dir := filepath.Join(b.basePath, set)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fileName)
	partial := path + ".part"
	file, err := os.Create(partial)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", partial, err)
	}

	written, err := io.Copy(file, readerWithContext(ctx, data))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}
	if err := os.Rename(partial, path); err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("failed to finalize archive %s: %w", path, err)
	}

	meta := &storage.BackupMetadata{
		Key:      path,
		Set:      set,
		FileName: fileName,
		Size:     written,
	}
	if info, err := os.Stat(path); err == nil {
		meta.CreatedAt = info.ModTime()
	}
	return meta, nil
}

// Download opens an archive by its key (full path).
func (b *LocalBackend) Download(ctx context.Context, key string) (io.ReadCloser, *storage.BackupMetadata, error) {
	info, err := os.Stat(key)
	if err != nil {
		return nil, nil, fmt.Errorf("archive not found: %w", err)
	}

	file, err := os.Open(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}

	meta := &storage.BackupMetadata{
		Key:       key,
		Set:       filepath.Base(filepath.Dir(key)),
		FileName:  filepath.Base(key),
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}
	return file, meta, nil
}

// List returns all archives of a set, sorted newest-first by modification time.
func (b *LocalBackend) List(ctx context.Context, set string) ([]storage.BackupMetadata, error) {
	dir := filepath.Join(b.basePath, set)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list directory %s: %w", dir, err)
	}

	var backups []storage.BackupMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), storage.ArchiveExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, storage.BackupMetadata{
			Key:       filepath.Join(dir, entry.Name()),
			Set:       set,
			FileName:  entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Delete removes an archive by its key (full path).
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	if err := os.Remove(key); err != nil {
		return fmt.Errorf("failed to delete archive %s: %w", key, err)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
