// Package archive packs a finished backup directory into a single zip file
// for shipping to storage backends.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExcludes are never archived: the directory lock and partial writes.
var DefaultExcludes = []string{".lock", "*.tmp", "*.part"}

// Stats holds metadata about a written archive.
type Stats struct {
	TotalFiles int
	TotalBytes int64
}

// shouldExclude returns true if relPath matches any of the glob patterns,
// either as a whole or by its base name. A "dir/*" pattern excludes the whole
// directory.
func shouldExclude(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(relPath)); matched {
			return true
		}
		if dir, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(relPath, dir+"/") || relPath == dir {
				return true
			}
		}
	}
	return false
}

// Directory writes a zip of dir to w with every entry stored uncompressed.
// Paths matching DefaultExcludes or extra are skipped.
func Directory(dir string, extra []string, w io.Writer) (*Stats, error) {
	dir = filepath.Clean(dir)
	excludes := append(append([]string{}, DefaultExcludes...), extra...)

	stats := &Stats{}
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if shouldExclude(relPath, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", relPath, err)
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("failed to create header for %s: %w", relPath, err)
		}

		if d.IsDir() {
			header.Name = relPath + "/"
			_, err = zw.CreateHeader(header)
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		header.Name = relPath
		header.Method = zip.Store
		writer, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create zip entry %s: %w", relPath, err)
		}

		n, err := copyFile(writer, path)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", relPath, err)
		}
		stats.TotalFiles++
		stats.TotalBytes += n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to archive %s: %w", dir, err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize zip: %w", err)
	}
	return stats, nil
}

// ToFile archives dir into path, which must be outside dir.
func ToFile(dir string, extra []string, path string) (*Stats, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive %s: %w", path, err)
	}
	stats, err := Directory(dir, extra, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close archive %s: %w", path, closeErr)
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return stats, nil
}

func copyFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}
