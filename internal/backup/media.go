package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// ErrMediaNotFound is returned by a MediaCopier when a referenced file does not
// exist. Such references are skipped rather than failing the backup.
var ErrMediaNotFound = errors.New("media not found")

// MediaCopier copies one referenced media file into dstDir and returns the
// number of bytes written.
type MediaCopier interface {
	Copy(ctx context.Context, ref string, dstDir string) (int64, error)
}

// MediaService backs up the media referenced by serialized courses.
type MediaService struct {
	copier MediaCopier
}

// NewMediaService returns a MediaService that copies through c. A nil copier
// only accounts for references without copying anything.
func NewMediaService(c MediaCopier) *MediaService {
	return &MediaService{copier: c}
}

// BackupMediaFilesIfRequired runs BackupMediaFiles only when includeMedia is
// set. Otherwise it touches nothing on disk and returns 0.
func (m *MediaService) BackupMediaFilesIfRequired(ctx context.Context, dir string, courses []SerializedCourse, includeMedia bool, r Reporter) (int64, error) {
	if !includeMedia {
		return 0, nil
	}
	return m.BackupMediaFiles(ctx, dir, courses, r)
}

// BackupMediaFiles ensures <dir>/media exists and copies every distinct media
// reference found in courses into it. It returns the total bytes copied.
func (m *MediaService) BackupMediaFiles(ctx context.Context, dir string, courses []SerializedCourse, r Reporter) (int64, error) {
	mediaDir := filepath.Join(dir, MediaDir)
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create media directory %s: %w", mediaDir, err)
	}

	refs := MediaReferences(courses)
	if len(refs) == 0 {
		return 0, nil
	}
	if m.copier == nil {
		log.Printf("[media] No media copier configured, skipping %d reference(s)", len(refs))
		return 0, nil
	}

	r = reporterOrNop(r)
	r.Start(len(refs))
	defer r.Finish()

	var total int64
	copied := 0
	for _, ref := range refs {
		n, err := m.copier.Copy(ctx, ref, mediaDir)
		if err != nil {
			if errors.Is(err, ErrMediaNotFound) {
				log.Printf("[media] Skipping missing media %s", ref)
				r.Advance()
				continue
			}
			return total, fmt.Errorf("failed to copy media %s: %w", ref, err)
		}
		total += n
		copied++
		r.Advance()
	}

	log.Printf("[media] Copied %d of %d media file(s), %d bytes", copied, len(refs), total)
	return total, nil
}

// MediaReferences returns the distinct media references in courses, in the
// order they are first seen: each course cover, then each lesson's media.
func MediaReferences(courses []SerializedCourse) []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(v any) {
		s, ok := v.(string)
		if !ok || s == "" || seen[s] {
			return
		}
		seen[s] = true
		refs = append(refs, s)
	}

	for _, crs := range courses {
		add(crs["cover_thumb"])
		chapters, ok := sequence(crs["chapters"])
		if !ok {
			continue
		}
		for _, ch := range chapters {
			chm, ok := mapping(ch)
			if !ok {
				continue
			}
			lessons, ok := sequence(chm["lessons"])
			if !ok {
				continue
			}
			for _, l := range lessons {
				if lm, ok := mapping(l); ok {
					add(lm["media_uri"])
				}
			}
		}
	}
	return refs
}
