// Package media copies course media files into a backup directory.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"coursebackup/internal/backup"
)

// Ensure Copier implements backup.MediaCopier at compile time.
var _ backup.MediaCopier = (*Copier)(nil)

// Copier resolves media references and copies them into a backup.
//
// References starting with http:// or https:// are downloaded. Anything else
// is a path relative to Root. Files keep their relative layout under the
// destination directory; downloads are stored under <host>/<path>.
type Copier struct {
	Root   string
	Client *http.Client
}

// NewCopier returns a Copier reading local media from root and downloading
// remote media through a RetryTransport.
func NewCopier(root string) *Copier {
	return &Copier{
		Root: root,
		Client: &http.Client{
			Transport: NewRetryTransport(nil),
			Timeout:   10 * time.Minute,
		},
	}
}

// Copy copies ref into dstDir and returns the number of bytes written.
// Missing media is reported as backup.ErrMediaNotFound.
func (c *Copier) Copy(ctx context.Context, ref string, dstDir string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rel, remote, err := TargetPath(ref)
	if err != nil {
		return 0, err
	}
	dst := filepath.Join(dstDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	if remote {
		return c.download(ctx, ref, dst)
	}
	return c.copyLocal(ref, dst)
}

// TargetPath maps a reference to a path relative to the media directory, with
// any leading ".." segments dropped, and reports whether it must be downloaded.
func TargetPath(ref string) (rel string, remote bool, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false, fmt.Errorf("empty media reference")
	}

	if u, perr := url.Parse(ref); perr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid media url %q", ref)
		}
		p := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
		if p == "" {
			p = "index"
		}
		host := strings.ReplaceAll(u.Host, ":", "_")
		return filepath.FromSlash(host + "/" + p), true, nil
	}

	p := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(ref)), "/")
	if p == "" {
		return "", false, fmt.Errorf("invalid media path %q", ref)
	}
	return filepath.FromSlash(p), false, nil
}

func (c *Copier) copyLocal(ref, dst string) (int64, error) {
	if c.Root == "" {
		return 0, fmt.Errorf("%w: %s (no media root configured)", backup.ErrMediaNotFound, ref)
	}
	rel, _, err := TargetPath(ref)
	if err != nil {
		return 0, err
	}
	src := filepath.Join(c.Root, rel)

	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", backup.ErrMediaNotFound, src)
		}
		return 0, fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", backup.ErrMediaNotFound, src)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	return writeFile(dst, in)
}

func (c *Copier) download(ctx context.Context, ref, dst string) (int64, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", ref, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", ref, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return 0, fmt.Errorf("%w: %s (HTTP %d)", backup.ErrMediaNotFound, ref, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, fmt.Errorf("failed to download %s: HTTP %d", ref, resp.StatusCode)
	}

	return writeFile(dst, resp.Body)
}

// writeFile copies r into dst, removing dst again if the copy fails.
func writeFile(dst string, r io.Reader) (int64, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	n, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return 0, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return 0, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return n, nil
}
