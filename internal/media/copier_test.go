package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"coursebackup/internal/backup"
)

func TestTargetPath(t *testing.T) {
	tests := []struct {
		ref        string
		wantRel    string
		wantRemote bool
		wantErr    bool
	}{
		{"covers/a.png", filepath.FromSlash("covers/a.png"), false, false},
		{"/covers/a.png", filepath.FromSlash("covers/a.png"), false, false},
		{"../../etc/passwd", filepath.FromSlash("etc/passwd"), false, false},
		{"https://cdn.example.com/v/1.mp4?sig=x", filepath.FromSlash("cdn.example.com/v/1.mp4"), true, false},
		{"http://localhost:8080/", filepath.FromSlash("localhost_8080/index"), true, false},
		{"", "", false, true},
		{"/", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			rel, remote, err := TargetPath(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rel != tt.wantRel || remote != tt.wantRemote {
				t.Errorf("TargetPath(%q) = (%q, %v), want (%q, %v)", tt.ref, rel, remote, tt.wantRel, tt.wantRemote)
			}
		})
	}
}

func TestCopier_CopyLocal(t *testing.T) {
	root := t.TempDir()
	dst := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "covers"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "covers", "go.png"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCopier(root)
	n, err := c.Copy(context.Background(), "covers/go.png", dst)
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if n != 10 {
		t.Errorf("copied %d bytes, want 10", n)
	}
	data, err := os.ReadFile(filepath.Join(dst, "covers", "go.png"))
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if string(data) != "0123456789" {
		t.Errorf("copied content = %q", data)
	}
}

func TestCopier_MissingLocalFile(t *testing.T) {
	c := NewCopier(t.TempDir())
	_, err := c.Copy(context.Background(), "nope.png", t.TempDir())
	if !errors.Is(err, backup.ErrMediaNotFound) {
		t.Errorf("expected ErrMediaNotFound, got %v", err)
	}
}

func TestCopier_NoRoot(t *testing.T) {
	c := &Copier{}
	_, err := c.Copy(context.Background(), "covers/a.png", t.TempDir())
	if !errors.Is(err, backup.ErrMediaNotFound) {
		t.Errorf("expected ErrMediaNotFound, got %v", err)
	}
}

func TestCopier_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	dst := t.TempDir()
	c := &Copier{Client: srv.Client()}

	n, err := c.Copy(context.Background(), srv.URL+"/lessons/intro.mp4", dst)
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if n != int64(len("video-bytes")) {
		t.Errorf("copied %d bytes, want %d", n, len("video-bytes"))
	}
	rel, _, _ := TargetPath(srv.URL + "/lessons/intro.mp4")
	if _, err := os.Stat(filepath.Join(dst, rel)); err != nil {
		t.Errorf("downloaded file missing: %v", err)
	}

	_, err = c.Copy(context.Background(), srv.URL+"/gone.mp4", dst)
	if !errors.Is(err, backup.ErrMediaNotFound) {
		t.Errorf("expected ErrMediaNotFound for 404, got %v", err)
	}
}

func TestCopier_WithMediaService(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "cover.jpg"), []byte("abcd"), 0o644); err != nil {
		t.Fatal(err)
	}
	courses := []backup.SerializedCourse{
		{"cover_thumb": "cover.jpg", "chapters": []backup.SerializedChapter{
			{"lessons": []backup.SerializedLesson{{"media_uri": "missing.mp4"}, {"media_uri": "cover.jpg"}}},
		}},
	}

	dir := t.TempDir()
	svc := backup.NewMediaService(NewCopier(root))
	size, err := svc.BackupMediaFiles(context.Background(), dir, courses, nil)
	if err != nil {
		t.Fatalf("BackupMediaFiles failed: %v", err)
	}
	if size != 4 {
		t.Errorf("size = %d, want 4 (missing media skipped, duplicates counted once)", size)
	}
}
