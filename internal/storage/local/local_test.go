package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalBackend_UploadListDownloadDelete(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	b := New(base)

	first, err := b.Upload(ctx, "full", "full_2026-10-18T080000Z.zip", strings.NewReader("older"), 5)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	// Push the first archive back in time so ordering is deterministic.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(first.Key, past, past); err != nil {
		t.Fatal(err)
	}
	second, err := b.Upload(ctx, "full", "full_2026-10-19T080000Z.zip", strings.NewReader("newer!"), 6)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if second.Size != 6 || second.Set != "full" {
		t.Errorf("unexpected metadata %+v", second)
	}
	if _, err := os.Stat(second.Key + ".part"); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}

	// Non-archives and other sets are ignored.
	os.WriteFile(filepath.Join(base, "full", "notes.txt"), []byte("x"), 0o644)
	b.Upload(ctx, "incremental", "incremental_2026-10-19T080000Z.zip", strings.NewReader("i"), 1)

	list, err := b.List(ctx, "full")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d archives, want 2", len(list))
	}
	if list[0].FileName != second.FileName {
		t.Errorf("newest first: got %s", list[0].FileName)
	}

	rc, meta, err := b.Download(ctx, first.Key)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "older" || meta.Set != "full" {
		t.Errorf("downloaded %q (set %q)", data, meta.Set)
	}

	if err := b.Delete(ctx, first.Key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	list, _ = b.List(ctx, "full")
	if len(list) != 1 {
		t.Errorf("after delete List returned %d archives, want 1", len(list))
	}
}

func TestLocalBackend_ListMissingSet(t *testing.T) {
	list, err := New(t.TempDir()).List(context.Background(), "full")
	if err != nil || list != nil {
		t.Errorf("got %v, %v; want nil, nil", list, err)
	}
}

func TestLocalBackend_CanceledUpload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	base := t.TempDir()
	_, err := New(base).Upload(ctx, "full", "full.zip", strings.NewReader("data"), 4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(base, "full"))
	if len(entries) != 0 {
		t.Errorf("canceled upload left %d file(s)", len(entries))
	}
}

func TestLocalBackend_Name(t *testing.T) {
	b := New(t.TempDir())
	if b.Name() != "local" {
		t.Errorf("default name = %q", b.Name())
	}
	b.SetName("usb")
	if b.Name() != "usb" || b.Type() != "local" {
		t.Errorf("name/type = %q/%q", b.Name(), b.Type())
	}
}
