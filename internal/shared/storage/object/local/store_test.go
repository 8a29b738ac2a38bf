package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sparefinder-backend/internal/shared/storage/object"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestSaveImageRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 1024)...)

	img, err := store.SaveImage(context.Background(), "user_1", "pump seal.jpeg", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	if img.ContentType != "image/png" {
		t.Fatalf("expected image/png, got %s", img.ContentType)
	}
	if img.SizeBytes != int64(len(payload)) {
		t.Fatalf("expected %d bytes, got %d", len(payload), img.SizeBytes)
	}
	if !strings.HasSuffix(img.Key, "_pump_seal.png") {
		t.Fatalf("unexpected key %q", img.Key)
	}

	rc, err := store.Open(context.Background(), img.Key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("stored bytes differ")
	}
}

func TestSaveImageKeepsTraversalNamesInsideUserDir(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{2}, 64)...)

	img, err := store.SaveImage(context.Background(), "user_1", "../../seal..v2.png", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	if strings.Contains(img.Key, "..") || strings.Count(img.Key, "/") != 1 {
		t.Fatalf("unexpected key %q", img.Key)
	}
	if !strings.HasSuffix(img.Key, "_._._seal.v2.png") {
		t.Fatalf("unexpected key %q", img.Key)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(img.Key))); err != nil {
		t.Fatalf("expected file under base dir: %v", err)
	}
}

func TestSaveImageRejectsNonImage(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.SaveImage(context.Background(), "user_1", "notes.txt", strings.NewReader("plain text body"))
	if !errors.Is(err, object.ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("expected error for traversal key")
	}
}
