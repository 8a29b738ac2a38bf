package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sparefinder-backend/internal/shared/storage/object"
)

// Store implements ImageStore using the local filesystem.
type Store struct {
	baseDir string
}

// New creates a new local image store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// SaveImage writes the upload under the user's namespace.
func (s *Store) SaveImage(ctx context.Context, userID string, fileName string, r io.Reader) (object.Image, error) {
	if err := ctx.Err(); err != nil {
		return object.Image{}, err
	}
	contentType, body, err := object.SniffImage(r)
	if err != nil {
		return object.Image{}, err
	}
	key, err := object.ImageKey(userID, fileName, contentType)
	if err != nil {
		return object.Image{}, fmt.Errorf("image key: %w", err)
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return object.Image{}, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return object.Image{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, body)
	if err != nil {
		_ = os.Remove(fullPath)
		return object.Image{}, fmt.Errorf("write body: %w", err)
	}
	return object.Image{Key: key, SizeBytes: written, ContentType: contentType}, nil
}

// Open opens a stored image for reading.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid storage key")
	}
	return os.Open(filepath.Join(s.baseDir, clean))
}

var _ object.ImageStore = (*Store)(nil)
