package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"sparefinder-backend/internal/shared/util"
)

// ErrUnsupportedImage is returned when an upload is not a recognised image type.
var ErrUnsupportedImage = errors.New("unsupported image type")

// Image describes a stored part photo.
type Image struct {
	Key         string
	SizeBytes   int64
	ContentType string
}

// ImageStore persists uploaded part photos.
type ImageStore interface {
	SaveImage(ctx context.Context, userID string, fileName string, r io.Reader) (Image, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// SniffImage detects the content type from the first bytes of r and returns a reader
// that replays them. Non-image payloads fail with ErrUnsupportedImage.
func SniffImage(r io.Reader) (string, io.Reader, error) {
	var sniff [512]byte
	n, err := io.ReadFull(r, sniff[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	if n == 0 {
		return "", nil, fmt.Errorf("%w: empty upload", ErrUnsupportedImage)
	}
	contentType := http.DetectContentType(sniff[:n])
	if _, ok := allowedImageTypes[contentType]; !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}
	head := make([]byte, n)
	copy(head, sniff[:n])
	return contentType, io.MultiReader(bytes.NewReader(head), r), nil
}

// ImageKey builds the storage key for a new upload: <hashed user>/<uuid>_<name><ext>.
// The extension always follows the detected content type.
func ImageKey(userID, fileName, contentType string) (string, error) {
	if strings.TrimSpace(fileName) == "" {
		fileName = "photo"
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" {
		name = "photo"
	}
	return path.Join(util.HashUserKey(userID), uuid.NewString()+"_"+name+allowedImageTypes[contentType]), nil
}

// CountingReader counts bytes read through it.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}
