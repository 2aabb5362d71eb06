package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBlobNotFound is returned when a key does not exist in the store.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore persists uploaded files until the school backend takes them.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)

// SanitizeFilename keeps letters, digits, dots, dashes and underscores.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	safe := unsafeFilenameChars.ReplaceAllString(name, "_")
	for strings.Contains(safe, "..") {
		safe = strings.ReplaceAll(safe, "..", ".")
	}
	safe = strings.Trim(safe, ".")
	if safe == "" {
		return "file"
	}
	return safe
}

// UploadKey builds a unique object key for an uploaded file.
func UploadKey(folder, filename string, now time.Time) (id, key string) {
	id = uuid.NewString()
	key = fmt.Sprintf("%s/%s/%s-%s", strings.Trim(folder, "/"), now.UTC().Format("20060102"), id, SanitizeFilename(filename))
	return id, key
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}
