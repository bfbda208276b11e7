package storage

import (
	"context"
	"errors"
	"io"
)

// ErrStorage is wrapped by every blob store failure.
var ErrStorage = errors.New("storage failure")

// UploadInput is one binary asset to store.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BlobStore stores binary assets and returns stable public URLs for them.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Upload stores the asset and returns its public URL.
	Upload(ctx context.Context, in UploadInput) (string, error)

	// Delete removes the asset previously returned under url.
	Delete(ctx context.Context, url string) error
}

// Extension returns the file extension for a supported image content type,
// or "" when the type is unknown.
func Extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}
