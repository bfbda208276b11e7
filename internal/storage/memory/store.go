package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/utafrali/catalog-service/internal/storage"
)

const urlPrefix = "memory://"

type object struct {
	contentType string
	data        []byte
}

// Store is an in-process storage.BlobStore for local runs and tests.
type Store struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]object
}

var _ storage.BlobStore = (*Store)(nil)

// New returns an empty store whose URLs are rooted at bucket.
func New(bucket string) *Store {
	return &Store{bucket: bucket, objects: make(map[string]object)}
}

func (s *Store) Upload(ctx context.Context, in storage.UploadInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrStorage, err)
	}

	var buf bytes.Buffer
	if in.Body != nil {
		if _, err := io.Copy(&buf, in.Body); err != nil {
			return "", fmt.Errorf("%w: read body: %w", storage.ErrStorage, err)
		}
	}

	ext := storage.Extension(in.ContentType)
	if ext == "" {
		ext = path.Ext(in.Filename)
	}
	url := urlPrefix + s.bucket + "/products/" + uuid.NewString() + ext

	s.mu.Lock()
	s.objects[url] = object{contentType: in.ContentType, data: buf.Bytes()}
	s.mu.Unlock()

	return url, nil
}

// Delete removes the object at url. Deleting an absent object of this bucket
// succeeds, as it does against S3.
func (s *Store) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorage, err)
	}
	if !strings.HasPrefix(url, urlPrefix+s.bucket+"/") {
		return fmt.Errorf("%w: %q is not an object of bucket %s", storage.ErrStorage, url, s.bucket)
	}

	s.mu.Lock()
	delete(s.objects, url)
	s.mu.Unlock()
	return nil
}

// Has reports whether url is stored.
func (s *Store) Has(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[url]
	return ok
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
