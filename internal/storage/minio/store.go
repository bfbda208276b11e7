package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/utafrali/catalog-service/internal/storage"
)

// Config holds MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base that asset URLs are built on. It defaults to
	// the endpoint.
	PublicURL string
}

func (c Config) baseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.Endpoint
}

// objectClient is the subset of *minio.Client used by Store.
type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts miniogo.RemoveObjectOptions) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts miniogo.MakeBucketOptions) error
}

// Store is a storage.BlobStore backed by a MinIO bucket.
type Store struct {
	client objectClient
	bucket string
	prefix string
	logger *slog.Logger
}

var _ storage.BlobStore = (*Store)(nil)

// New connects to MinIO and creates the bucket when it does not exist.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := newStore(client, cfg, logger)
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info("connected to minio",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("bucket", cfg.Bucket),
	)
	return s, nil
}

func newStore(client objectClient, cfg Config, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.baseURL() + "/" + cfg.Bucket + "/",
		logger: logger,
	}
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket %s: %w", storage.ErrStorage, s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("%w: create bucket %s: %w", storage.ErrStorage, s.bucket, err)
	}
	s.logger.Info("created minio bucket", slog.String("bucket", s.bucket))
	return nil
}

// Upload stores the asset under products/<uuid><ext>.
func (s *Store) Upload(ctx context.Context, in storage.UploadInput) (string, error) {
	ext := storage.Extension(in.ContentType)
	if ext == "" {
		ext = path.Ext(in.Filename)
	}
	key := "products/" + uuid.NewString() + ext

	size := in.Size
	if size <= 0 {
		size = -1
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, in.Body, size, miniogo.PutObjectOptions{
		ContentType: in.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object %s: %w", storage.ErrStorage, key, err)
	}

	return s.prefix + key, nil
}

// Delete removes the object behind url. URLs outside the bucket are
// rejected.
func (s *Store) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.prefix)
	if !ok || key == "" {
		return fmt.Errorf("%w: %q is not an object of bucket %s", storage.ErrStorage, url, s.bucket)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: remove object %s: %w", storage.ErrStorage, key, err)
	}
	return nil
}

// Ping reports whether the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorage, err)
	}
	if !exists {
		return fmt.Errorf("%w: bucket %s does not exist", storage.ErrStorage, s.bucket)
	}
	return nil
}
