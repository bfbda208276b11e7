package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// uploadImages stores every image concurrently and returns their URLs in
// input order. When any upload fails, the images that did succeed are
// deleted before the error is returned.
func (s *CatalogService) uploadImages(ctx context.Context, images []ImageUpload) ([]string, error) {
	urls := make([]string, len(images))
	if len(images) == 0 {
		return urls, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			url, err := s.blobs.Upload(gctx, img.toStorage())
			if err != nil {
				return fmt.Errorf("upload image %q: %w", img.Filename, err)
			}
			urls[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, s.rollbackImages(ctx, err, urls)
	}
	return urls, nil
}

// deleteImages removes every url concurrently. All deletions are attempted
// and their failures joined.
func (s *CatalogService) deleteImages(ctx context.Context, urls []string) error {
	errs := make([]error, len(urls))

	var g errgroup.Group
	for i, url := range urls {
		if url == "" {
			continue
		}
		g.Go(func() error {
			if err := s.blobs.Delete(ctx, url); err != nil {
				errs[i] = fmt.Errorf("delete image %s: %w", url, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// rollbackImages deletes urls uploaded earlier in a request that failed with
// cause. Cleanup runs even when ctx is already canceled. The returned error
// always matches cause first; cleanup failures are logged and joined after it.
func (s *CatalogService) rollbackImages(ctx context.Context, cause error, urls []string) error {
	cleanupErr := s.deleteImages(context.WithoutCancel(ctx), urls)
	if cleanupErr == nil {
		return cause
	}

	s.logger.ErrorContext(ctx, "failed to roll back uploaded images",
		slog.Int("images", len(urls)),
		slog.String("error", cleanupErr.Error()),
	)
	return errors.Join(cause, cleanupErr)
}
