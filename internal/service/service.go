package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/utafrali/catalog-service/internal/cache"
	"github.com/utafrali/catalog-service/internal/event"
	"github.com/utafrali/catalog-service/internal/ranking"
	"github.com/utafrali/catalog-service/internal/repository"
	"github.com/utafrali/catalog-service/internal/storage"
)

// EventPublisher hands domain events to subscribers without waiting for
// them. *event.Bus satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, e event.Event)
}

// CatalogService implements the business rules around product writes and
// cached reads.
type CatalogService struct {
	repo   repository.ProductRepository
	blobs  storage.BlobStore
	cache  cache.Store
	events EventPublisher
	scorer ranking.Scorer
	logger *slog.Logger
}

// Deps groups the collaborators of a CatalogService. Scorer is optional;
// without it semantic search falls back to text search.
type Deps struct {
	Repo   repository.ProductRepository
	Blobs  storage.BlobStore
	Cache  cache.Store
	Events EventPublisher
	Scorer ranking.Scorer
	Logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(d Deps) *CatalogService {
	return &CatalogService{
		repo:   d.Repo,
		blobs:  d.Blobs,
		cache:  d.Cache,
		events: d.Events,
		scorer: d.Scorer,
		logger: d.Logger,
	}
}

// invalidation lists the cache entries a mutation makes stale.
type invalidation struct {
	keys     []string
	patterns []string
}

// listingsOf covers every listing a product can appear in. A product of
// category C is listed under C and under C's parent, so all category
// listings are dropped.
func listingsOf() invalidation {
	return invalidation{
		keys:     []string{cache.FeaturedProductsKey},
		patterns: []string{cache.SearchPattern, cache.CategoryProductsPattern},
	}
}

func (inv invalidation) withKeys(keys ...string) invalidation {
	inv.keys = append(inv.keys, keys...)
	return inv
}

// invalidate attempts every deletion even when some fail. Failures are
// logged, never returned.
func (s *CatalogService) invalidate(ctx context.Context, inv invalidation) {
	var errs []error
	for _, key := range inv.keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	for _, pattern := range inv.patterns {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed",
			slog.Any("keys", inv.keys),
			slog.Any("patterns", inv.patterns),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CatalogService) publish(ctx context.Context, e event.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, e)
}
