package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/utafrali/catalog-service/internal/cache"
	"github.com/utafrali/catalog-service/internal/domain"
	"github.com/utafrali/catalog-service/internal/ranking"
	"github.com/utafrali/catalog-service/internal/repository"
	apperrors "github.com/utafrali/catalog-service/pkg/errors"
)

// semanticCandidateLimit bounds how many products are sent to the scorer.
const semanticCandidateLimit = 100

// GetProductsByCategory returns the products of a category and its direct
// children, narrowed and sorted by filter. The unfiltered list is cached.
func (s *CatalogService) GetProductsByCategory(ctx context.Context, categoryID int64, filter repository.ProductFilter) ([]domain.Product, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	products, err := cache.ReadThrough(ctx, s.cache, s.logger, cache.CategoryProductsKey(categoryID), cache.CategoryProductTTL,
		func(ctx context.Context) ([]domain.Product, error) {
			products, err := s.repo.FindByCategory(ctx, categoryID)
			if err != nil {
				return nil, fmt.Errorf("find products by category: %w", err)
			}
			return nonNil(products), nil
		})
	if err != nil {
		return nil, err
	}
	return narrow(products, filter), nil
}

// GetProductsByShop returns the products of a shop, narrowed and sorted by
// filter.
func (s *CatalogService) GetProductsByShop(ctx context.Context, shopID int64, filter repository.ProductFilter) ([]domain.Product, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	products, err := s.repo.FindByShop(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("find products by shop: %w", err)
	}
	return narrow(products, filter), nil
}

// GetSellerProducts returns every product of a seller, inactive ones
// included.
func (s *CatalogService) GetSellerProducts(ctx context.Context, sellerID int64) ([]domain.Product, error) {
	products, err := s.repo.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("find products by seller: %w", err)
	}
	return nonNil(products), nil
}

// SearchProductsAI ranks active products by semantic relevance to query.
// When no scorer is configured or it fails, plain text search is used.
func (s *CatalogService) SearchProductsAI(ctx context.Context, query string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation("search query must not be empty")
	}
	if s.scorer == nil {
		return s.SearchProducts(ctx, query)
	}

	page, err := s.repo.FindWithFilters(ctx, repository.ProductFilter{Page: 1, Limit: semanticCandidateLimit})
	if err != nil {
		return nil, fmt.Errorf("load search candidates: %w", err)
	}
	candidates := make([]domain.Product, len(page.Items))
	for i, it := range page.Items {
		candidates[i] = it.Product
	}

	ranked, err := ranking.Rank(ctx, s.scorer, query, candidates, ranking.DefaultTopK)
	if err != nil {
		s.logger.WarnContext(ctx, "semantic ranking failed, falling back to text search",
			slog.String("error", err.Error()),
		)
		return s.SearchProducts(ctx, query)
	}
	return ranked, nil
}

// narrow applies the in-memory part of filter: price and rating bounds,
// stock, and ordering. Inactive products are dropped.
func narrow(products []domain.Product, f repository.ProductFilter) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		switch {
		case !p.IsActive:
		case f.MinPrice != nil && p.Price.LessThan(*f.MinPrice):
		case f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice):
		case f.MinRating != nil && p.Rating < *f.MinRating:
		case f.InStock && !p.InStock():
		default:
			out = append(out, p)
		}
	}

	if f.SortBy == "" {
		return out
	}
	compare := comparator(f.SortBy)
	if f.SortOrder != repository.SortAsc {
		asc := compare
		compare = func(a, b domain.Product) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, compare)
	return out
}

func comparator(key repository.SortKey) func(a, b domain.Product) int {
	switch key {
	case repository.SortByPrice:
		return func(a, b domain.Product) int { return a.Price.Cmp(b.Price) }
	case repository.SortByRating:
		return func(a, b domain.Product) int { return cmp.Compare(a.Rating, b.Rating) }
	default:
		return func(a, b domain.Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}
