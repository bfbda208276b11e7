package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/utafrali/catalog-service/internal/cache"
	"github.com/utafrali/catalog-service/internal/domain"
	"github.com/utafrali/catalog-service/internal/event"
	"github.com/utafrali/catalog-service/internal/repository"
	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/pagination"
)

// FeaturedLimit caps the featured product list.
const FeaturedLimit = 10

// CreateProduct validates input, uploads its images and inserts the product.
// Images uploaded by this call are deleted again if anything after the
// upload fails.
func (s *CatalogService) CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	if err := validateInput(input, input.Malformed, input.Images); err != nil {
		return nil, err
	}

	urls, err := s.uploadImages(ctx, input.Images)
	if err != nil {
		return nil, err
	}

	sku, err := GenerateSKU(input.Name, input.ShopID)
	if err != nil {
		return nil, s.rollbackImages(ctx, err, urls)
	}

	product := &domain.Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		Discount:    input.Discount,
		CategoryID:  input.CategoryID,
		ShopID:      input.ShopID,
		SellerID:    input.SellerID,
		Images:      urls,
		Rating:      0,
		IsActive:    true,
		SKU:         sku,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, s.rollbackImages(ctx, fmt.Errorf("create product: %w", err), urls)
	}

	s.publish(ctx, event.NewProductCreated(*product))
	s.invalidate(ctx, listingsOf())

	s.logger.InfoContext(ctx, "product created",
		slog.Int64("product_id", product.ID),
		slog.String("sku", product.SKU),
		slog.Int("images", len(urls)),
	)

	return product, nil
}

// UpdateProduct applies a partial update on behalf of requesterID, who must
// own the product. New images are appended after the surviving ones.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput, requesterID int64) (*domain.Product, error) {
	existing, err := s.ownedProduct(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}

	violations := unknownImages(existing.Images, input.ImagesToDelete)
	if input.SellerID != nil && *input.SellerID != existing.SellerID {
		violations = append(violations, "sellerId cannot be changed")
	}
	if err := validateInput(input, input.Malformed, input.Images, violations...); err != nil {
		return nil, err
	}

	uploaded, err := s.uploadImages(ctx, input.Images)
	if err != nil {
		return nil, err
	}

	if err := s.deleteImages(ctx, input.ImagesToDelete); err != nil {
		return nil, s.rollbackImages(ctx, err, uploaded)
	}

	changes := input.changes()
	if len(uploaded) > 0 || len(input.ImagesToDelete) > 0 {
		images := make([]string, 0, len(existing.Images)+len(uploaded))
		for _, url := range existing.Images {
			if !slices.Contains(input.ImagesToDelete, url) {
				images = append(images, url)
			}
		}
		images = append(images, uploaded...)
		changes.Images = &images
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, s.rollbackImages(ctx, fmt.Errorf("update product: %w", err), uploaded)
	}

	s.publish(ctx, event.NewProductUpdated(*updated, changes.Fields()))
	s.invalidate(ctx, listingsOf().withKeys(cache.ProductKey(id)))

	s.logger.InfoContext(ctx, "product updated",
		slog.Int64("product_id", id),
		slog.Any("fields", changes.Fields()),
	)

	return updated, nil
}

// GetProduct returns the product detail, served from cache when present.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.ProductDetail, error) {
	return cache.ReadThrough(ctx, s.cache, s.logger, cache.ProductKey(id), cache.ProductTTL,
		func(ctx context.Context) (*domain.ProductDetail, error) {
			return s.findProduct(ctx, id)
		})
}

// GetProducts returns one page of active products matching filter.
func (s *CatalogService) GetProducts(ctx context.Context, filter repository.ProductFilter) (*pagination.Page[domain.ProductListItem], error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	page, err := s.repo.FindWithFilters(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return page, nil
}

// GetFeaturedProducts returns up to FeaturedLimit well-rated products in
// stock.
func (s *CatalogService) GetFeaturedProducts(ctx context.Context) ([]domain.Product, error) {
	return cache.ReadThrough(ctx, s.cache, s.logger, cache.FeaturedProductsKey, cache.FeaturedTTL,
		func(ctx context.Context) ([]domain.Product, error) {
			products, err := s.repo.FindFeatured(ctx, FeaturedLimit)
			if err != nil {
				return nil, fmt.Errorf("find featured products: %w", err)
			}
			return nonNil(products), nil
		})
}

// SearchProducts returns active products whose name or description contains
// query. Results are cached per lower-cased query.
func (s *CatalogService) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation("search query must not be empty")
	}

	return cache.ReadThrough(ctx, s.cache, s.logger, cache.SearchKey(query), cache.SearchTTL,
		func(ctx context.Context) ([]domain.Product, error) {
			products, err := s.repo.Search(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("search products: %w", err)
			}
			return nonNil(products), nil
		})
}

// DeleteProduct removes the product and all of its images. When an image
// cannot be deleted the product is left in place and the error returned.
func (s *CatalogService) DeleteProduct(ctx context.Context, id, requesterID int64) error {
	existing, err := s.ownedProduct(ctx, id, requesterID)
	if err != nil {
		return err
	}

	if err := s.deleteImages(ctx, existing.Images); err != nil {
		return fmt.Errorf("delete product images: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.publish(ctx, event.NewProductDeleted(existing.Product))
	s.invalidate(ctx, listingsOf().withKeys(cache.ProductKey(id)))

	s.logger.InfoContext(ctx, "product deleted", slog.Int64("product_id", id))
	return nil
}

// UpdateStock adds delta to the product's stock. Only the product's own
// cache entry is invalidated.
func (s *CatalogService) UpdateStock(ctx context.Context, id int64, delta int, requesterID int64) (*domain.Product, error) {
	existing, err := s.ownedProduct(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	if !existing.CanAdjustStock(delta) {
		return nil, apperrors.Validation(fmt.Sprintf("insufficient stock: have %d, requested change %d", existing.Stock, delta))
	}

	updated, err := s.repo.UpdateStock(ctx, id, delta)
	if err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}

	previous := updated.Stock - delta
	s.publish(ctx, event.NewStockUpdated(id, previous, updated.Stock, delta))
	s.invalidate(ctx, invalidation{keys: []string{cache.ProductKey(id)}})

	s.logger.InfoContext(ctx, "product stock updated",
		slog.Int64("product_id", id),
		slog.Int("previous_stock", previous),
		slog.Int("new_stock", updated.Stock),
	)

	return updated, nil
}

// RecalculateRating recomputes the product rating from its reviews.
func (s *CatalogService) RecalculateRating(ctx context.Context, id int64) (float64, error) {
	rating, err := s.repo.UpdateRating(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("update rating: %w", err)
	}
	s.invalidate(ctx, invalidation{keys: []string{cache.ProductKey(id), cache.FeaturedProductsKey}})
	return rating, nil
}

func (s *CatalogService) findProduct(ctx context.Context, id int64) (*domain.ProductDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	if detail == nil {
		return nil, apperrors.NotFound("product", id)
	}
	return detail, nil
}

// ownedProduct loads the product and checks that requesterID owns it.
func (s *CatalogService) ownedProduct(ctx context.Context, id, requesterID int64) (*domain.ProductDetail, error) {
	detail, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !detail.OwnedBy(requesterID) {
		return nil, apperrors.Forbidden("you do not own this product")
	}
	return detail, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
