package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-service/internal/domain"
	"github.com/utafrali/catalog-service/pkg/pagination"
)

// ErrDuplicate is wrapped into the validation error returned when a write
// violates a unique constraint, such as a SKU already used in the shop.
var ErrDuplicate = errors.New("duplicate value")

// SortKey names an orderable product attribute.
type SortKey string

const (
	SortByPrice     SortKey = "price"
	SortByRating    SortKey = "rating"
	SortByCreatedAt SortKey = "createdAt"
)

// Valid reports whether k is one of the known sort keys. The empty key is
// valid and means the default order.
func (k SortKey) Valid() bool {
	switch k {
	case "", SortByPrice, SortByRating, SortByCreatedAt:
		return true
	}
	return false
}

// SortOrder is a sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether o is a known direction or empty.
func (o SortOrder) Valid() bool {
	return o == "" || o == SortAsc || o == SortDesc
}

// ProductFilter defines filter criteria for listing products. Zero and nil
// fields impose no constraint.
type ProductFilter struct {
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	MinRating  *float64
	CategoryID *int64
	ShopID     *int64
	Query      *string
	InStock    bool
	SortBy     SortKey
	SortOrder  SortOrder
	Page       int
	Limit      int
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// FindByID returns the product with its category, shop and most recent
	// reviews attached, or nil when no product has that id.
	FindByID(ctx context.Context, id int64) (*domain.ProductDetail, error)

	// FindWithFilters returns one page of active products matching filter.
	FindWithFilters(ctx context.Context, filter ProductFilter) (*pagination.Page[domain.ProductListItem], error)

	// FindAll is equivalent to FindWithFilters.
	FindAll(ctx context.Context, filter ProductFilter) (*pagination.Page[domain.ProductListItem], error)

	// FindByCategory returns products in the category or its direct children.
	FindByCategory(ctx context.Context, categoryID int64) ([]domain.Product, error)

	// FindByShop returns every product listed by a shop.
	FindByShop(ctx context.Context, shopID int64) ([]domain.Product, error)

	// FindBySeller returns every product owned by a seller.
	FindBySeller(ctx context.Context, sellerID int64) ([]domain.Product, error)

	// FindFeatured returns up to limit active, in-stock, well-rated products.
	FindFeatured(ctx context.Context, limit int) ([]domain.Product, error)

	// Search returns active products whose name or description contains query.
	Search(ctx context.Context, query string) ([]domain.Product, error)

	// Create inserts p after verifying its shop belongs to its seller. The
	// generated id and timestamps are written back into p.
	Create(ctx context.Context, p *domain.Product) error

	// Update applies changes to the product and returns the stored result.
	Update(ctx context.Context, id int64, changes domain.ProductChanges) (*domain.Product, error)

	// UpdateStock adds delta to the stored stock and returns the result.
	UpdateStock(ctx context.Context, id int64, delta int) (*domain.Product, error)

	// UpdateRating recomputes the product rating from its reviews.
	UpdateRating(ctx context.Context, id int64) (float64, error)

	// Delete removes a product.
	Delete(ctx context.Context, id int64) error
}
