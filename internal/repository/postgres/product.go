package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/catalog-service/internal/domain"
	"github.com/utafrali/catalog-service/internal/repository"
	"github.com/utafrali/catalog-service/pkg/database"
	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/pagination"
)

const productColumns = `p.id, p.name, p.description, p.price, p.stock, p.discount, p.category_id,
	p.shop_id, p.seller_id, p.images, p.rating, p.is_active, p.sku, p.created_at, p.updated_at`

// productFields returns scan destinations matching productColumns.
func productFields(p *domain.Product) []any {
	return []any{
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Discount, &p.CategoryID,
		&p.ShopID, &p.SellerID, &p.Images, &p.Rating, &p.IsActive, &p.SKU, &p.CreatedAt, &p.UpdatedAt,
	}
}

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByID retrieves a product with its category, shop and recent reviews.
// A missing product yields (nil, nil).
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (_ *domain.ProductDetail, err error) {
	query := `
		SELECT ` + productColumns + `,
			c.id, c.name, c.slug, c.parent_id,
			s.id, s.name, s.is_verified, s.rating
		FROM products p
		JOIN categories c ON c.id = p.category_id
		JOIN shops s ON s.id = p.shop_id
		WHERE p.id = $1`

	ctx, end := database.TraceQuery(ctx, "FindProductByID", query)
	defer func() { end(err) }()

	var (
		detail   domain.ProductDetail
		category domain.Category
		shop     domain.ShopSummary
	)
	dest := append(productFields(&detail.Product),
		&category.ID, &category.Name, &category.Slug, &category.ParentID,
		&shop.ID, &shop.Name, &shop.IsVerified, &shop.Rating,
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError("find product", err)
	}
	detail.Category = &category
	detail.Shop = &shop

	reviews, err := r.recentReviews(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	detail.Reviews = reviews[id]
	if detail.Reviews == nil {
		detail.Reviews = []domain.Review{}
	}

	return &detail, nil
}

// FindWithFilters returns one page of active products. The page and the
// total count are fetched concurrently so the metadata reflects the whole
// filtered set.
func (r *ProductRepository) FindWithFilters(ctx context.Context, filter repository.ProductFilter) (*pagination.Page[domain.ProductListItem], error) {
	page, limit := pagination.Normalize(filter.Page, filter.Limit)
	where, args := whereClause(filter)

	listQuery := fmt.Sprintf(`
		SELECT %s,
			s.id, s.name, s.is_verified, s.rating
		FROM products p
		JOIN shops s ON s.id = p.shop_id
		%s
		%s
		LIMIT $%d OFFSET $%d`,
		productColumns, where, orderClause(filter.SortBy, filter.SortOrder), len(args)+1, len(args)+2,
	)
	listArgs := append(append([]any{}, args...), limit, pagination.Offset(page, limit))

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM products p %s`, where)

	var (
		items []domain.ProductListItem
		total int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = r.listItems(gctx, listQuery, listArgs)
		return err
	})
	g.Go(func() (err error) {
		qctx, end := database.TraceQuery(gctx, "CountProducts", countQuery)
		defer func() { end(err) }()
		if err := r.db.QueryRow(qctx, countQuery, args...).Scan(&total); err != nil {
			return mapError("count products", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(items) > 0 {
		ids := make([]int64, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}
		reviews, err := r.recentReviews(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range items {
			if rs, ok := reviews[items[i].ID]; ok {
				items[i].Reviews = rs
			}
		}
	}

	return pagination.NewPage(items, total, page, limit), nil
}

// FindAll is an alias of FindWithFilters.
func (r *ProductRepository) FindAll(ctx context.Context, filter repository.ProductFilter) (*pagination.Page[domain.ProductListItem], error) {
	return r.FindWithFilters(ctx, filter)
}

func (r *ProductRepository) listItems(ctx context.Context, query string, args []any) (_ []domain.ProductListItem, err error) {
	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list products", err)
	}
	defer rows.Close()

	var items []domain.ProductListItem
	for rows.Next() {
		var item domain.ProductListItem
		dest := append(productFields(&item.Product),
			&item.Shop.ID, &item.Shop.Name, &item.Shop.IsVerified, &item.Shop.Rating,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, mapError("scan product row", err)
		}
		item.Reviews = []domain.Review{}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate product rows", err)
	}

	return items, nil
}

// FindByCategory returns every product in the category or one of its direct
// children.
func (r *ProductRepository) FindByCategory(ctx context.Context, categoryID int64) (_ []domain.Product, err error) {
	idsQuery := `SELECT id FROM categories WHERE id = $1 OR parent_id = $1`

	tctx, end := database.TraceQuery(ctx, "ResolveCategoryTree", idsQuery)
	categoryIDs, err := func() ([]int64, error) {
		rows, err := r.db.Query(tctx, idsQuery, categoryID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, rows.Err()
	}()
	end(err)
	if err != nil {
		return nil, mapError("resolve category tree", err)
	}
	if len(categoryIDs) == 0 {
		return []domain.Product{}, nil
	}

	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.category_id = ANY($1)
		ORDER BY p.created_at DESC, p.id DESC`

	return r.queryProducts(ctx, "FindProductsByCategory", query, categoryIDs)
}

// FindByShop returns every product of a shop, newest first.
func (r *ProductRepository) FindByShop(ctx context.Context, shopID int64) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.shop_id = $1
		ORDER BY p.created_at DESC, p.id DESC`

	return r.queryProducts(ctx, "FindProductsByShop", query, shopID)
}

// FindBySeller returns every product owned by a seller, newest first.
func (r *ProductRepository) FindBySeller(ctx context.Context, sellerID int64) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.seller_id = $1
		ORDER BY p.created_at DESC, p.id DESC`

	return r.queryProducts(ctx, "FindProductsBySeller", query, sellerID)
}

// FindFeatured returns up to limit active, in-stock products rated 4 or
// higher, best rated first.
func (r *ProductRepository) FindFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.is_active = TRUE AND p.stock > 0 AND p.rating >= 4
		ORDER BY p.rating DESC, p.id DESC
		LIMIT $1`

	return r.queryProducts(ctx, "FindFeaturedProducts", query, limit)
}

// Search returns active products whose name or description contains query,
// case-insensitively.
func (r *ProductRepository) Search(ctx context.Context, query string) ([]domain.Product, error) {
	stmt := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.is_active = TRUE AND (p.name ILIKE $1 OR p.description ILIKE $1)
		ORDER BY p.created_at DESC, p.id DESC`

	return r.queryProducts(ctx, "SearchProducts", stmt, containsPattern(strings.TrimSpace(query)))
}

func (r *ProductRepository) queryProducts(ctx context.Context, op, query string, args ...any) (_ []domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(productFields(&p)...); err != nil {
			return nil, mapError("scan product row", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate product rows", err)
	}

	return products, nil
}

// Create verifies that the shop belongs to the seller and inserts the
// product, writing the generated id and timestamps back into p.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ownerQuery := `SELECT EXISTS(SELECT 1 FROM shops WHERE id = $1 AND seller_id = $2)`

	var owned bool
	tctx, end := database.TraceQuery(ctx, "CheckShopOwner", ownerQuery)
	err = r.db.QueryRow(tctx, ownerQuery, p.ShopID, p.SellerID).Scan(&owned)
	end(err)
	if err != nil {
		return mapError("check shop owner", err)
	}
	if !owned {
		return apperrors.Validation(fmt.Sprintf("shop %d does not belong to seller %d", p.ShopID, p.SellerID))
	}

	if p.Images == nil {
		p.Images = []string{}
	}

	query := `
		INSERT INTO products (name, description, price, stock, discount, category_id, shop_id, seller_id, images, rating, is_active, sku)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	ctx, end = database.TraceQuery(ctx, "InsertProduct", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		p.Discount,
		p.CategoryID,
		p.ShopID,
		p.SellerID,
		p.Images,
		p.Rating,
		p.IsActive,
		p.SKU,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError("insert product", err)
	}

	return nil
}

// Update applies the set fields of changes. The owning seller can never be
// changed.
func (r *ProductRepository) Update(ctx context.Context, id int64, changes domain.ProductChanges) (_ *domain.Product, err error) {
	owner, err := r.ownerOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.SellerID != nil && *changes.SellerID != owner {
		return nil, apperrors.Validation("sellerId cannot be changed")
	}

	var (
		sets     []string
		args     []any
		argIndex = 1
	)
	set := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if changes.Name != nil {
		set("name", *changes.Name)
	}
	if changes.Description != nil {
		set("description", *changes.Description)
	}
	if changes.Price != nil {
		set("price", *changes.Price)
	}
	if changes.Stock != nil {
		set("stock", *changes.Stock)
	}
	if changes.Discount != nil {
		set("discount", *changes.Discount)
	}
	if changes.CategoryID != nil {
		set("category_id", *changes.CategoryID)
	}
	if changes.Images != nil {
		images := *changes.Images
		if images == nil {
			images = []string{}
		}
		set("images", images)
	}
	if changes.IsActive != nil {
		set("is_active", *changes.IsActive)
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(`
		UPDATE products AS p
		SET %s
		WHERE p.id = $%d
		RETURNING %s`,
		strings.Join(sets, ", "), argIndex, productColumns,
	)
	args = append(args, id)

	ctx, end := database.TraceQuery(ctx, "UpdateProduct", query)
	defer func() { end(err) }()

	var p domain.Product
	if err := r.db.QueryRow(ctx, query, args...).Scan(productFields(&p)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, mapError("update product", err)
	}

	return &p, nil
}

// UpdateStock adds delta to the stored stock. The increment is evaluated by
// the database, and the guard in the WHERE clause rejects it when a
// concurrent change left too little stock.
func (r *ProductRepository) UpdateStock(ctx context.Context, id int64, delta int) (_ *domain.Product, err error) {
	current, err := r.stockOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if current+delta < 0 {
		return nil, insufficientStock(current, delta)
	}

	query := `
		UPDATE products AS p
		SET stock = p.stock + $1, updated_at = NOW()
		WHERE p.id = $2 AND p.stock + $1 >= 0
		RETURNING ` + productColumns

	ctx, end := database.TraceQuery(ctx, "UpdateProductStock", query)
	defer func() { end(err) }()

	var p domain.Product
	if err := r.db.QueryRow(ctx, query, delta, id).Scan(productFields(&p)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the guard failed or the row is gone.
			left, lookupErr := r.stockOf(ctx, id)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return nil, insufficientStock(left, delta)
		}
		return nil, mapError("update product stock", err)
	}

	return &p, nil
}

func insufficientStock(current, delta int) error {
	return apperrors.Validation(fmt.Sprintf("insufficient stock: %d available, change of %d requested", current, delta))
}

// UpdateRating stores the mean rating of the product's reviews, or 0 when it
// has none.
func (r *ProductRepository) UpdateRating(ctx context.Context, id int64) (_ float64, err error) {
	query := `
		UPDATE products
		SET rating = COALESCE((SELECT AVG(rating)::float8 FROM reviews WHERE product_id = $1), 0),
			updated_at = NOW()
		WHERE id = $1
		RETURNING rating`

	ctx, end := database.TraceQuery(ctx, "UpdateProductRating", query)
	defer func() { end(err) }()

	var rating float64
	if err := r.db.QueryRow(ctx, query, id).Scan(&rating); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("product", id)
		}
		return 0, mapError("update product rating", err)
	}

	return rating, nil
}

// Delete removes a product by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id int64) (err error) {
	query := `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteProduct", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return mapError("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

func (r *ProductRepository) ownerOf(ctx context.Context, id int64) (owner int64, err error) {
	query := `SELECT seller_id FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "FindProductOwner", query)
	defer func() { end(err) }()

	if err := r.db.QueryRow(ctx, query, id).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("product", id)
		}
		return 0, mapError("find product owner", err)
	}
	return owner, nil
}

func (r *ProductRepository) stockOf(ctx context.Context, id int64) (stock int, err error) {
	query := `SELECT stock FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "FindProductStock", query)
	defer func() { end(err) }()

	if err := r.db.QueryRow(ctx, query, id).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("product", id)
		}
		return 0, mapError("find product stock", err)
	}
	return stock, nil
}
