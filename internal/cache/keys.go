package cache

import (
	"strconv"
	"strings"
	"time"
)

// Entry lifetimes per key class.
const (
	ProductTTL         = time.Hour
	SearchTTL          = 30 * time.Minute
	CategoryProductTTL = time.Hour
	FeaturedTTL        = time.Hour
)

// FeaturedProductsKey holds the featured product list.
const FeaturedProductsKey = "featured_products"

// SearchPattern matches every cached search result.
const SearchPattern = "search:*"

// CategoryProductsPattern matches every cached category listing. A listing
// also holds the products of the category's direct children.
const CategoryProductsPattern = "category:*:products"

func ProductKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// SearchKey is case-insensitive in query.
func SearchKey(query string) string {
	return "search:" + strings.ToLower(strings.TrimSpace(query))
}

func CategoryProductsKey(categoryID int64) string {
	return "category:" + strconv.FormatInt(categoryID, 10) + ":products"
}
