package postgres

import (
	"fmt"
	"strings"

	"github.com/utafrali/catalog-service/internal/repository"
)

// sortColumns is the closed set of orderable columns. Anything else falls
// back to the default order.
var sortColumns = map[repository.SortKey]string{
	repository.SortByPrice:     "p.price",
	repository.SortByRating:    "p.rating",
	repository.SortByCreatedAt: "p.created_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns an ILIKE pattern matching q anywhere, with
// wildcards in q taken literally.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// whereClause builds the predicate for filter. Only active products are ever
// matched. The returned args are numbered from $1.
func whereClause(filter repository.ProductFilter) (string, []any) {
	var (
		conditions = []string{"p.is_active = TRUE"}
		args       []any
		argIndex   = 1
	)

	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", argIndex))
		args = append(args, *filter.CategoryID)
		argIndex++
	}

	if filter.ShopID != nil {
		conditions = append(conditions, fmt.Sprintf("p.shop_id = $%d", argIndex))
		args = append(args, *filter.ShopID)
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	if filter.MinRating != nil {
		conditions = append(conditions, fmt.Sprintf("p.rating >= $%d", argIndex))
		args = append(args, *filter.MinRating)
		argIndex++
	}

	if filter.InStock {
		conditions = append(conditions, "p.stock > 0")
	}

	if filter.Query != nil && strings.TrimSpace(*filter.Query) != "" {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", argIndex, argIndex))
		args = append(args, containsPattern(strings.TrimSpace(*filter.Query)))
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// orderClause maps a sort key and direction to an ORDER BY clause. The
// default is newest first; a key without a direction sorts descending.
func orderClause(key repository.SortKey, order repository.SortOrder) string {
	column, ok := sortColumns[key]
	if !ok {
		column = "p.created_at"
	}
	direction := "DESC"
	if order == repository.SortAsc {
		direction = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, p.id %s", column, direction, direction)
}
