package postgres

import (
	"context"

	"github.com/utafrali/catalog-service/internal/domain"
	"github.com/utafrali/catalog-service/pkg/database"
)

// recentReviews loads up to domain.RecentReviewLimit newest reviews for each
// product in one round trip, keyed by product id.
func (r *ProductRepository) recentReviews(ctx context.Context, productIDs []int64) (_ map[int64][]domain.Review, err error) {
	query := `
		SELECT id, product_id, rating, comment, created_at, user_id, user_name, user_avatar
		FROM (
			SELECT r.id, r.product_id, r.rating, r.comment, r.created_at,
				u.id AS user_id, u.name AS user_name, u.avatar AS user_avatar,
				ROW_NUMBER() OVER (PARTITION BY r.product_id ORDER BY r.created_at DESC, r.id DESC) AS rn
			FROM reviews r
			JOIN users u ON u.id = r.user_id
			WHERE r.product_id = ANY($1)
		) ranked
		WHERE rn <= $2
		ORDER BY product_id, created_at DESC, id DESC`

	ctx, end := database.TraceQuery(ctx, "FindRecentReviews", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, productIDs, domain.RecentReviewLimit)
	if err != nil {
		return nil, mapError("find recent reviews", err)
	}
	defer rows.Close()

	reviews := make(map[int64][]domain.Review, len(productIDs))
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.Rating,
			&rv.Comment,
			&rv.CreatedAt,
			&rv.Reviewer.ID,
			&rv.Reviewer.Name,
			&rv.Reviewer.Avatar,
		); err != nil {
			return nil, mapError("scan review row", err)
		}
		reviews[rv.ProductID] = append(reviews[rv.ProductID], rv)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate review rows", err)
	}

	return reviews, nil
}
