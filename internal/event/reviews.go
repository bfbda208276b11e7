package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/kafka"
	"github.com/utafrali/catalog-service/pkg/logger"
)

// Kafka topics of review events consumed by the catalog.
const (
	TopicReviewCreated = "ecommerce.review.created"
	TopicReviewUpdated = "ecommerce.review.updated"
	TopicReviewDeleted = "ecommerce.review.deleted"
)

// ReviewTopics lists every topic ReviewConsumer handles.
var ReviewTopics = []string{TopicReviewCreated, TopicReviewUpdated, TopicReviewDeleted}

// ReviewEventData is the payload shared by all review events.
type ReviewEventData struct {
	ReviewID  int64 `json:"review_id"`
	ProductID int64 `json:"product_id"`
	Rating    int   `json:"rating"`
}

// Rater recomputes a product's rating from its reviews.
type Rater interface {
	RecalculateRating(ctx context.Context, productID int64) (float64, error)
}

// ReviewConsumer keeps product ratings current as reviews change.
type ReviewConsumer struct {
	rater  Rater
	logger *slog.Logger
}

func NewReviewConsumer(rater Rater, logger *slog.Logger) *ReviewConsumer {
	return &ReviewConsumer{rater: rater, logger: logger}
}

// Handle is a kafka.Handler. Reviews of products that no longer exist are
// acknowledged and dropped.
func (c *ReviewConsumer) Handle(ctx context.Context, e *kafka.Event) error {
	switch e.EventType {
	case "review:created", "review:updated", "review:deleted":
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", e.EventType),
			slog.String("event_id", e.EventID),
		)
		return nil
	}

	var data ReviewEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", e.EventType, err)
	}
	if data.ProductID <= 0 {
		c.logger.WarnContext(ctx, "review event without product id", slog.String("event_id", e.EventID))
		return nil
	}

	ctx = logger.WithCorrelationID(ctx, e.CorrelationID)
	log := logger.WithContext(ctx, c.logger)

	rating, err := c.rater.RecalculateRating(ctx, data.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.InfoContext(ctx, "review event for unknown product ignored",
				slog.Int64("product_id", data.ProductID),
			)
			return nil
		}
		return fmt.Errorf("recalculate rating from %s: %w", e.EventType, err)
	}

	log.InfoContext(ctx, "product rating recalculated",
		slog.String("event_type", e.EventType),
		slog.Int64("product_id", data.ProductID),
		slog.Float64("rating", rating),
	)
	return nil
}
