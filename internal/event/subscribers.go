package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/catalog-service/internal/domain"
	"github.com/utafrali/catalog-service/pkg/kafka"
	"github.com/utafrali/catalog-service/pkg/logger"
)

// AggregateTypeProduct is the aggregate type of every catalog envelope.
const AggregateTypeProduct = "product"

// ─── Kafka forwarder ────────────────────────────────────────────────────────

// Publisher writes envelopes to a Kafka topic. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Topic returns the Kafka topic of an event, e.g.
// "ecommerce.catalog.product.created".
func Topic(name Name) string {
	return "ecommerce.catalog." + strings.ReplaceAll(string(name), ":", ".")
}

// KafkaForwarder publishes every event it receives as a pkg/kafka envelope.
func KafkaForwarder(p Publisher, source string) Handler {
	return func(ctx context.Context, e Event) error {
		envelope, err := kafka.NewEvent(string(e.Name), strconv.FormatInt(e.ProductID, 10), AggregateTypeProduct, source, e.Payload)
		if err != nil {
			return err
		}
		envelope.Timestamp = e.OccurredAt
		if e.CorrelationID != "" {
			envelope.WithCorrelationID(e.CorrelationID)
		}
		if err := p.Publish(ctx, Topic(e.Name), envelope); err != nil {
			return fmt.Errorf("forward %s: %w", e.Name, err)
		}
		return nil
	}
}

// ─── Audit ──────────────────────────────────────────────────────────────────

// AuditLog writes one structured log line per event.
func AuditLog(base *slog.Logger) Handler {
	return func(ctx context.Context, e Event) error {
		logger.WithContext(ctx, base).InfoContext(ctx, "catalog audit",
			slog.String("event", string(e.Name)),
			slog.Int64("product_id", e.ProductID),
			slog.Time("occurred_at", e.OccurredAt),
			slog.Any("payload", e.Payload),
		)
		return nil
	}
}

// ─── Inventory ──────────────────────────────────────────────────────────────

var lowStockAlerts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_low_stock_alerts_total",
		Help: "Stock changes that crossed the low-stock threshold or emptied a product.",
	},
	[]string{"level"},
)

// LowStockWatcher warns when a stock change crosses threshold downwards and
// when a product runs out.
func LowStockWatcher(threshold int, base *slog.Logger) Handler {
	return func(ctx context.Context, e Event) error {
		p, ok := e.Payload.(StockUpdatedPayload)
		if !ok {
			return nil
		}

		log := logger.WithContext(ctx, base).With(
			slog.Int64("product_id", p.ProductID),
			slog.Int("previous_stock", p.PreviousStock),
			slog.Int("new_stock", p.NewStock),
		)
		switch {
		case p.NewStock == 0 && p.PreviousStock > 0:
			lowStockAlerts.WithLabelValues("out_of_stock").Inc()
			log.WarnContext(ctx, "product out of stock")
		case p.NewStock <= threshold && p.PreviousStock > threshold:
			lowStockAlerts.WithLabelValues("low").Inc()
			log.WarnContext(ctx, "product stock low", slog.Int("threshold", threshold))
		}
		return nil
	}
}

// ─── Search index ───────────────────────────────────────────────────────────

// ProductIndex is a secondary search index of products.
type ProductIndex interface {
	Index(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, id int64) error
}

// ProductSource loads the current state of a product.
type ProductSource interface {
	FindByID(ctx context.Context, id int64) (*domain.ProductDetail, error)
}

// IndexSync keeps index in step with the store: products are re-read and
// indexed after a change, and dropped when deleted or inactive.
func IndexSync(index ProductIndex, source ProductSource) Handler {
	return func(ctx context.Context, e Event) error {
		if e.Name == ProductDeleted {
			return index.Delete(ctx, e.ProductID)
		}

		detail, err := source.FindByID(ctx, e.ProductID)
		if err != nil {
			return fmt.Errorf("load product %d: %w", e.ProductID, err)
		}
		if detail == nil || !detail.IsActive {
			return index.Delete(ctx, e.ProductID)
		}
		return index.Index(ctx, detail.Product)
	}
}
