package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-service/internal/domain"
	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/kafka"
	"github.com/utafrali/catalog-service/pkg/logger"
)

// ─── fakes ──────────────────────────────────────────────────────────────────

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, e *kafka.Event) error {
	args := m.Called(ctx, topic, e)
	return args.Error(0)
}

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Index(ctx context.Context, p domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockIndex) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type stubSource struct {
	detail *domain.ProductDetail
	err    error
}

func (s stubSource) FindByID(context.Context, int64) (*domain.ProductDetail, error) {
	return s.detail, s.err
}

// ─── Kafka forwarder ────────────────────────────────────────────────────────

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.catalog.product.created", Topic(ProductCreated))
	assert.Equal(t, "ecommerce.catalog.product.stock_updated", Topic(ProductStockUpdated))
}

func TestKafkaForwarder_PublishesEnvelope(t *testing.T) {
	pub := new(mockPublisher)
	occurred := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	pub.On("Publish", mock.Anything, "ecommerce.catalog.product.stock_updated", mock.MatchedBy(func(e *kafka.Event) bool {
		var data StockUpdatedPayload
		return e.EventType == "product:stock_updated" &&
			e.AggregateID == "5" &&
			e.AggregateType == AggregateTypeProduct &&
			e.Source == "catalog-service" &&
			e.CorrelationID == "corr-1" &&
			e.Timestamp.Equal(occurred) &&
			e.UnmarshalData(&data) == nil &&
			data == StockUpdatedPayload{ProductID: 5, PreviousStock: 2, NewStock: 7, Delta: 5}
	})).Return(nil).Once()

	e := NewStockUpdated(5, 2, 7, 5)
	e.OccurredAt = occurred
	e.CorrelationID = "corr-1"

	err := KafkaForwarder(pub, "catalog-service")(context.Background(), e)
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestKafkaForwarder_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("leader not available"))

	err := KafkaForwarder(pub, "catalog-service")(context.Background(), NewProductDeleted(domain.Product{ID: 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

// ─── Low stock ──────────────────────────────────────────────────────────────

func TestLowStockWatcher(t *testing.T) {
	h := LowStockWatcher(5, logger.Discard())
	low := lowStockAlerts.WithLabelValues("low")
	out := lowStockAlerts.WithLabelValues("out_of_stock")

	tests := []struct {
		name     string
		previous int
		current  int
		wantLow  float64
		wantOut  float64
	}{
		{"crosses threshold", 8, 4, 1, 0},
		{"already low", 4, 3, 0, 0},
		{"runs out", 3, 0, 0, 1},
		{"restocked", 0, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lowBefore, outBefore := testutil.ToFloat64(low), testutil.ToFloat64(out)

			err := h(context.Background(), NewStockUpdated(1, tt.previous, tt.current, tt.current-tt.previous))
			require.NoError(t, err)

			assert.Equal(t, lowBefore+tt.wantLow, testutil.ToFloat64(low))
			assert.Equal(t, outBefore+tt.wantOut, testutil.ToFloat64(out))
		})
	}
}

func TestLowStockWatcher_IgnoresOtherPayloads(t *testing.T) {
	h := LowStockWatcher(5, logger.Discard())
	assert.NoError(t, h(context.Background(), NewProductCreated(domain.Product{ID: 1})))
}

// ─── Search index ───────────────────────────────────────────────────────────

func TestIndexSync(t *testing.T) {
	active := &domain.ProductDetail{Product: domain.Product{ID: 1, Name: "Red Mug", IsActive: true}}
	inactive := &domain.ProductDetail{Product: domain.Product{ID: 1, IsActive: false}}

	t.Run("indexes active product", func(t *testing.T) {
		idx := new(mockIndex)
		idx.On("Index", mock.Anything, active.Product).Return(nil).Once()

		err := IndexSync(idx, stubSource{detail: active})(context.Background(), NewProductUpdated(active.Product, []string{"name"}))
		require.NoError(t, err)
		idx.AssertExpectations(t)
	})

	t.Run("drops inactive product", func(t *testing.T) {
		idx := new(mockIndex)
		idx.On("Delete", mock.Anything, int64(1)).Return(nil).Once()

		err := IndexSync(idx, stubSource{detail: inactive})(context.Background(), NewProductUpdated(inactive.Product, []string{"isActive"}))
		require.NoError(t, err)
		idx.AssertExpectations(t)
	})

	t.Run("drops deleted product without loading it", func(t *testing.T) {
		idx := new(mockIndex)
		idx.On("Delete", mock.Anything, int64(1)).Return(nil).Once()

		err := IndexSync(idx, stubSource{err: errors.New("must not be called")})(context.Background(), NewProductDeleted(domain.Product{ID: 1}))
		require.NoError(t, err)
		idx.AssertExpectations(t)
	})

	t.Run("load failure is returned", func(t *testing.T) {
		idx := new(mockIndex)
		err := IndexSync(idx, stubSource{err: errors.New("db down")})(context.Background(), NewProductCreated(domain.Product{ID: 1}))
		require.Error(t, err)
		idx.AssertNotCalled(t, "Index", mock.Anything, mock.Anything)
	})
}

// ─── Reviews ────────────────────────────────────────────────────────────────

type mockRater struct {
	mock.Mock
}

func (m *mockRater) RecalculateRating(ctx context.Context, id int64) (float64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(float64), args.Error(1)
}

func reviewEvent(t *testing.T, eventType string, data any) *kafka.Event {
	t.Helper()
	e, err := kafka.NewEvent(eventType, "r-1", "review", "review-service", data)
	require.NoError(t, err)
	return e
}

func TestReviewConsumer_RecalculatesRating(t *testing.T) {
	for _, eventType := range []string{"review:created", "review:updated", "review:deleted"} {
		t.Run(eventType, func(t *testing.T) {
			rater := new(mockRater)
			rater.On("RecalculateRating", mock.Anything, int64(12)).Return(4.5, nil).Once()

			c := NewReviewConsumer(rater, logger.Discard())
			err := c.Handle(context.Background(), reviewEvent(t, eventType, ReviewEventData{ReviewID: 3, ProductID: 12, Rating: 5}))

			require.NoError(t, err)
			rater.AssertExpectations(t)
		})
	}
}

func TestReviewConsumer_IgnoresUnknownProductAndType(t *testing.T) {
	rater := new(mockRater)
	rater.On("RecalculateRating", mock.Anything, int64(99)).Return(0.0, apperrors.NotFound("product", 99)).Once()
	c := NewReviewConsumer(rater, logger.Discard())

	require.NoError(t, c.Handle(context.Background(), reviewEvent(t, "review:created", ReviewEventData{ProductID: 99})))
	require.NoError(t, c.Handle(context.Background(), reviewEvent(t, "review:flagged", ReviewEventData{ProductID: 99})))
	require.NoError(t, c.Handle(context.Background(), reviewEvent(t, "review:created", ReviewEventData{})))

	rater.AssertNumberOfCalls(t, "RecalculateRating", 1)
}

func TestReviewConsumer_PropagatesStoreErrors(t *testing.T) {
	rater := new(mockRater)
	rater.On("RecalculateRating", mock.Anything, int64(12)).Return(0.0, apperrors.Persistence("update product rating", errors.New("conn reset")))
	c := NewReviewConsumer(rater, logger.Discard())

	err := c.Handle(context.Background(), reviewEvent(t, "review:updated", ReviewEventData{ProductID: 12}))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestReviewConsumer_BadPayload(t *testing.T) {
	c := NewReviewConsumer(new(mockRater), logger.Discard())
	e := &kafka.Event{EventType: "review:created", Data: []byte(`"nope"`)}
	assert.Error(t, c.Handle(context.Background(), e))
}
