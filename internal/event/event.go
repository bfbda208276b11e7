package event

import (
	"time"

	"github.com/utafrali/catalog-service/internal/domain"
)

// Name identifies a catalog domain event.
type Name string

const (
	ProductCreated      Name = "product:created"
	ProductUpdated      Name = "product:updated"
	ProductDeleted      Name = "product:deleted"
	ProductStockUpdated Name = "product:stock_updated"

	// AllEvents subscribes a handler to every event.
	AllEvents Name = "*"
)

// Event is one published domain event.
type Event struct {
	Name          Name
	ProductID     int64
	Payload       any
	OccurredAt    time.Time
	CorrelationID string
}

// ProductCreatedPayload is the payload of product:created.
type ProductCreatedPayload struct {
	ProductID  int64  `json:"productId"`
	ShopID     int64  `json:"shopId"`
	SellerID   int64  `json:"sellerId"`
	CategoryID int64  `json:"categoryId"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Stock      int    `json:"stock"`
}

// ProductUpdatedPayload is the payload of product:updated.
type ProductUpdatedPayload struct {
	ProductID     int64    `json:"productId"`
	SellerID      int64    `json:"sellerId"`
	CategoryID    int64    `json:"categoryId"`
	ChangedFields []string `json:"changedFields"`
}

// ProductDeletedPayload is the payload of product:deleted.
type ProductDeletedPayload struct {
	ProductID  int64 `json:"productId"`
	SellerID   int64 `json:"sellerId"`
	CategoryID int64 `json:"categoryId"`
}

// StockUpdatedPayload is the payload of product:stock_updated.
type StockUpdatedPayload struct {
	ProductID     int64 `json:"productId"`
	PreviousStock int   `json:"previousStock"`
	NewStock      int   `json:"newStock"`
	Delta         int   `json:"delta"`
}

func NewProductCreated(p domain.Product) Event {
	return Event{
		Name:      ProductCreated,
		ProductID: p.ID,
		Payload: ProductCreatedPayload{
			ProductID:  p.ID,
			ShopID:     p.ShopID,
			SellerID:   p.SellerID,
			CategoryID: p.CategoryID,
			SKU:        p.SKU,
			Name:       p.Name,
			Stock:      p.Stock,
		},
	}
}

func NewProductUpdated(p domain.Product, changed []string) Event {
	return Event{
		Name:      ProductUpdated,
		ProductID: p.ID,
		Payload: ProductUpdatedPayload{
			ProductID:     p.ID,
			SellerID:      p.SellerID,
			CategoryID:    p.CategoryID,
			ChangedFields: changed,
		},
	}
}

func NewProductDeleted(p domain.Product) Event {
	return Event{
		Name:      ProductDeleted,
		ProductID: p.ID,
		Payload: ProductDeletedPayload{
			ProductID:  p.ID,
			SellerID:   p.SellerID,
			CategoryID: p.CategoryID,
		},
	}
}

func NewStockUpdated(id int64, previous, current, delta int) Event {
	return Event{
		Name:      ProductStockUpdated,
		ProductID: id,
		Payload: StockUpdatedPayload{
			ProductID:     id,
			PreviousStock: previous,
			NewStock:      current,
			Delta:         delta,
		},
	}
}
