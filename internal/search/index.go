package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/catalog-service/internal/domain"
)

// DefaultIndexName is the Elasticsearch index holding catalog products.
const DefaultIndexName = "catalog_products"

const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":          { "type": "long" },
      "name":        { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "description": { "type": "text" },
      "price":       { "type": "scaled_float", "scaling_factor": 100 },
      "stock":       { "type": "integer" },
      "discount":    { "type": "integer" },
      "category_id": { "type": "long" },
      "shop_id":     { "type": "long" },
      "seller_id":   { "type": "long" },
      "sku":         { "type": "keyword" },
      "rating":      { "type": "float" },
      "images":      { "type": "keyword", "index": false },
      "created_at":  { "type": "date" },
      "updated_at":  { "type": "date" }
    }
  }
}`

// Document is the indexed form of a product.
type Document struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Discount    *int      `json:"discount,omitempty"`
	CategoryID  int64     `json:"category_id"`
	ShopID      int64     `json:"shop_id"`
	SellerID    int64     `json:"seller_id"`
	SKU         string    `json:"sku"`
	Rating      float64   `json:"rating"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewDocument converts a product into its index document.
func NewDocument(p domain.Product) Document {
	return Document{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Stock:       p.Stock,
		Discount:    p.Discount,
		CategoryID:  p.CategoryID,
		ShopID:      p.ShopID,
		SellerID:    p.SellerID,
		SKU:         p.SKU,
		Rating:      p.Rating,
		Images:      p.Images,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// Index keeps an Elasticsearch index in step with the product table.
type Index struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

// New creates an Elasticsearch-backed index and ensures it exists. If
// indexName is empty, DefaultIndexName is used.
func New(ctx context.Context, esURL, indexName string, logger *slog.Logger) (*Index, error) {
	return newIndex(ctx, elasticsearch.Config{Addresses: []string{esURL}}, indexName, logger)
}

func newIndex(ctx context.Context, cfg elasticsearch.Config, indexName string, logger *slog.Logger) (*Index, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	idx := &Index{client: client, indexName: indexName, logger: logger}
	if err := idx.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch: ensure index: %w", err)
	}
	return idx, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (i *Index) Ping(ctx context.Context) error {
	res, err := i.client.Ping(i.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

func (i *Index) ensureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.indexName}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	_ = res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.client.Indices.Create(
		i.indexName,
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("create index", res)
	}

	i.logger.Info("elasticsearch index created", slog.String("index", i.indexName))
	return nil
}

// Index adds or replaces the document of p.
func (i *Index) Index(ctx context.Context, p domain.Product) error {
	data, err := json.Marshal(NewDocument(p))
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal product: %w", err)
	}

	res, err := i.client.Index(
		i.indexName,
		bytes.NewReader(data),
		i.client.Index.WithDocumentID(strconv.FormatInt(p.ID, 10)),
		i.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("elasticsearch index", res)
	}

	i.logger.DebugContext(ctx, "indexed product", slog.Int64("product_id", p.ID))
	return nil
}

// Delete removes the document of a product. A missing document is not an
// error.
func (i *Index) Delete(ctx context.Context, id int64) error {
	res, err := i.client.Delete(
		i.indexName,
		strconv.FormatInt(id, 10),
		i.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("elasticsearch delete", res)
	}

	i.logger.DebugContext(ctx, "deleted product from index", slog.Int64("product_id", id))
	return nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	var errResp esErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, res.Status())
}
