package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog-service/internal/service"
	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/httputil"
	"github.com/utafrali/catalog-service/pkg/middleware"
	"github.com/utafrali/catalog-service/pkg/validator"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// UpdateStockRequest is the JSON body of PATCH /api/v1/products/{id}/stock.
type UpdateStockRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// RatingResponse is returned after a rating recalculation.
type RatingResponse struct {
	ProductID int64   `json:"productId"`
	Rating    float64 `json:"rating"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page, err := h.service.GetProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: page.Items, Meta: page.Metadata})
}

// GetFeaturedProducts handles GET /api/v1/products/featured.
func (h *ProductHandler) GetFeaturedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.GetFeaturedProducts(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
}

// SearchProducts handles GET /api/v1/products/search?q=.
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.SearchProducts(r.Context(), searchQuery(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
}

// SearchProductsAI handles GET /api/v1/products/search/ai?q=.
func (h *ProductHandler) SearchProductsAI(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.SearchProductsAI(r.Context(), searchQuery(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
}

// GetProduct handles GET /api/v1/products/{id}.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	detail, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: detail})
}

// CreateProduct handles POST /api/v1/products (multipart/form-data or JSON).
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}

	form, err := readProductForm(w, r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer form.close()

	input := form.createInput(sellerID)
	product, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// UpdateProduct handles PUT /api/v1/products/{id}.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseID(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	form, err := readProductForm(w, r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer form.close()

	input := form.updateInput()
	product, err := h.service.UpdateProduct(r.Context(), id, input, sellerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// DeleteProduct handles DELETE /api/v1/products/{id}.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseID(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id, sellerID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStock handles PATCH /api/v1/products/{id}/stock.
func (h *ProductHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseID(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateStockRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.UpdateStock(r.Context(), id, *req.Quantity, sellerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// RecalculateRating handles POST /api/v1/products/{id}/rating/recalculate.
func (h *ProductHandler) RecalculateRating(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	rating, err := h.service.RecalculateRating(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: RatingResponse{ProductID: id, Rating: rating}})
}

// ListCategoryProducts handles GET /api/v1/categories/{id}/products.
func (h *ProductHandler) ListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "category id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	products, err := h.service.GetProductsByCategory(r.Context(), id, filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
}

// ListShopProducts handles GET /api/v1/shops/{id}/products.
func (h *ProductHandler) ListShopProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "shop id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	products, err := h.service.GetProductsByShop(r.Context(), id, filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
}

// ListSellerProducts handles GET /api/v1/seller/products for the
// authenticated seller.
func (h *ProductHandler) ListSellerProducts(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}

	products, err := h.service.GetSellerProducts(r.Context(), sellerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
}

func (h *ProductHandler) sellerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.SellerIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return 0, false
	}
	return id, true
}

// searchQuery reads ?q=, falling back to ?query=.
func searchQuery(r *http.Request) string {
	q := r.URL.Query()
	if v := q.Get("q"); strings.TrimSpace(v) != "" {
		return v
	}
	return q.Get("query")
}
