package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-service/internal/cache"
	"github.com/utafrali/catalog-service/internal/domain"
	"github.com/utafrali/catalog-service/internal/repository"
	"github.com/utafrali/catalog-service/internal/service"
	"github.com/utafrali/catalog-service/internal/storage"
	"github.com/utafrali/catalog-service/internal/storage/memory"
	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/health"
	"github.com/utafrali/catalog-service/pkg/httputil"
	"github.com/utafrali/catalog-service/pkg/logger"
	"github.com/utafrali/catalog-service/pkg/middleware"
	"github.com/utafrali/catalog-service/pkg/pagination"
)

// ============================================================================
// Mock repository
// ============================================================================

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) FindByID(ctx context.Context, id int64) (*domain.ProductDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductDetail), args.Error(1)
}

func (m *mockProductRepository) FindWithFilters(ctx context.Context, filter repository.ProductFilter) (*pagination.Page[domain.ProductListItem], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.Page[domain.ProductListItem]), args.Error(1)
}

func (m *mockProductRepository) FindAll(ctx context.Context, filter repository.ProductFilter) (*pagination.Page[domain.ProductListItem], error) {
	return m.FindWithFilters(ctx, filter)
}

func (m *mockProductRepository) products(args mock.Arguments) ([]domain.Product, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockProductRepository) FindByCategory(ctx context.Context, categoryID int64) ([]domain.Product, error) {
	return m.products(m.Called(ctx, categoryID))
}

func (m *mockProductRepository) FindByShop(ctx context.Context, shopID int64) ([]domain.Product, error) {
	return m.products(m.Called(ctx, shopID))
}

func (m *mockProductRepository) FindBySeller(ctx context.Context, sellerID int64) ([]domain.Product, error) {
	return m.products(m.Called(ctx, sellerID))
}

func (m *mockProductRepository) FindFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	return m.products(m.Called(ctx, limit))
}

func (m *mockProductRepository) Search(ctx context.Context, query string) ([]domain.Product, error) {
	return m.products(m.Called(ctx, query))
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepository) Update(ctx context.Context, id int64, changes domain.ProductChanges) (*domain.Product, error) {
	args := m.Called(ctx, id, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) UpdateStock(ctx context.Context, id int64, delta int) (*domain.Product, error) {
	args := m.Called(ctx, id, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) UpdateRating(ctx context.Context, id int64) (float64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockProductRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ============================================================================
// Test helpers
// ============================================================================

const sellerHeader = "X-Seller-ID"

type testServer struct {
	router http.Handler
	repo   *mockProductRepository
	blobs  *memory.Store
}

// newTestServer wires the production router around a real service backed by
// a mocked repository, an in-memory blob store and miniredis.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := new(mockProductRepository)
	blobs := memory.New("test")
	svc := service.NewCatalogService(service.Deps{
		Repo:   repo,
		Blobs:  blobs,
		Cache:  cache.NewRedisStore(client),
		Logger: logger.Discard(),
	})

	router := NewRouter(svc, RouterConfig{
		Auth:        middleware.TrustedHeader(sellerHeader),
		CORSOrigins: []string{"https://shop.example.com"},
	}, health.NewHandler(), logger.Discard())
	return &testServer{router: router, repo: repo, blobs: blobs}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func asSeller(req *http.Request, sellerID int64) *http.Request {
	req.Header.Set(sellerHeader, fmt.Sprint(sellerID))
	return req
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func pngFile(name string) filePart {
	return filePart{name: name, contentType: "image/png", data: []byte("\x89PNG\r\n\x1a\nfake")}
}

func pngUpload() storage.UploadInput {
	return storage.UploadInput{Filename: "old.png", ContentType: "image/png", Body: strings.NewReader("old")}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data
}

func ownedDetail(id, sellerID int64, stock int, images ...string) *domain.ProductDetail {
	if images == nil {
		images = []string{}
	}
	return &domain.ProductDetail{
		Product: domain.Product{
			ID:         id,
			Name:       "Red Mug",
			Price:      decimal.RequireFromString("12.50"),
			Stock:      stock,
			CategoryID: 3,
			ShopID:     4,
			SellerID:   sellerID,
			Images:     images,
			IsActive:   true,
			SKU:        "REDX-ABCDEFGH",
		},
		Reviews: []domain.Review{},
	}
}

// ============================================================================
// CreateProduct
// ============================================================================

func TestCreateProduct_Multipart(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Product).ID = 11 }).
		Return(nil)

	req := multipartRequest(t, http.MethodPost, "/api/v1/products", map[string]string{
		"name":       "Red Mug",
		"price":      "12.50",
		"stock":      "8",
		"categoryId": "3",
		"shopId":     "4",
	}, pngFile("front.png"), pngFile("back.png"))

	rec := s.do(asSeller(req, 7))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeData[domain.Product](t, rec)
	assert.Equal(t, int64(11), product.ID)
	assert.Equal(t, int64(7), product.SellerID)
	assert.True(t, product.Price.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, strings.HasPrefix(product.SKU, "RED"))
	require.Len(t, product.Images, 2)
	for _, url := range product.Images {
		assert.True(t, s.blobs.Has(url))
	}
	s.repo.AssertExpectations(t)
}

func TestCreateProduct_JSONBody(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Name == "Blue Plate" && p.Stock == 0 && p.Discount != nil && *p.Discount == 15
	})).Return(nil)

	req := jsonRequest(t, http.MethodPost, "/api/v1/products", map[string]any{
		"name":       "Blue Plate",
		"price":      9.99,
		"discount":   15,
		"categoryId": 3,
		"shopId":     4,
	})
	rec := s.do(asSeller(req, 7))

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s.repo.AssertExpectations(t)
}

func TestCreateProduct_RequiresSeller(t *testing.T) {
	s := newTestServer(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "Red Mug"})
	rec := s.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	s.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_ReportsEveryViolation(t *testing.T) {
	s := newTestServer(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/products", map[string]any{
		"name":     "ab",
		"price":    "-3",
		"stock":    "lots",
		"discount": 140,
		"shopId":   4,
	})
	rec := s.do(asSeller(req, 7))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.ElementsMatch(t, []string{
		"name must be at least 3 characters",
		"price must be greater than 0",
		"discount must be less than or equal to 100",
		"categoryId is required",
		"stock must be an integer",
	}, resp.Error.Details)
	s.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_MalformedFieldReportedOnce(t *testing.T) {
	s := newTestServer(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/products", map[string]any{
		"name":       "ab",
		"price":      "abc",
		"categoryId": 1,
		"shopId":     4,
	})
	rec := s.do(asSeller(req, 7))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{
		"name must be at least 3 characters",
		"price must be a valid number",
	}, decodeResponse(t, rec).Error.Details)
	s.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_RejectsUnsupportedImageType(t *testing.T) {
	s := newTestServer(t)

	req := multipartRequest(t, http.MethodPost, "/api/v1/products", map[string]string{
		"name": "Red Mug", "price": "12.50", "categoryId": "3", "shopId": "4",
	}, filePart{name: "anim.gif", contentType: "image/gif", data: []byte("GIF89a")})
	rec := s.do(asSeller(req, 7))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Error.Details, "images[0] must be one of: image/jpeg, image/png, image/webp")
	assert.Zero(t, s.blobs.Len())
}

func TestCreateProduct_TooManyImages(t *testing.T) {
	s := newTestServer(t)

	files := make([]filePart, MaxImagesPerRequest+1)
	for i := range files {
		files[i] = pngFile(fmt.Sprintf("%d.png", i))
	}
	req := multipartRequest(t, http.MethodPost, "/api/v1/products", map[string]string{"name": "Red Mug"}, files...)
	rec := s.do(asSeller(req, 7))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, s.blobs.Len())
}

func TestCreateProduct_UnsupportedMediaType(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader("name=Red Mug"))
	req.Header.Set("Content-Type", "text/plain")
	rec := s.do(asSeller(req, 7))

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ============================================================================
// GetProduct
// ============================================================================

func TestGetProduct(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("FindByID", mock.Anything, int64(5)).Return(ownedDetail(5, 7, 3), nil).Once()

	for range 2 {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/5", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
		detail := decodeData[domain.ProductDetail](t, rec)
		assert.Equal(t, "Red Mug", detail.Name)
	}
	s.repo.AssertExpectations(t)
}

func TestGetProduct_NotFound(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("FindByID", mock.Anything, int64(404)).Return(nil, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/404", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeResponse(t, rec).Error.Code)
}

func TestGetProduct_InvalidID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeResponse(t, rec).Error.Code)
}

// ============================================================================
// ListProducts
// ============================================================================

func TestListProducts_ParsesFilter(t *testing.T) {
	s := newTestServer(t)

	items := []domain.ProductListItem{{Product: ownedDetail(1, 7, 2).Product}}
	s.repo.On("FindWithFilters", mock.Anything, mock.MatchedBy(func(f repository.ProductFilter) bool {
		return f.MinPrice != nil && f.MinPrice.Equal(decimal.NewFromInt(10)) &&
			f.MaxPrice != nil && f.MaxPrice.Equal(decimal.NewFromInt(50)) &&
			f.MinRating != nil && *f.MinRating == 4 &&
			f.CategoryID != nil && *f.CategoryID == 3 &&
			f.InStock &&
			f.SortBy == repository.SortByPrice && f.SortOrder == repository.SortAsc &&
			f.Page == 2 && f.Limit == 5
	})).Return(pagination.NewPage(items, 6, 2, 5), nil)

	target := "/api/v1/products?minPrice=10&maxPrice=50&rating=4&categoryId=3&inStock=true&sortBy=price&sortOrder=ASC&page=2&limit=5"
	rec := s.do(httptest.NewRequest(http.MethodGet, target, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data []domain.ProductListItem `json:"data"`
		Meta pagination.Metadata      `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, pagination.Metadata{Total: 6, Page: 2, Limit: 5, TotalPages: 2, HasPrevPage: true}, resp.Meta)
	s.repo.AssertExpectations(t)
}

func TestListProducts_InvalidQuery(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/products?minPrice=cheap&categoryId=-1&inStock=maybe", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{
		"minPrice must be a valid number",
		"categoryId must be a positive integer",
		"inStock must be true or false",
	}, decodeResponse(t, rec).Error.Details)
	s.repo.AssertNotCalled(t, "FindWithFilters", mock.Anything, mock.Anything)
}

func TestListProducts_InvertedPriceRange(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/products?minPrice=50&maxPrice=10", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.repo.AssertNotCalled(t, "FindWithFilters", mock.Anything, mock.Anything)
}

// ============================================================================
// Search and featured
// ============================================================================

func TestSearchProducts(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("Search", mock.Anything, "mug").Return([]domain.Product{ownedDetail(1, 7, 2).Product}, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/search?query=mug", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]domain.Product](t, rec), 1)
}

func TestSearchProducts_BlankQuery(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=%20%20", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.repo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestSearchProductsAI_FallsBackWithoutScorer(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("Search", mock.Anything, "warm drink").Return([]domain.Product{}, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/search/ai?q=warm+drink", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[[]domain.Product](t, rec))
}

func TestGetFeaturedProducts(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("FindFeatured", mock.Anything, service.FeaturedLimit).Return(nil, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/featured", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"data":[]}`, strings.TrimSpace(rec.Body.String()))
}

// ============================================================================
// UpdateProduct
// ============================================================================

func TestUpdateProduct_ReplacesImages(t *testing.T) {
	s := newTestServer(t)
	old, err := s.blobs.Upload(context.Background(), pngUpload())
	require.NoError(t, err)

	s.repo.On("FindByID", mock.Anything, int64(5)).Return(ownedDetail(5, 7, 3, old), nil)
	s.repo.On("Update", mock.Anything, int64(5), mock.MatchedBy(func(c domain.ProductChanges) bool {
		return c.Name != nil && *c.Name == "Big Red Mug" && c.Images != nil && len(*c.Images) == 1 && (*c.Images)[0] != old
	})).Return(&domain.Product{ID: 5, Name: "Big Red Mug", CategoryID: 3, SellerID: 7}, nil)

	req := multipartRequest(t, http.MethodPut, "/api/v1/products/5", map[string]string{
		"name":           "Big Red Mug",
		"imagesToDelete": old,
	}, pngFile("new.png"))
	rec := s.do(asSeller(req, 7))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, s.blobs.Has(old))
	assert.Equal(t, 1, s.blobs.Len())
	s.repo.AssertExpectations(t)
}

func TestUpdateProduct_ReportsParseAndRuleViolations(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("FindByID", mock.Anything, int64(5)).Return(ownedDetail(5, 7, 3), nil)

	req := jsonRequest(t, http.MethodPut, "/api/v1/products/5", map[string]any{"name": "ab", "price": "cheap"})
	rec := s.do(asSeller(req, 7))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{
		"name must be at least 3 characters",
		"price must be a valid number",
	}, decodeResponse(t, rec).Error.Details)
	s.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProduct_NotOwner(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("FindByID", mock.Anything, int64(5)).Return(ownedDetail(5, 7, 3), nil)

	req := jsonRequest(t, http.MethodPut, "/api/v1/products/5", map[string]any{"name": "Stolen Mug"})
	rec := s.do(asSeller(req, 99))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	s.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// DeleteProduct
// ============================================================================

func TestDeleteProduct(t *testing.T) {
	s := newTestServer(t)
	img, err := s.blobs.Upload(context.Background(), pngUpload())
	require.NoError(t, err)

	s.repo.On("FindByID", mock.Anything, int64(5)).Return(ownedDetail(5, 7, 3, img), nil)
	s.repo.On("Delete", mock.Anything, int64(5)).Return(nil)

	rec := s.do(asSeller(httptest.NewRequest(http.MethodDelete, "/api/v1/products/5", nil), 7))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.False(t, s.blobs.Has(img))
}

func TestDeleteProduct_NotFound(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("FindByID", mock.Anything, int64(5)).Return(nil, nil)

	rec := s.do(asSeller(httptest.NewRequest(http.MethodDelete, "/api/v1/products/5", nil), 7))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// UpdateStock
// ============================================================================

func TestUpdateStock(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("FindByID", mock.Anything, int64(5)).Return(ownedDetail(5, 7, 3), nil)
	s.repo.On("UpdateStock", mock.Anything, int64(5), -2).Return(&domain.Product{ID: 5, Stock: 1, SellerID: 7}, nil)

	req := jsonRequest(t, http.MethodPatch, "/api/v1/products/5/stock", map[string]any{"quantity": -2})
	rec := s.do(asSeller(req, 7))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeData[domain.Product](t, rec).Stock)
}

func TestUpdateStock_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"missing quantity", map[string]any{}, http.StatusBadRequest},
		{"unknown field", map[string]any{"quantity": 1, "note": "x"}, http.StatusBadRequest},
		{"insufficient stock", map[string]any{"quantity": -4}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.repo.On("FindByID", mock.Anything, int64(5)).Return(ownedDetail(5, 7, 3), nil)

			req := jsonRequest(t, http.MethodPatch, "/api/v1/products/5/stock", tt.body)
			rec := s.do(asSeller(req, 7))

			assert.Equal(t, tt.status, rec.Code)
			s.repo.AssertNotCalled(t, "UpdateStock", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// ============================================================================
// Listings by owner
// ============================================================================

func TestListCategoryProducts_NarrowsAndSorts(t *testing.T) {
	s := newTestServer(t)

	cheap := ownedDetail(1, 7, 2).Product
	cheap.Price = decimal.NewFromInt(5)
	dear := ownedDetail(2, 7, 2).Product
	dear.Price = decimal.NewFromInt(40)
	hidden := ownedDetail(3, 7, 2).Product
	hidden.IsActive = false
	s.repo.On("FindByCategory", mock.Anything, int64(3)).Return([]domain.Product{cheap, dear, hidden}, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/categories/3/products?sortBy=price&sortOrder=desc", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	products := decodeData[[]domain.Product](t, rec)
	require.Len(t, products, 2)
	assert.Equal(t, int64(2), products[0].ID)
	assert.Equal(t, int64(1), products[1].ID)
}

func TestListShopProducts(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("FindByShop", mock.Anything, int64(4)).Return([]domain.Product{ownedDetail(1, 7, 0).Product}, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/shops/4/products?inStock=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[[]domain.Product](t, rec))
}

func TestListSellerProducts(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("FindBySeller", mock.Anything, int64(7)).Return([]domain.Product{ownedDetail(1, 7, 0).Product}, nil)

	rec := s.do(asSeller(httptest.NewRequest(http.MethodGet, "/api/v1/seller/products", nil), 7))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]domain.Product](t, rec), 1)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/seller/products", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecalculateRating(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("UpdateRating", mock.Anything, int64(5)).Return(4.5, nil)

	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/products/5/rating/recalculate", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RatingResponse{ProductID: 5, Rating: 4.5}, decodeData[RatingResponse](t, rec))
}

func TestRecalculateRating_PersistenceError(t *testing.T) {
	s := newTestServer(t)
	s.repo.On("UpdateRating", mock.Anything, int64(5)).
		Return(0.0, apperrors.Persistence("update rating", fmt.Errorf("connection reset")))

	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/products/5/rating/recalculate", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "an internal error occurred", decodeResponse(t, rec).Error.Message)
}

// ============================================================================
// Infrastructure routes
// ============================================================================

func TestHealthAndMetricsRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products/3/stock", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := s.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	s.repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
