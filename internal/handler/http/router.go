package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalog-service/internal/service"
	"github.com/utafrali/catalog-service/pkg/health"
	"github.com/utafrali/catalog-service/pkg/middleware"
)

// ServiceName labels the catalog's metrics and spans.
const ServiceName = "catalog-service"

// publicMaxAge is the browser cache lifetime of anonymous catalog reads, in
// seconds.
const publicMaxAge = 60

// RouterConfig carries the edge policies of the API.
type RouterConfig struct {
	// Auth identifies the seller behind write requests.
	Auth middleware.Authenticator
	// WriteLimit throttles seller writes when non-nil.
	WriteLimit func(http.Handler) http.Handler
	// CORSOrigins enables cross-origin access for these origins.
	CORSOrigins []string
	// PprofCIDRs exposes /debug/pprof to these networks.
	PprofCIDRs []string
}

// NewRouter creates a chi router with all catalog routes registered.
func NewRouter(
	catalog *service.CatalogService,
	cfg RouterConfig,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	}
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	products := NewProductHandler(catalog, logger)
	requireSeller := middleware.RequireSeller(cfg.Auth)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(publicMaxAge))

			r.Get("/", products.ListProducts)
			r.Get("/featured", products.GetFeaturedProducts)
			r.Get("/search", products.SearchProducts)
			r.Get("/search/ai", products.SearchProductsAI)
			r.Get("/{id}", products.GetProduct)
		})

		r.Post("/{id}/rating/recalculate", products.RecalculateRating)

		r.Group(func(r chi.Router) {
			r.Use(requireSeller)
			if cfg.WriteLimit != nil {
				r.Use(cfg.WriteLimit)
			}

			r.Post("/", products.CreateProduct)
			r.Put("/{id}", products.UpdateProduct)
			r.Delete("/{id}", products.DeleteProduct)
			r.Patch("/{id}/stock", products.UpdateStock)
		})
	})

	r.Route("/api/v1/categories/{id}/products", func(r chi.Router) {
		r.Use(middleware.CacheControl(publicMaxAge))
		r.Get("/", products.ListCategoryProducts)
	})

	r.Route("/api/v1/shops/{id}/products", func(r chi.Router) {
		r.Use(middleware.CacheControl(publicMaxAge))
		r.Get("/", products.ListShopProducts)
	})

	r.With(requireSeller).Get("/api/v1/seller/products", products.ListSellerProducts)

	return r
}
