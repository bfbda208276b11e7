package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalog-service/internal/cache"
	"github.com/utafrali/catalog-service/internal/config"
	"github.com/utafrali/catalog-service/internal/event"
	handler "github.com/utafrali/catalog-service/internal/handler/http"
	"github.com/utafrali/catalog-service/internal/ranking"
	"github.com/utafrali/catalog-service/internal/repository/postgres"
	"github.com/utafrali/catalog-service/internal/search"
	"github.com/utafrali/catalog-service/internal/service"
	"github.com/utafrali/catalog-service/internal/storage"
	"github.com/utafrali/catalog-service/internal/storage/memory"
	"github.com/utafrali/catalog-service/internal/storage/minio"
	"github.com/utafrali/catalog-service/migrations"
	"github.com/utafrali/catalog-service/pkg/database"
	"github.com/utafrali/catalog-service/pkg/health"
	"github.com/utafrali/catalog-service/pkg/httpclient"
	pkgkafka "github.com/utafrali/catalog-service/pkg/kafka"
	"github.com/utafrali/catalog-service/pkg/middleware"
	"github.com/utafrali/catalog-service/pkg/tracing"
)

const serviceVersion = "0.1.0"

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	bus            *event.Bus
	httpServer     *http.Server
	tracerShutdown tracing.Shutdown
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := prometheus.Register(database.NewPoolStatsCollector(pool, handler.ServiceName)); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Redis. Without it the service runs uncached and the client
	// keeps reconnecting.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		logger.Warn("redis unavailable, serving without cache",
			slog.String("error", err.Error()),
		)
		rdb = database.OpenRedis(cfg.Redis())
	}
	cacheStore := cache.NewRedisStore(rdb)

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterOptional("redis", cacheStore.Ping)

	// Image storage.
	blobs, err := newBlobStore(ctx, cfg, healthHandler, logger)
	if err != nil {
		_ = rdb.Close()
		pool.Close()
		return nil, err
	}

	// Initialize Kafka producer. A broker outage at startup only degrades
	// event delivery.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := producer.Ping(ctx); err != nil {
		logger.Warn("kafka producer ping failed, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	healthHandler.RegisterOptional("kafka", producer.Ping)

	// Build the dependency graph.
	repo := postgres.NewProductRepository(pool)

	bus := event.NewBus(cfg.EventHandlerTimeout, logger)
	bus.Subscribe(event.AllEvents, "kafka", event.KafkaForwarder(producer, handler.ServiceName))
	bus.Subscribe(event.AllEvents, "audit", event.AuditLog(logger))
	bus.Subscribe(event.ProductStockUpdated, "low-stock", event.LowStockWatcher(cfg.LowStockThreshold, logger))

	if cfg.ElasticsearchURL != "" {
		index, err := search.New(ctx, cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			logger.Warn("search indexing disabled", slog.String("error", err.Error()))
		} else {
			bus.Subscribe(event.AllEvents, "search-index", event.IndexSync(index, repo))
			healthHandler.RegisterOptional("elasticsearch", index.Ping)
			logger.Info("search indexing enabled", slog.String("index", cfg.ElasticsearchIndex))
		}
	}

	var scorer ranking.Scorer
	if cfg.RankingURL != "" {
		clientCfg := httpclient.DefaultConfig()
		clientCfg.Timeout = cfg.RankingTimeout
		scorer = ranking.NewClient(cfg.RankingURL, clientCfg, logger)
		logger.Info("semantic ranking enabled", slog.String("url", cfg.RankingURL))
	}

	catalog := service.NewCatalogService(service.Deps{
		Repo:   repo,
		Blobs:  blobs,
		Cache:  cacheStore,
		Events: bus,
		Scorer: scorer,
		Logger: logger,
	})

	// Review events keep product ratings current. Duplicated deliveries are
	// filtered through Redis so replicas share one view.
	var (
		dlq       *pkgkafka.DLQProducer
		consumers []*pkgkafka.Consumer
	)
	if cfg.ReviewEvents {
		dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		dedup := pkgkafka.NewRedisIdempotencyStore(rdb, cache.KeyPrefix+"events:", cfg.EventDedupTTL)
		reviews := event.NewReviewConsumer(catalog, logger)
		handle := pkgkafka.IdempotentHandler(dedup, reviews.Handle, logger)

		for _, topic := range event.ReviewTopics {
			c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  cfg.KafkaConsumerGroup,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6, // 10 MB
			}, handle, logger).WithDeadLetter(dlq)
			consumers = append(consumers, c)
		}
		logger.Info("kafka consumers initialized",
			slog.String("group", cfg.KafkaConsumerGroup),
			slog.Int("topic_count", len(event.ReviewTopics)),
		)
	}

	// HTTP router.
	auth := middleware.TrustedHeader(cfg.SellerIDHeader)
	if cfg.JWTSecret != "" {
		auth = middleware.BearerToken(middleware.JWTValidator(cfg.JWTSecret))
		logger.Info("seller authentication via bearer tokens")
	}
	var writeLimit func(http.Handler) http.Handler
	if cfg.WriteRateLimit > 0 {
		writeLimit = middleware.RateLimit(cfg.WriteRateLimit, cfg.WriteRateBurst)
	}
	router := handler.NewRouter(catalog, handler.RouterConfig{
		Auth:        auth,
		WriteLimit:  writeLimit,
		CORSOrigins: cfg.CORSAllowedOrigins,
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
	}, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		dlq:            dlq,
		consumers:      consumers,
		bus:            bus,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newBlobStore connects to MinIO when an endpoint is configured and falls
// back to process memory otherwise.
func newBlobStore(ctx context.Context, cfg *config.Config, hh *health.Handler, logger *slog.Logger) (storage.BlobStore, error) {
	if cfg.MinioEndpoint == "" {
		logger.Warn("MINIO_ENDPOINT not set, product images are kept in memory")
		return memory.New(cfg.MinioBucket), nil
	}

	store, err := minio.New(ctx, cfg.Minio(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to minio: %w", err)
	}
	hh.Register("minio", store.Ping)
	return store, nil
}

// Run starts the HTTP server and Kafka consumers, blocking until the context
// is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func(c *pkgkafka.Consumer) {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}(c)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Kafka consumers and their dead-letter writer
// 3. Event bus (wait for handlers started by those requests)
// 4. Tracer (flush pending spans)
// 5. Kafka producer, Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dead-letter producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.bus.Close(shutdownCtx); err != nil {
		a.logger.Error("event bus close error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return nil
}
