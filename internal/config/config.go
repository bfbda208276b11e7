package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/utafrali/catalog-service/internal/storage/minio"
	pkgconfig "github.com/utafrali/catalog-service/pkg/config"
	"github.com/utafrali/catalog-service/pkg/database"
)

// Config holds all configuration for the catalog service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"CATALOG_HTTP_PORT" envDefault:"8001"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Seller identity: the header set by the gateway after authentication,
	// or HMAC-signed bearer tokens when a JWT secret is configured.
	SellerIDHeader string `env:"AUTH_SELLER_HEADER" envDefault:"X-Seller-ID"`
	JWTSecret      string `env:"AUTH_JWT_SECRET"`

	// Browser origins allowed to call the API. Empty disables CORS.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Networks allowed to reach /debug/pprof. Empty disables profiling.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// Per-seller throttling of write endpoints. Zero disables it.
	WriteRateLimit float64 `env:"WRITE_RATE_LIMIT_RPS" envDefault:"10"`
	WriteRateBurst int     `env:"WRITE_RATE_LIMIT_BURST" envDefault:"20"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB   string `env:"CATALOG_DB_NAME" envDefault:"catalog_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"catalog-service"`
	ReviewEvents       bool          `env:"REVIEW_EVENTS_ENABLED" envDefault:"true"`
	EventDedupTTL      time.Duration `env:"EVENT_DEDUP_TTL" envDefault:"24h"`

	// MinIO. An empty endpoint keeps images in process memory.
	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"catalog-images"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioPublicURL string `env:"MINIO_PUBLIC_URL"`

	// Elasticsearch. Indexing is disabled when the URL is empty.
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"catalog-products"`

	// Semantic ranking service. Without it AI search uses text search.
	RankingURL     string        `env:"RANKING_URL"`
	RankingTimeout time.Duration `env:"RANKING_TIMEOUT" envDefault:"5s"`

	// Event bus
	EventHandlerTimeout time.Duration `env:"EVENT_HANDLER_TIMEOUT" envDefault:"5s"`
	LowStockThreshold   int           `env:"LOW_STOCK_THRESHOLD" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field invariants. pkgconfig.Load calls it after
// parsing.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.PostgresHost == "" {
		errs = append(errs, errors.New("POSTGRES_HOST is required"))
	}
	if c.PostgresUser == "" {
		errs = append(errs, errors.New("POSTGRES_USER is required"))
	}
	if c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns))
	}
	if c.RedisHost == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.ReviewEvents && strings.TrimSpace(c.KafkaConsumerGroup) == "" {
		errs = append(errs, errors.New("KAFKA_CONSUMER_GROUP is required when REVIEW_EVENTS_ENABLED is set"))
	}
	if c.EventDedupTTL <= 0 {
		errs = append(errs, errors.New("EVENT_DEDUP_TTL must be positive"))
	}
	if c.SellerIDHeader == "" {
		errs = append(errs, errors.New("AUTH_SELLER_HEADER must not be empty"))
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be at least 32 characters"))
	}
	for _, cidr := range c.PprofAllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Errorf("PPROF_ALLOWED_CIDRS: invalid CIDR %q", cidr))
		}
	}
	if c.WriteRateLimit < 0 {
		errs = append(errs, fmt.Errorf("WRITE_RATE_LIMIT_RPS must not be negative, got %g", c.WriteRateLimit))
	}
	if c.WriteRateLimit > 0 && c.WriteRateBurst < 1 {
		errs = append(errs, errors.New("WRITE_RATE_LIMIT_BURST must be at least 1"))
	}
	if c.MinioEndpoint != "" && c.MinioBucket == "" {
		errs = append(errs, errors.New("MINIO_BUCKET is required when MINIO_ENDPOINT is set"))
	}
	for name, raw := range map[string]string{"ELASTICSEARCH_URL": c.ElasticsearchURL, "RANKING_URL": c.RankingURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.EventHandlerTimeout <= 0 {
		errs = append(errs, errors.New("EVENT_HANDLER_TIMEOUT must be positive"))
	}
	if c.LowStockThreshold < 0 {
		errs = append(errs, fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative, got %d", c.LowStockThreshold))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate))
	}
	return errors.Join(errs...)
}

// Postgres returns the connection settings for the product database.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) Minio() minio.Config {
	return minio.Config{
		Endpoint:  c.MinioEndpoint,
		AccessKey: c.MinioAccessKey,
		SecretKey: c.MinioSecretKey,
		Bucket:    c.MinioBucket,
		UseSSL:    c.MinioUseSSL,
		PublicURL: c.MinioPublicURL,
	}
}
