package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrMiss is returned by Store.Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Store is a string-keyed byte cache with per-entry TTL. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePattern removes every key matching a glob pattern such as
	// "search:*".
	DeletePattern(ctx context.Context, pattern string) error
}

var cacheOperations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_cache_operations_total",
		Help: "Cache operations by kind and result.",
	},
	[]string{"operation", "result"},
)

func observe(operation, result string) {
	cacheOperations.WithLabelValues(operation, result).Inc()
}

// GetJSON decodes the entry at key into dst. It returns ErrMiss when the key
// is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// ReadThrough returns the cached value at key, or calls load and caches its
// result for ttl. Cache failures are logged and bypassed; only load errors
// are returned.
func ReadThrough[T any](ctx context.Context, s Store, logger *slog.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	err := GetJSON(ctx, s, key, &cached)
	switch {
	case err == nil:
		return cached, nil
	case errors.Is(err, ErrMiss):
	default:
		logger.WarnContext(ctx, "cache read failed, falling back to store",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := SetJSON(ctx, s, key, v, ttl); err != nil {
		logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return v, nil
}
