package database

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errStr string

func (e errStr) Error() string { return string(e) }

func TestBackoff_WithinJitterBounds(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := retryBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitterFraction))
		hi := time.Duration(float64(base) * (1 + retryJitterFraction))
		for i := 0; i < 20; i++ {
			d := backoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(errStr("dial tcp 127.0.0.1:5432: connection refused")))
	assert.True(t, isConnectionError(errStr("read: connection reset by peer")))
	assert.True(t, isConnectionError(errStr("unexpected EOF")))
	assert.False(t, isConnectionError(errStr("syntax error at or near \"SELEC\"")))
	assert.False(t, isConnectionError(errStr("duplicate key value violates unique constraint")))
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), nil, "op", isConnectionError, func() error {
		calls++
		return errStr("syntax error")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), nil, "op", always, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, nil, "op", always, func() error {
		return errStr("connection refused")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5432, User: "catalog", Password: "p@ss/word",
		DBName: "catalog", SSLMode: "disable",
	}
	dsn := cfg.DSN()
	assert.Contains(t, dsn, "postgres://catalog:p%40ss%2Fword@db:5432/catalog")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}

func TestOpenRedis_ConnectsLazily(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	cfg := RedisConfig{Host: host, Port: p}

	mr.Close()
	client := OpenRedis(cfg)
	defer client.Close()
	assert.Error(t, client.Ping(context.Background()).Err())

	require.NoError(t, mr.Restart())
	assert.NoError(t, client.Ping(context.Background()).Err())
}
