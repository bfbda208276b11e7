package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/catalog-service/pkg/errors"
)

func fastConfig(retries int) Config {
	return Config{Timeout: 2 * time.Second, MaxRetries: retries, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond}
}

func TestDo_RetriesAndReplaysBody(t *testing.T) {
	var calls atomic.Int32
	var lastBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		lastBody.Store(string(b))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := New(fastConfig(3)).PostJSON(context.Background(), srv.URL, map[string]string{"query": "mug"})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.JSONEq(t, `{"query":"mug"}`, lastBody.Load().(string))
}

func TestDo_NoRetryOn4xxOr501(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotImplemented} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		}))

		resp, err := New(fastConfig(3)).PostJSON(context.Background(), srv.URL, nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, int32(1), calls.Load(), "status %d", status)
		srv.Close()
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{MaxRetries: 2, RetryWaitMin: time.Second}).PostJSON(ctx, srv.URL, nil)
	require.Error(t, err)
}

func TestAddJitter(t *testing.T) {
	assert.Zero(t, addJitter(0))
	for i := 0; i < 50; i++ {
		d := addJitter(time.Second)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	assert.True(t, isRetryableError(context.DeadlineExceeded))
}

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"code":"VALIDATION_ERROR","message":"bad","details":["q is required"]}}`, apperrors.ErrValidation},
		{"not found", http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"missing"}}`, apperrors.ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, `nope`, apperrors.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `nope`, apperrors.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(response(tt.status, tt.body), "ranking")
			assert.ErrorIs(t, err, tt.target)
		})
	}

	t.Run("validation details preserved", func(t *testing.T) {
		err := ParseResponseError(response(http.StatusBadRequest,
			`{"error":{"message":"bad","details":["q is required"]}}`), "ranking")
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, []string{"q is required"}, appErr.Details)
	})

	t.Run("server error unclassified", func(t *testing.T) {
		err := ParseResponseError(response(http.StatusBadGateway, "upstream down"), "ranking")
		require.Error(t, err)
		assert.False(t, apperrors.IsTaxonomy(err))
		assert.Contains(t, err.Error(), "502")
	})
}
