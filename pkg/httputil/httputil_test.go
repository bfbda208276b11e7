package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/logger"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// ─── WriteJSON ───────────────────────────────────────────────────────────────

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Response{Data: map[string]int{"id": 1}, Meta: map[string]int{"total": 1}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode(t, rec)
	assert.NotNil(t, resp.Data)
	assert.NotNil(t, resp.Meta)
	assert.Nil(t, resp.Error)
}

// ─── WriteError ──────────────────────────────────────────────────────────────

func TestWriteError_Taxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperrors.Validation("name is required", "price must be greater than 0"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", apperrors.NotFound("product", 9), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", apperrors.Forbidden("not the owner"), http.StatusForbidden, "FORBIDDEN"},
		{"unauthorized", apperrors.Unauthorized("missing identity"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrapped", fmt.Errorf("update product: %w", apperrors.NotFound("product", 9)), http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/products/9", nil)
			WriteError(rec, req, tt.err, logger.Discard())

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestWriteError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", nil)
	WriteError(rec, req, apperrors.Validation("a", "b"), logger.Discard())

	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, []string{"a", "b"}, resp.Error.Details)
}

func TestWriteError_PersistenceHidesCause(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	WriteError(rec, req, apperrors.Persistence("find products", errors.New("password=hunter2")), l)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "PERSISTENCE_ERROR", resp.Error.Code)
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
	assert.Contains(t, buf.String(), "internal error")
}

func TestWriteError_UnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rec, req, errors.New("boom"), logger.Discard())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, rec).Error.Code)
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := logger.WithCorrelationID(context.Background(), "req-77")
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	WriteError(rec, req, apperrors.NotFound("product", 1), logger.Discard())

	assert.Equal(t, "req-77", decode(t, rec).Error.RequestID)
}

// ─── ParseID ─────────────────────────────────────────────────────────────────

func TestParseID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		id, ok := ParseID(rec, "id", "42")
		assert.True(t, ok)
		assert.Equal(t, int64(42), id)
	})

	for _, raw := range []string{"abc", "0", "-4", ""} {
		t.Run("invalid "+raw, func(t *testing.T) {
			rec := httptest.NewRecorder()
			_, ok := ParseID(rec, "id", raw)
			assert.False(t, ok)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_PARAMETER", decode(t, rec).Error.Code)
		})
	}
}
