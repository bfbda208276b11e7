package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/logger"
)

// Response is the JSON envelope for every API response. Meta carries
// pagination metadata alongside, never inside, the item list.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Meta  any            `json:"meta,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

type ErrorResponse struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// WriteJSON writes v with the given status. Encoding errors are ignored
// because the header has already been sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err using the catalog error taxonomy. Unclassified
// errors become a 500 with a generic message and are logged with the
// request-scoped logger when one is present.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ctx := r.Context()
	requestID := logger.CorrelationIDFromContext(ctx)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		WriteJSON(w, appErr.Status, Response{Error: &ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			RequestID: requestID,
		}})
		return
	}

	status := apperrors.HTTPStatus(err)
	if status < http.StatusInternalServerError {
		WriteJSON(w, status, Response{Error: &ErrorResponse{
			Code:      http.StatusText(status),
			Message:   err.Error(),
			RequestID: requestID,
		}})
		return
	}

	l := logger.FromContext(ctx)
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	l.ErrorContext(ctx, "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	code := "INTERNAL_ERROR"
	if appErr != nil {
		code = appErr.Code
	}
	WriteJSON(w, http.StatusInternalServerError, Response{Error: &ErrorResponse{
		Code:      code,
		Message:   "an internal error occurred",
		RequestID: requestID,
	}})
}

// ParseID parses a positive integer path parameter. On failure it writes a
// 400 and returns false so the caller can return early.
func ParseID(w http.ResponseWriter, name, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:    "INVALID_PARAMETER",
			Message: "invalid " + name + ": " + raw,
		}})
		return 0, false
	}
	return id, true
}
