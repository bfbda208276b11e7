package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/catalog-service/pkg/errors"
)

type downstreamError struct {
	Error *struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response body and maps it
// to the error taxonomy. Statuses outside the taxonomy yield a plain error.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", service, resp.StatusCode, err)
	}

	message := string(body)
	var details []string
	var structured downstreamError
	if json.Unmarshal(body, &structured) == nil && structured.Error != nil {
		message = structured.Error.Message
		details = structured.Error.Details
	}
	qualified := fmt.Sprintf("%s: %s", service, message)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if len(details) > 0 {
			return apperrors.Validation(details...)
		}
		return apperrors.Validation(qualified)
	case http.StatusNotFound:
		return apperrors.NotFound(service, message)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	}
	return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, message)
}
