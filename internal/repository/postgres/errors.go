package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/catalog-service/internal/repository"
	apperrors "github.com/utafrali/catalog-service/pkg/errors"
)

// SQLSTATE codes mapped into the catalog error taxonomy.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == codeUniqueViolation
}

// mapError translates a store error into the taxonomy. Errors already in the
// taxonomy pass through unchanged.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsTaxonomy(err) {
		return err
	}

	switch sqlState(err) {
	case codeUniqueViolation:
		appErr := apperrors.Validation("a product with the same unique value already exists")
		appErr.Cause = fmt.Errorf("%s: %w: %w", op, repository.ErrDuplicate, err)
		return appErr
	case codeForeignKeyViolation:
		return &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: "related record not found",
			Status:  apperrors.HTTPStatus(apperrors.ErrNotFound),
			Err:     apperrors.ErrNotFound,
			Cause:   err,
		}
	case codeCheckViolation:
		appErr := apperrors.Validation("value violates a catalog constraint")
		appErr.Cause = err
		return appErr
	default:
		return apperrors.Persistence(op, err)
	}
}
