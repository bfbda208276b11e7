package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/utafrali/catalog-service/pkg/errors"
	"github.com/utafrali/catalog-service/pkg/httputil"
	"github.com/utafrali/catalog-service/pkg/logger"
)

type sellerIDKey struct{}

// Identity is the authenticated actor behind a request.
type Identity struct {
	SellerID int64
}

// Authenticator extracts an Identity from a request. Token issuance and
// verification live outside this service.
type Authenticator func(r *http.Request) (*Identity, error)

// TokenValidator verifies a bearer token and returns its identity.
type TokenValidator func(ctx context.Context, token string) (*Identity, error)

// BearerToken authenticates requests carrying "Authorization: Bearer <token>".
func BearerToken(validate TokenValidator) Authenticator {
	return func(r *http.Request) (*Identity, error) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return nil, apperrors.Unauthorized("missing or malformed bearer token")
		}
		id, err := validate(r.Context(), token)
		if err != nil {
			return nil, apperrors.Unauthorized("invalid or expired token")
		}
		return id, nil
	}
}

// TrustedHeader trusts a seller id set by the upstream gateway after it has
// authenticated the caller.
func TrustedHeader(header string) Authenticator {
	return func(r *http.Request) (*Identity, error) {
		raw := r.Header.Get(header)
		if raw == "" {
			return nil, apperrors.Unauthorized("missing " + header + " header")
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, apperrors.Unauthorized("invalid " + header + " header")
		}
		return &Identity{SellerID: id}, nil
	}
}

// RequireSeller rejects unauthenticated requests with 401 and stores the
// seller id in the context otherwise.
func RequireSeller(authenticate Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticate(r)
			if err != nil {
				httputil.WriteError(w, r, err, nil)
				return
			}
			ctx := WithSellerID(r.Context(), id.SellerID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("seller_id", id.SellerID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithSellerID(ctx context.Context, id int64) context.Context {
	return logger.WithSellerID(context.WithValue(ctx, sellerIDKey{}, id), id)
}

// SellerIDFromContext returns the authenticated seller id, if any.
func SellerIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(sellerIDKey{}).(int64)
	return id, ok
}
