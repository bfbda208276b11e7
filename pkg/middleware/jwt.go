package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator verifies HMAC-signed tokens issued by the user service. The
// seller id is read from the "seller_id" claim, falling back to "sub".
func JWTValidator(secret string) TokenValidator {
	key := []byte(secret)
	return func(_ context.Context, raw string) (*Identity, error) {
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		}, jwt.WithExpirationRequired())
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if !token.Valid {
			return nil, errors.New("token is not valid")
		}

		id, err := sellerIDClaim(claims)
		if err != nil {
			return nil, err
		}
		return &Identity{SellerID: id}, nil
	}
}

func sellerIDClaim(claims jwt.MapClaims) (int64, error) {
	var id int64
	switch v := claims["seller_id"].(type) {
	case float64:
		id = int64(v)
	case string:
		id, _ = strconv.ParseInt(v, 10, 64)
	case nil:
		sub, _ := claims.GetSubject()
		id, _ = strconv.ParseInt(sub, 10, 64)
	}
	if id <= 0 {
		return 0, errors.New("token carries no seller id")
	}
	return id, nil
}
