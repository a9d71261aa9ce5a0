// Package jwttoken validates the HS256 access tokens minted by the platform's
// identity service. This core only consumes tokens; it never issues them.
package jwttoken

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"aegis/internal/platform/middleware"
	dErrors "aegis/pkg/domain-errors"
)

// Claims represents the JWT claims carried by platform access tokens.
type Claims struct {
	SubjectID string `json:"subject_id"`
	jwt.RegisteredClaims
}

// Validator checks token signatures and expiry.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning the middleware-facing
// claims on success.
func (v *Validator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &middleware.JWTClaims{SubjectID: claims.SubjectID}, nil
}
