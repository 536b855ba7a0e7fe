package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quanghuy-dev/dorm-api/internal/models"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
)

// AuthService validates access tokens issued by the external identity service.
type AuthService struct {
	secret []byte
}

// NewAuthService wires the shared signing secret.
func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

// ValidateToken parses and verifies a bearer token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}
