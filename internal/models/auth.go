package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the roles issued by the identity service.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleManager UserRole = "MANAGER"
	RoleAdmin   UserRole = "ADMIN"
)

// JWTClaims represents the JWT payload for access tokens.
// Tokens are issued by the external identity service; this API only validates them.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
