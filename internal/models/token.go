package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims are the JWT claims the admission layer understands. Tokens
// are issued by the upstream identity provider; this service only verifies
// them to derive a principal and role.
type TokenClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
