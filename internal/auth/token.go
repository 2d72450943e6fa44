package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenVerifier validates bearer tokens against the shared HS256 secret
type TokenVerifier struct {
	secret string
}

// NewTokenVerifier creates a new TokenVerifier
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: secret}
}

// ValidateToken verifies a token and returns its claims
func (tv *TokenVerifier) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tv.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("invalid token: missing user_id")
	}

	return claims, nil
}

// PrincipalFromRequest extracts the authenticated principal from the
// Authorization header. Extraction is best effort: a missing or invalid
// bearer token yields an anonymous principal rather than an error, since
// admission decisions still apply to unauthenticated traffic.
func (tv *TokenVerifier) PrincipalFromRequest(r *http.Request) (userID, role string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ""
	}

	claims, err := tv.ValidateToken(parts[1])
	if err != nil {
		return "", ""
	}

	return claims.UserID, claims.Role
}

// GenerateToken signs a token for the given principal. Used by tests and
// local tooling; production tokens come from the identity provider.
func (tv *TokenVerifier) GenerateToken(userID, role string, ttl time.Duration) (string, error) {
	claims := &models.TokenClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tv.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}
