package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kiwari-pos/floorops/internal/enum"
)

// DefaultTokenTTL is the lifetime of access tokens issued by GenerateToken.
const DefaultTokenTTL = 15 * time.Minute

// Claims is the staff session handed to every request. TenantID scopes the
// session to one restaurant.
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Role     string    `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, userID, tenantID uuid.UUID, role string) (string, error) {
	return GenerateTokenTTL(secret, userID, tenantID, role, DefaultTokenTTL)
}

// GenerateTokenTTL issues a token valid for ttl. Used by the seed tool for
// long-lived development tokens.
func GenerateTokenTTL(secret string, userID, tenantID uuid.UUID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TenantID == uuid.Nil {
		return nil, fmt.Errorf("token has no tenant")
	}
	if !enum.IsValidRole(claims.Role) {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}
